package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageNormalizeAndSlice(t *testing.T) {
	p := Page{}.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPageSize, p.Limit)

	assert.Equal(t, MaxPageSize, Page{Limit: 1000}.Normalize().Limit)
	assert.Equal(t, int64(20), Page{Page: 3, Limit: 10}.Skip())

	start, end := Page{Page: 2, Limit: 10}.Slice(15)
	assert.Equal(t, 10, start)
	assert.Equal(t, 15, end)

	start, end = Page{Page: 5, Limit: 10}.Slice(15)
	assert.Equal(t, 15, start)
	assert.Equal(t, 15, end)
}

func TestNewListNeverNil(t *testing.T) {
	l := NewList[string](nil, 0, Page{})
	assert.NotNil(t, l.Items)
	assert.Equal(t, 1, l.Page)
}

func TestPageAll(t *testing.T) {
	p := Page{Page: 3, Limit: 5, All: true}
	assert.Equal(t, int64(0), p.Skip())
	start, end := p.Slice(42)
	assert.Equal(t, 0, start)
	assert.Equal(t, 42, end)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Gold Membership":     "gold-membership",
		"  Boots & Cleats!! ": "boots-cleats",
		"U-12 Kits":           "u-12-kits",
		"---":                 "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
