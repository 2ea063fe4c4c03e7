package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{Invalid("email is required"), http.StatusBadRequest},
		{Unauthorized("bad credentials"), http.StatusUnauthorized},
		{Forbidden("admins only"), http.StatusForbidden},
		{NotFound("invoice"), http.StatusNotFound},
		{Conflict("offer already accepted"), http.StatusConflict},
		{fmt.Errorf("wrapped: %w", NotFound("listing")), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), "%v", tc.err)
	}
}

func TestErrorMessageIsClientFacing(t *testing.T) {
	err := NotFound("application")
	assert.Equal(t, "application not found", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
}
