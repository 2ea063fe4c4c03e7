package database

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

type money struct {
	Amount decimal.Decimal `bson:"amount"`
}

func TestDecimalEncodesAsDecimal128(t *testing.T) {
	reg := NewRegistry()
	raw, err := bson.MarshalWithRegistry(reg, money{Amount: decimal.RequireFromString("12.50")})
	require.NoError(t, err)

	v := bson.Raw(raw).Lookup("amount")
	require.Equal(t, bsontype.Decimal128, v.Type)

	var out money
	require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &out))
	require.True(t, out.Amount.Equal(decimal.RequireFromString("12.5")), out.Amount.String())
}

func TestDecimalDecodesLegacyTypes(t *testing.T) {
	reg := NewRegistry()
	cases := []struct {
		name string
		doc  bson.D
		want string
	}{
		{"double", bson.D{{Key: "amount", Value: 19.99}}, "19.99"},
		{"int32", bson.D{{Key: "amount", Value: int32(7)}}, "7"},
		{"int64", bson.D{{Key: "amount", Value: int64(1500)}}, "1500"},
		{"string", bson.D{{Key: "amount", Value: "3.333"}}, "3.333"},
		{"null", bson.D{{Key: "amount", Value: nil}}, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := bson.Marshal(tc.doc)
			require.NoError(t, err)
			var out money
			require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &out))
			require.True(t, out.Amount.Equal(decimal.RequireFromString(tc.want)), out.Amount.String())
		})
	}
}

func TestDecimalRejectsBoolean(t *testing.T) {
	raw, err := bson.Marshal(bson.D{{Key: "amount", Value: true}})
	require.NoError(t, err)
	var out money
	require.Error(t, bson.UnmarshalWithRegistry(NewRegistry(), raw, &out))
}

func TestIndexModelsCoverCollections(t *testing.T) {
	m := indexModels()
	for _, c := range []string{CollUsers, CollSessions, CollInvoices, CollMessages, CollTiers, CollCategories} {
		require.NotEmpty(t, m[c], c)
	}
}
