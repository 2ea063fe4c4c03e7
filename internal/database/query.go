package database

import (
	"regexp"

	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PageOptions turns a page request into find options with the given sort.
func PageOptions(p models.Page, sort bson.D) *options.FindOptions {
	opts := options.Find().SetSort(sort)
	if p.All {
		return opts
	}
	p = p.Normalize()
	return opts.SetSkip(p.Skip()).SetLimit(int64(p.Limit))
}

// Contains is a case-insensitive substring match on a literal string.
func Contains(s string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
}
