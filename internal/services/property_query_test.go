package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ronnjoshua/real-estate/internal/models"
)

func strPtr(s string) *string       { return &s }
func floatPtr(f float64) *float64   { return &f }
func intPtr(i int) *int             { return &i }
func slicePtr(s []string) *[]string { return &s }

func TestBuildPropertyListQuery_NoFilters(t *testing.T) {
	query, opts := BuildPropertyListQuery(models.PropertyFilter{}, 10, "")
	assert.Empty(t, query)
	assert.Equal(t, int64(11), *opts.Limit) // limit+1 overfetch
	assert.Equal(t, bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}, opts.Sort)
}

func TestBuildPropertyListQuery_EqualityFilters(t *testing.T) {
	filter := models.PropertyFilter{
		PropertyType: strPtr("condo"),
		Location:     strPtr("Makati"),
	}
	query, _ := BuildPropertyListQuery(filter, 10, "")
	assert.Equal(t, "condo", query["property_type"])
	assert.Equal(t, "Makati", query["location"])
	_, hasPrice := query["price"]
	assert.False(t, hasPrice)
}

func TestBuildPropertyListQuery_PriceRange(t *testing.T) {
	filter := models.PropertyFilter{
		MinPrice: floatPtr(200000),
		MaxPrice: floatPtr(300000),
	}
	query, _ := BuildPropertyListQuery(filter, 10, "")
	assert.Equal(t, bson.M{"$gte": 200000.0, "$lte": 300000.0}, query["price"])
}

func TestBuildPropertyListQuery_MinPriceOnly(t *testing.T) {
	filter := models.PropertyFilter{MinPrice: floatPtr(100000)}
	query, _ := BuildPropertyListQuery(filter, 10, "")
	assert.Equal(t, bson.M{"$gte": 100000.0}, query["price"])
}

func TestBuildPropertyListQuery_EmptyStringsContributeNothing(t *testing.T) {
	filter := models.PropertyFilter{
		PropertyType: strPtr(""),
		Location:     strPtr(""),
	}
	query, _ := BuildPropertyListQuery(filter, 10, "")
	assert.Empty(t, query)
}

func TestBuildPropertyListQuery_CursorPredicate(t *testing.T) {
	id := primitive.NewObjectID()
	createdAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cursor := EncodePropertyCursor(models.Property{ID: id, CreatedAt: createdAt})

	query, _ := BuildPropertyListQuery(models.PropertyFilter{}, 10, cursor)
	or, ok := query["$or"].(bson.A)
	assert.True(t, ok)
	assert.Len(t, or, 2)
	assert.Equal(t, bson.M{"created_at": createdAt, "_id": bson.M{"$lt": id}}, or[0])
	assert.Equal(t, bson.M{"created_at": bson.M{"$lt": createdAt}}, or[1])
}

func TestBuildPropertyListQuery_MalformedCursorIgnored(t *testing.T) {
	for _, cursor := range []string{"garbage", "12_nothex", "x_5f1d7f0a0a0a0a0a0a0a0a0a"} {
		query, _ := BuildPropertyListQuery(models.PropertyFilter{}, 10, cursor)
		_, hasOr := query["$or"]
		assert.False(t, hasOr, "cursor %q should be ignored", cursor)
	}
}

func TestEncodePropertyCursor_RoundTrip(t *testing.T) {
	id := primitive.NewObjectID()
	createdAt := time.Date(2024, 6, 15, 8, 30, 0, 250*int(time.Millisecond), time.UTC)
	cursor := EncodePropertyCursor(models.Property{ID: id, CreatedAt: createdAt})

	parsed, err := parsePropertyCursor(cursor)
	assert.NoError(t, err)
	assert.Equal(t, id, parsed.id)
	assert.True(t, parsed.createdAt.Equal(createdAt))
}

func TestClampPageSize(t *testing.T) {
	assert.Equal(t, 10, ClampPageSize(0, 10, 100))
	assert.Equal(t, 10, ClampPageSize(-5, 10, 100))
	assert.Equal(t, 25, ClampPageSize(25, 10, 100))
	assert.Equal(t, 100, ClampPageSize(500, 10, 100))
}
