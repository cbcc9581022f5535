package services

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ronnjoshua/real-estate/internal/models"
)

// pageCursor is the decoded form of a list-pagination cursor: the creation
// time and id of the last document on the previous page.
type pageCursor struct {
	createdAt time.Time
	id        primitive.ObjectID
}

// EncodePropertyCursor builds the opaque cursor for the page ending at p.
// Format: <unix-millis>_<object-id-hex>.
func EncodePropertyCursor(p models.Property) string {
	return fmt.Sprintf("%d_%s", p.CreatedAt.UnixMilli(), p.ID.Hex())
}

// parsePropertyCursor decodes a cursor string. Returns nil for an empty cursor.
func parsePropertyCursor(cursor string) (*pageCursor, error) {
	if cursor == "" {
		return nil, nil
	}
	parts := strings.SplitN(cursor, "_", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed cursor %q", cursor)
	}
	millis, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed cursor timestamp %q: %w", parts[0], err)
	}
	id, err := primitive.ObjectIDFromHex(parts[1])
	if err != nil {
		return nil, fmt.Errorf("malformed cursor id %q: %w", parts[1], err)
	}
	return &pageCursor{createdAt: time.UnixMilli(millis).UTC(), id: id}, nil
}

// ClampPageSize bounds a requested page size: non-positive values fall back to
// the default, values above the maximum are capped.
func ClampPageSize(requested, defaultSize, maxSize int) int {
	if requested <= 0 {
		return defaultSize
	}
	if requested > maxSize {
		return maxSize
	}
	return requested
}

// BuildPropertyListQuery translates a filter specification, page size and
// optional cursor into a Mongo predicate and find options. Each set filter
// field contributes exactly one equality or range predicate (AND semantics);
// ordering is always creation time descending with _id as tiebreak so pages
// stay stable. One extra document is requested to decide whether a next page
// exists. A malformed cursor is ignored (first page) with a logged warning.
func BuildPropertyListQuery(filter models.PropertyFilter, limit int, cursor string) (bson.M, *options.FindOptions) {
	query := bson.M{}

	if filter.PropertyType != nil && *filter.PropertyType != "" {
		query["property_type"] = *filter.PropertyType
	}
	if filter.Location != nil && *filter.Location != "" {
		query["location"] = *filter.Location
	}
	if filter.MinPrice != nil || filter.MaxPrice != nil {
		priceRange := bson.M{}
		if filter.MinPrice != nil {
			priceRange["$gte"] = *filter.MinPrice
		}
		if filter.MaxPrice != nil {
			priceRange["$lte"] = *filter.MaxPrice
		}
		query["price"] = priceRange
	}

	c, err := parsePropertyCursor(cursor)
	if err != nil {
		log.Printf("WARN: ignoring invalid list cursor: %v", err)
	} else if c != nil {
		// Resume strictly after the cursor document under the
		// (created_at desc, _id desc) sort order.
		query["$or"] = bson.A{
			bson.M{"created_at": c.createdAt, "_id": bson.M{"$lt": c.id}},
			bson.M{"created_at": bson.M{"$lt": c.createdAt}},
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit + 1))

	return query, opts
}
