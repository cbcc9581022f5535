package services

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ronnjoshua/real-estate/internal/models"
)

// MapPropertyDocument converts a raw stored document into a Property, filling
// defaults for absent fields. It is pure and total: any document carrying an
// _id maps to a usable entity. Missing images degrade to an empty slice,
// missing status to "available", and mistyped fields to their zero values,
// never to an error.
func MapPropertyDocument(doc bson.M) models.Property {
	p := models.Property{
		Title:        docString(doc, "title"),
		Description:  docString(doc, "description"),
		Price:        docFloat(doc, "price"),
		PropertyType: docString(doc, "property_type"),
		Location:     docString(doc, "location"),
		Bedrooms:     docInt(doc, "bedrooms"),
		Bathrooms:    docInt(doc, "bathrooms"),
		Area:         docFloat(doc, "area"),
		Images:       docStringSlice(doc, "images"),
		Status:       docString(doc, "status"),
		CreatedAt:    docTime(doc, "created_at"),
		UpdatedAt:    docTime(doc, "updated_at"),
	}
	if id, ok := doc["_id"].(primitive.ObjectID); ok {
		p.ID = id
	}
	if p.Status == "" {
		p.Status = models.StatusAvailable
	}
	return p
}

func docString(doc bson.M, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}

// docFloat reads a numeric field regardless of which BSON numeric type the
// store used to encode it.
func docFloat(doc bson.M, key string) float64 {
	switch v := doc[key].(type) {
	case float64:
		return v
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func docInt(doc bson.M, key string) int {
	switch v := doc[key].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func docTime(doc bson.M, key string) time.Time {
	switch v := doc[key].(type) {
	case primitive.DateTime:
		return v.Time().UTC()
	case time.Time:
		return v.UTC()
	}
	return time.Time{}
}

func docStringSlice(doc bson.M, key string) []string {
	out := []string{}
	switch v := doc[key].(type) {
	case primitive.A:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, v...)
	}
	return out
}
