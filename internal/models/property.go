package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Property status values. Status always defaults to StatusAvailable on create.
const (
	StatusAvailable = "available"
	StatusPending   = "pending"
	StatusSold      = "sold"
)

// ValidStatus reports whether s is one of the enumerated property statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusAvailable, StatusPending, StatusSold:
		return true
	}
	return false
}

// Property represents a property listing.
type Property struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Title        string             `bson:"title" json:"title"`
	Description  string             `bson:"description" json:"description"`
	Price        float64            `bson:"price" json:"price"`
	PropertyType string             `bson:"property_type" json:"property_type"`
	Location     string             `bson:"location" json:"location"`
	Bedrooms     int                `bson:"bedrooms" json:"bedrooms"`
	Bathrooms    int                `bson:"bathrooms" json:"bathrooms"`
	Area         float64            `bson:"area" json:"area"` // square feet
	Images       []string           `bson:"images" json:"images"`
	Status       string             `bson:"status" json:"status"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// PropertyInput carries the client-supplied fields for creating a property.
// ID, status default and timestamps are assigned server-side.
type PropertyInput struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Price        float64  `json:"price"`
	PropertyType string   `json:"property_type"`
	Location     string   `json:"location"`
	Bedrooms     int      `json:"bedrooms"`
	Bathrooms    int      `json:"bathrooms"`
	Area         float64  `json:"area"`
	Images       []string `json:"images"`
}

// PropertyUpdate carries a partial update; nil fields are left untouched.
type PropertyUpdate struct {
	Title        *string   `json:"title,omitempty"`
	Description  *string   `json:"description,omitempty"`
	Price        *float64  `json:"price,omitempty"`
	PropertyType *string   `json:"property_type,omitempty"`
	Location     *string   `json:"location,omitempty"`
	Bedrooms     *int      `json:"bedrooms,omitempty"`
	Bathrooms    *int      `json:"bathrooms,omitempty"`
	Area         *float64  `json:"area,omitempty"`
	Images       *[]string `json:"images,omitempty"`
	Status       *string   `json:"status,omitempty"`
}

// PropertyFilter is the ephemeral filter specification for list queries.
// All set fields are combined with AND semantics.
type PropertyFilter struct {
	PropertyType *string
	MinPrice     *float64
	MaxPrice     *float64
	Location     *string
}
