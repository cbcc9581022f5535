package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ronnjoshua/real-estate/internal/config"
	"github.com/ronnjoshua/real-estate/internal/images"
	"github.com/ronnjoshua/real-estate/internal/models"
)

// ValidationError describes input rejected before persistence.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IPropertyService defines the repository for property listings.
type IPropertyService interface {
	// ListProperties returns one page of properties matching the filter,
	// newest first, plus the cursor for the next page ("" when exhausted).
	// Store failures are logged and surfaced as an empty page so callers
	// always have a renderable state.
	ListProperties(ctx context.Context, filter models.PropertyFilter, limit int, cursor string) ([]models.Property, string, error)
	GetProperty(ctx context.Context, id primitive.ObjectID) (*models.Property, error)
	CreateProperty(ctx context.Context, input models.PropertyInput) (*models.Property, error)
	UpdateProperty(ctx context.Context, id primitive.ObjectID, upd models.PropertyUpdate) (*models.Property, error)
	DeleteProperty(ctx context.Context, id primitive.ObjectID) (bool, error)
	SearchProperties(ctx context.Context, query string, limit int) ([]models.Property, error)
	AddImageToProperty(ctx context.Context, id primitive.ObjectID, imageURL string) error
}

const propertiesCollection = "properties"

// propertyService implements IPropertyService. rdb is optional; when set,
// GetProperty reads through a short-TTL Redis cache which mutations invalidate.
type propertyService struct {
	db  *mongo.Database
	cfg *config.Config
	rdb *redis.Client
}

// NewPropertyService creates a new PropertyService. rdb may be nil to disable
// the detail read cache.
func NewPropertyService(db *mongo.Database, cfg *config.Config, rdb *redis.Client) IPropertyService {
	return &propertyService{db: db, cfg: cfg, rdb: rdb}
}

// ListProperties executes the filtered, cursor-paginated read path.
func (s *propertyService) ListProperties(ctx context.Context, filter models.PropertyFilter, limit int, cursor string) ([]models.Property, string, error) {
	limit = ClampPageSize(limit, s.cfg.DefaultPageSize, s.cfg.MaxPageSize)
	query, opts := BuildPropertyListQuery(filter, limit, cursor)

	collection := s.db.Collection(propertiesCollection)
	cur, err := collection.Find(ctx, query, opts)
	if err != nil {
		// Read-path failures degrade to an empty page; the caller can
		// always render "no listings" instead of an error state.
		log.Printf("ERROR: property list query failed: %v", err)
		return []models.Property{}, "", nil
	}
	defer cur.Close(ctx)

	var rawDocs []bson.M
	if err = cur.All(ctx, &rawDocs); err != nil {
		log.Printf("ERROR: failed to decode property list results: %v", err)
		return []models.Property{}, "", nil
	}

	results := make([]models.Property, 0, len(rawDocs))
	for _, doc := range rawDocs {
		results = append(results, MapPropertyDocument(doc))
	}

	nextCursor := ""
	if len(results) > limit {
		results = results[:limit]
		nextCursor = EncodePropertyCursor(results[limit-1])
	}
	return results, nextCursor, nil
}

// GetProperty returns the mapped entity or mongo.ErrNoDocuments when absent.
func (s *propertyService) GetProperty(ctx context.Context, id primitive.ObjectID) (*models.Property, error) {
	if cached := s.cacheGet(ctx, id); cached != nil {
		return cached, nil
	}

	var raw bson.M
	collection := s.db.Collection(propertiesCollection)
	err := collection.FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding property %s: %w", id.Hex(), err)
	}

	property := MapPropertyDocument(raw)
	s.cacheSet(ctx, &property)
	return &property, nil
}

// CreateProperty validates the payload, filters image URLs, defaults the
// status, persists, then re-reads the stored document so the caller observes
// exactly what was persisted.
func (s *propertyService) CreateProperty(ctx context.Context, input models.PropertyInput) (*models.Property, error) {
	if err := validatePropertyInput(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := models.Property{
		Title:        input.Title,
		Description:  input.Description,
		Price:        input.Price,
		PropertyType: input.PropertyType,
		Location:     input.Location,
		Bedrooms:     input.Bedrooms,
		Bathrooms:    input.Bathrooms,
		Area:         input.Area,
		Images:       images.FilterValid(input.Images),
		Status:       models.StatusAvailable,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	collection := s.db.Collection(propertiesCollection)
	res, err := collection.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to insert property: %w", err)
	}

	insertedID, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("store returned unexpected id type %T", res.InsertedID)
	}

	var raw bson.M
	if err := collection.FindOne(ctx, bson.M{"_id": insertedID}).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to re-read created property %s: %w", insertedID.Hex(), err)
	}
	created := MapPropertyDocument(raw)
	return &created, nil
}

// UpdateProperty merges the non-nil fields of upd into the stored document,
// stamps updated_at and returns the new state.
func (s *propertyService) UpdateProperty(ctx context.Context, id primitive.ObjectID, upd models.PropertyUpdate) (*models.Property, error) {
	set, err := buildPropertyUpdate(upd)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, &ValidationError{Field: "update", Reason: "no fields provided"}
	}
	set["updated_at"] = time.Now().UTC()

	collection := s.db.Collection(propertiesCollection)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var raw bson.M
	err = collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to update property %s: %w", id.Hex(), err)
	}

	s.cacheInvalidate(ctx, id)
	updated := MapPropertyDocument(raw)
	return &updated, nil
}

// DeleteProperty removes the document. Deleting a nonexistent id is not an
// error; it simply reports non-success.
func (s *propertyService) DeleteProperty(ctx context.Context, id primitive.ObjectID) (bool, error) {
	collection := s.db.Collection(propertiesCollection)
	res, err := collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to delete property %s: %w", id.Hex(), err)
	}
	s.cacheInvalidate(ctx, id)
	return res.DeletedCount > 0, nil
}

// SearchProperties runs a text search over title/description/location. Like
// the list path, store failures degrade to an empty result set.
func (s *propertyService) SearchProperties(ctx context.Context, query string, limit int) ([]models.Property, error) {
	limit = ClampPageSize(limit, s.cfg.DefaultPageSize, s.cfg.MaxPageSize)

	filter := bson.M{"$text": bson.M{"$search": query}}
	opts := options.Find().
		SetProjection(bson.D{{Key: "score", Value: bson.M{"$meta": "textScore"}}}).
		SetSort(bson.D{{Key: "score", Value: bson.M{"$meta": "textScore"}}}).
		SetLimit(int64(limit))

	collection := s.db.Collection(propertiesCollection)
	cur, err := collection.Find(ctx, filter, opts)
	if err != nil {
		log.Printf("ERROR: property search query failed: %v", err)
		return []models.Property{}, nil
	}
	defer cur.Close(ctx)

	var rawDocs []bson.M
	if err = cur.All(ctx, &rawDocs); err != nil {
		log.Printf("ERROR: failed to decode property search results: %v", err)
		return []models.Property{}, nil
	}

	results := make([]models.Property, 0, len(rawDocs))
	for _, doc := range rawDocs {
		results = append(results, MapPropertyDocument(doc))
	}
	return results, nil
}

// AddImageToProperty appends a processed image URL to the property's image
// list. Called by the image worker after the upload has been resized; the URL
// must already be absolute.
func (s *propertyService) AddImageToProperty(ctx context.Context, id primitive.ObjectID, imageURL string) error {
	if !images.IsValidURL(imageURL) {
		return &ValidationError{Field: "images", Reason: "not an absolute URL"}
	}

	collection := s.db.Collection(propertiesCollection)
	update := bson.M{
		"$addToSet": bson.M{"images": imageURL},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}
	res, err := collection.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("failed to add image to property %s: %w", id.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	s.cacheInvalidate(ctx, id)
	return nil
}

func validatePropertyInput(input models.PropertyInput) error {
	switch {
	case input.Title == "":
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	case input.Description == "":
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	case input.Location == "":
		return &ValidationError{Field: "location", Reason: "must not be empty"}
	case input.PropertyType == "":
		return &ValidationError{Field: "property_type", Reason: "must not be empty"}
	case input.Price < 0:
		return &ValidationError{Field: "price", Reason: "must not be negative"}
	case input.Bedrooms < 0:
		return &ValidationError{Field: "bedrooms", Reason: "must not be negative"}
	case input.Bathrooms < 0:
		return &ValidationError{Field: "bathrooms", Reason: "must not be negative"}
	case input.Area < 0:
		return &ValidationError{Field: "area", Reason: "must not be negative"}
	}
	return nil
}

// buildPropertyUpdate maps the set fields of a partial update onto BSON field
// names, enforcing the same invariants as create.
func buildPropertyUpdate(upd models.PropertyUpdate) (bson.M, error) {
	set := bson.M{}
	if upd.Title != nil {
		if *upd.Title == "" {
			return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
		}
		set["title"] = *upd.Title
	}
	if upd.Description != nil {
		if *upd.Description == "" {
			return nil, &ValidationError{Field: "description", Reason: "must not be empty"}
		}
		set["description"] = *upd.Description
	}
	if upd.Price != nil {
		if *upd.Price < 0 {
			return nil, &ValidationError{Field: "price", Reason: "must not be negative"}
		}
		set["price"] = *upd.Price
	}
	if upd.PropertyType != nil {
		if *upd.PropertyType == "" {
			return nil, &ValidationError{Field: "property_type", Reason: "must not be empty"}
		}
		set["property_type"] = *upd.PropertyType
	}
	if upd.Location != nil {
		if *upd.Location == "" {
			return nil, &ValidationError{Field: "location", Reason: "must not be empty"}
		}
		set["location"] = *upd.Location
	}
	if upd.Bedrooms != nil {
		if *upd.Bedrooms < 0 {
			return nil, &ValidationError{Field: "bedrooms", Reason: "must not be negative"}
		}
		set["bedrooms"] = *upd.Bedrooms
	}
	if upd.Bathrooms != nil {
		if *upd.Bathrooms < 0 {
			return nil, &ValidationError{Field: "bathrooms", Reason: "must not be negative"}
		}
		set["bathrooms"] = *upd.Bathrooms
	}
	if upd.Area != nil {
		if *upd.Area < 0 {
			return nil, &ValidationError{Field: "area", Reason: "must not be negative"}
		}
		set["area"] = *upd.Area
	}
	if upd.Images != nil {
		set["images"] = images.FilterValid(*upd.Images)
	}
	if upd.Status != nil {
		if !models.ValidStatus(*upd.Status) {
			return nil, &ValidationError{Field: "status", Reason: "must be one of available, pending, sold"}
		}
		set["status"] = *upd.Status
	}
	return set, nil
}

// --- Redis detail-read cache ---

func propertyCacheKey(id primitive.ObjectID) string {
	return "property:" + id.Hex()
}

func (s *propertyService) cacheGet(ctx context.Context, id primitive.ObjectID) *models.Property {
	if s.rdb == nil || s.cfg.GetCacheTTL <= 0 {
		return nil
	}
	data, err := s.rdb.Get(ctx, propertyCacheKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("WARN: property cache read failed for %s: %v", id.Hex(), err)
		}
		return nil
	}
	var p models.Property
	if err := json.Unmarshal(data, &p); err != nil {
		log.Printf("WARN: dropping corrupt property cache entry %s: %v", id.Hex(), err)
		s.rdb.Del(ctx, propertyCacheKey(id))
		return nil
	}
	return &p
}

func (s *propertyService) cacheSet(ctx context.Context, p *models.Property) {
	if s.rdb == nil || s.cfg.GetCacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, propertyCacheKey(p.ID), data, s.cfg.GetCacheTTL).Err(); err != nil {
		log.Printf("WARN: property cache write failed for %s: %v", p.ID.Hex(), err)
	}
}

func (s *propertyService) cacheInvalidate(ctx context.Context, id primitive.ObjectID) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, propertyCacheKey(id)).Err(); err != nil {
		log.Printf("WARN: property cache invalidation failed for %s: %v", id.Hex(), err)
	}
}
