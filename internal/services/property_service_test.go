package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ronnjoshua/real-estate/internal/config"
	"github.com/ronnjoshua/real-estate/internal/models"
	"github.com/ronnjoshua/real-estate/internal/utils"
)

func setupTestDBProperties(t *testing.T, dbName string) *mongo.Database {
	return utils.SetupTestDB(t, dbName, "properties")
}

func testConfig() *config.Config {
	return &config.Config{
		DefaultPageSize:     10,
		MaxPageSize:         100,
		PlaceholderImageURL: "https://placehold.co/600x400?text=No+Image",
	}
}

func sampleInput(title string) models.PropertyInput {
	return models.PropertyInput{
		Title:        title,
		Description:  "Test description",
		Price:        250000,
		PropertyType: "house",
		Location:     "Quezon City",
		Bedrooms:     3,
		Bathrooms:    2,
		Area:         1200,
		Images:       []string{},
	}
}

func TestPropertyService_CreateAndGet(t *testing.T) {
	db := setupTestDBProperties(t, "testdb_property_create_get")
	svc := NewPropertyService(db, testConfig(), nil)
	ctx := context.Background()

	input := sampleInput("Create Me")
	input.Images = []string{"http://ok.com/a.jpg", "not a url", "https://ok.com/b.jpg"}

	created, err := svc.CreateProperty(ctx, input)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.False(t, created.ID.IsZero())
	assert.Equal(t, models.StatusAvailable, created.Status)
	assert.False(t, created.CreatedAt.IsZero())
	// Invalid image entries must never reach the store.
	assert.Equal(t, []string{"http://ok.com/a.jpg", "https://ok.com/b.jpg"}, created.Images)

	found, err := svc.GetProperty(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, input.Title, found.Title)
	assert.Equal(t, input.Price, found.Price)
	assert.Equal(t, created.Images, found.Images)
}

func TestPropertyService_GetNotFound(t *testing.T) {
	db := setupTestDBProperties(t, "testdb_property_get_missing")
	svc := NewPropertyService(db, testConfig(), nil)

	_, err := svc.GetProperty(context.Background(), primitive.NewObjectID())
	assert.True(t, errors.Is(err, mongo.ErrNoDocuments))
}

func TestPropertyService_CreateValidation(t *testing.T) {
	db := setupTestDBProperties(t, "testdb_property_create_validation")
	svc := NewPropertyService(db, testConfig(), nil)
	ctx := context.Background()

	missingTitle := sampleInput("")
	_, err := svc.CreateProperty(ctx, missingTitle)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "title", vErr.Field)

	negativePrice := sampleInput("Bad Price")
	negativePrice.Price = -1
	_, err = svc.CreateProperty(ctx, negativePrice)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "price", vErr.Field)
}

func TestPropertyService_UpdatePartial(t *testing.T) {
	db := setupTestDBProperties(t, "testdb_property_update")
	svc := NewPropertyService(db, testConfig(), nil)
	ctx := context.Background()

	created, err := svc.CreateProperty(ctx, sampleInput("Before Update"))
	require.NoError(t, err)

	newPrice := 199999.0
	updated, err := svc.UpdateProperty(ctx, created.ID, models.PropertyUpdate{Price: &newPrice})
	require.NoError(t, err)
	assert.Equal(t, newPrice, updated.Price)
	// Everything else stays as it was.
	assert.Equal(t, created.Title, updated.Title)
	assert.Equal(t, created.Bedrooms, updated.Bedrooms)
	assert.Equal(t, created.Status, updated.Status)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt) || updated.UpdatedAt.Equal(created.UpdatedAt))

	found, err := svc.GetProperty(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, newPrice, found.Price)
	assert.Equal(t, created.Title, found.Title)
}

func TestPropertyService_UpdateValidation(t *testing.T) {
	db := setupTestDBProperties(t, "testdb_property_update_validation")
	svc := NewPropertyService(db, testConfig(), nil)
	ctx := context.Background()

	created, err := svc.CreateProperty(ctx, sampleInput("Update Validation"))
	require.NoError(t, err)

	badStatus := "withdrawn"
	_, err = svc.UpdateProperty(ctx, created.ID, models.PropertyUpdate{Status: &badStatus})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "status", vErr.Field)

	_, err = svc.UpdateProperty(ctx, created.ID, models.PropertyUpdate{})
	require.ErrorAs(t, err, &vErr)

	// Image URLs are filtered on update exactly as on create.
	imgs := []string{"https://ok.com/c.jpg", "bogus"}
	updated, err := svc.UpdateProperty(ctx, created.ID, models.PropertyUpdate{Images: &imgs})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://ok.com/c.jpg"}, updated.Images)
}

func TestPropertyService_UpdateMissing(t *testing.T) {
	db := setupTestDBProperties(t, "testdb_property_update_missing")
	svc := NewPropertyService(db, testConfig(), nil)

	title := "New Title"
	_, err := svc.UpdateProperty(context.Background(), primitive.NewObjectID(), models.PropertyUpdate{Title: &title})
	assert.True(t, errors.Is(err, mongo.ErrNoDocuments))
}

func TestPropertyService_DeleteIdempotent(t *testing.T) {
	db := setupTestDBProperties(t, "testdb_property_delete")
	svc := NewPropertyService(db, testConfig(), nil)
	ctx := context.Background()

	created, err := svc.CreateProperty(ctx, sampleInput("Delete Me"))
	require.NoError(t, err)

	deleted, err := svc.DeleteProperty(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = svc.GetProperty(ctx, created.ID)
	assert.True(t, errors.Is(err, mongo.ErrNoDocuments))

	// Deleting again reports non-success without raising.
	deleted, err = svc.DeleteProperty(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestPropertyService_ListFilters(t *testing.T) {
	db := setupTestDBProperties(t, "testdb_property_list_filters")
	svc := NewPropertyService(db, testConfig(), nil)
	ctx := context.Background()

	house := sampleInput("Affordable House")
	house.Price = 250000
	house.PropertyType = "house"
	created, err := svc.CreateProperty(ctx, house)
	require.NoError(t, err)

	condo := sampleInput("Expensive Condo")
	condo.Price = 500000
	condo.PropertyType = "condo"
	condo.Location = "Makati"
	_, err = svc.CreateProperty(ctx, condo)
	require.NoError(t, err)

	// Price range includes the house.
	minP, maxP := 200000.0, 300000.0
	results, _, err := svc.ListProperties(ctx, models.PropertyFilter{MinPrice: &minP, MaxPrice: &maxP}, 10, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, created.ID, results[0].ID)

	// Type filter excludes the house.
	condoType := "condo"
	results, _, err = svc.ListProperties(ctx, models.PropertyFilter{PropertyType: &condoType}, 10, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Expensive Condo", results[0].Title)

	// Location equality.
	loc := "Makati"
	results, _, err = svc.ListProperties(ctx, models.PropertyFilter{Location: &loc}, 10, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Expensive Condo", results[0].Title)
}

func TestPropertyService_ListPagination(t *testing.T) {
	db := setupTestDBProperties(t, "testdb_property_list_pagination")
	svc := NewPropertyService(db, testConfig(), nil)
	ctx := context.Background()

	total := 7
	for i := 0; i < total; i++ {
		input := sampleInput("Paged " + string(rune('A'+i)))
		_, err := svc.CreateProperty(ctx, input)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond) // distinct created_at values
	}

	seen := map[primitive.ObjectID]bool{}
	cursor := ""
	pages := 0
	for {
		page, next, err := svc.ListProperties(ctx, models.PropertyFilter{}, 3, cursor)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(page), 3)
		for _, p := range page {
			assert.False(t, seen[p.ID], "item %s repeated across pages", p.ID.Hex())
			seen[p.ID] = true
		}
		pages++
		if next == "" {
			break
		}
		cursor = next
		require.Less(t, pages, 10, "pagination did not terminate")
	}
	assert.Len(t, seen, total, "pagination skipped items")
}

func TestPropertyService_ListNewestFirst(t *testing.T) {
	db := setupTestDBProperties(t, "testdb_property_list_order")
	svc := NewPropertyService(db, testConfig(), nil)
	ctx := context.Background()

	_, err := svc.CreateProperty(ctx, sampleInput("Older"))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	newest, err := svc.CreateProperty(ctx, sampleInput("Newer"))
	require.NoError(t, err)

	results, _, err := svc.ListProperties(ctx, models.PropertyFilter{}, 10, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, newest.ID, results[0].ID)
}

func TestPropertyService_AddImageToProperty(t *testing.T) {
	db := setupTestDBProperties(t, "testdb_property_add_image")
	svc := NewPropertyService(db, testConfig(), nil)
	ctx := context.Background()

	created, err := svc.CreateProperty(ctx, sampleInput("With Image"))
	require.NoError(t, err)

	err = svc.AddImageToProperty(ctx, created.ID, "https://cdn.example.com/processed.jpg")
	require.NoError(t, err)

	found, err := svc.GetProperty(ctx, created.ID)
	require.NoError(t, err)
	assert.Contains(t, found.Images, "https://cdn.example.com/processed.jpg")

	err = svc.AddImageToProperty(ctx, created.ID, "not a url")
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	err = svc.AddImageToProperty(ctx, primitive.NewObjectID(), "https://cdn.example.com/x.jpg")
	assert.True(t, errors.Is(err, mongo.ErrNoDocuments))
}
