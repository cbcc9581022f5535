package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ronnjoshua/real-estate/internal/models"
	"github.com/ronnjoshua/real-estate/internal/services"
	"github.com/ronnjoshua/real-estate/internal/storage"
	"github.com/ronnjoshua/real-estate/internal/tasks"
)

// PropertyHandler handles REST requests for property listings.
type PropertyHandler struct {
	propertyService services.IPropertyService
	storageService  storage.IS3Storage
	taskClient      *asynq.Client
}

// NewPropertyHandler creates a new PropertyHandler. storageService and
// taskClient may be nil when the image pipeline is not configured; the image
// routes then answer 503.
func NewPropertyHandler(propertyService services.IPropertyService, storageService storage.IS3Storage, taskClient *asynq.Client) *PropertyHandler {
	return &PropertyHandler{
		propertyService: propertyService,
		storageService:  storageService,
		taskClient:      taskClient,
	}
}

// ListProperties handles GET /v1/properties
func (h *PropertyHandler) ListProperties(c *gin.Context) {
	var filter models.PropertyFilter

	if v := c.Query("property_type"); v != "" {
		filter.PropertyType = &v
	}
	if v := c.Query("location"); v != "" {
		filter.Location = &v
	}
	if v := c.Query("min_price"); v != "" {
		minPrice, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid min_price"})
			return
		}
		filter.MinPrice = &minPrice
	}
	if v := c.Query("max_price"); v != "" {
		maxPrice, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid max_price"})
			return
		}
		filter.MaxPrice = &maxPrice
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	cursor := c.Query("cursor")

	// The service clamps the limit and degrades store failures to an empty
	// page, so this endpoint always answers 200.
	properties, nextCursor, err := h.propertyService.ListProperties(c.Request.Context(), filter, limit, cursor)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list properties"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":        properties,
		"next_cursor": nextCursor,
	})
}

// SearchProperties handles GET /v1/properties/search
func (h *PropertyHandler) SearchProperties(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'q' is required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	properties, err := h.propertyService.SearchProperties(c.Request.Context(), query, limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search properties"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": properties})
}

// GetPropertyByID handles GET /v1/properties/:id
func (h *PropertyHandler) GetPropertyByID(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID format"})
		return
	}

	property, err := h.propertyService.GetProperty(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve property"})
		}
		return
	}

	c.JSON(http.StatusOK, property)
}

// CreateProperty handles POST /v1/properties (admin)
func (h *PropertyHandler) CreateProperty(c *gin.Context) {
	var input models.PropertyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	property, err := h.propertyService.CreateProperty(c.Request.Context(), input)
	if err != nil {
		var vErr *services.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create property"})
		return
	}

	c.JSON(http.StatusCreated, property)
}

// UpdateProperty handles PUT /v1/properties/:id (admin)
func (h *PropertyHandler) UpdateProperty(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID format"})
		return
	}

	var upd models.PropertyUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	property, err := h.propertyService.UpdateProperty(c.Request.Context(), id, upd)
	if err != nil {
		var vErr *services.ValidationError
		switch {
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update property"})
		}
		return
	}

	c.JSON(http.StatusOK, property)
}

// DeleteProperty handles DELETE /v1/properties/:id (admin). Deleting an
// absent property is not an error; the response reports whether anything
// was removed.
func (h *PropertyHandler) DeleteProperty(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID format"})
		return
	}

	deleted, err := h.propertyService.DeleteProperty(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete property"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// ImageUploadRequest is the body for requesting a presigned upload URL.
type ImageUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// RequestImageUpload handles POST /v1/properties/:id/images (admin).
// Returns a presigned S3 PUT URL and the object key the client must use.
func (h *PropertyHandler) RequestImageUpload(c *gin.Context) {
	if h.storageService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Image storage not configured"})
		return
	}

	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID format"})
		return
	}

	var req ImageUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	// The property must exist before we hand out an upload slot.
	if _, err := h.propertyService.GetProperty(c.Request.Context(), id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve property"})
		}
		return
	}

	uploadURL, s3Key, err := h.storageService.GeneratePresignedPutURL(c.Request.Context(), id.Hex(), req.Filename, req.ContentType)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate upload URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"upload_url": uploadURL,
		"s3_key":     s3Key,
	})
}

// ImageProcessRequest is the body confirming a completed upload.
type ImageProcessRequest struct {
	S3Key string `json:"s3_key" binding:"required"`
}

// ConfirmImageUpload handles POST /v1/properties/:id/images/process (admin).
// Enqueues the background task that resizes the uploaded object and attaches
// its public URL to the property.
func (h *PropertyHandler) ConfirmImageUpload(c *gin.Context) {
	if h.taskClient == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Image processing not configured"})
		return
	}

	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID format"})
		return
	}

	var req ImageProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := tasks.EnqueueImageProcess(c.Request.Context(), h.taskClient, req.S3Key, id.Hex()); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue image processing"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}
