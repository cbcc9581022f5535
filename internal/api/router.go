package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ronnjoshua/real-estate/internal/api/handlers"
	"github.com/ronnjoshua/real-estate/internal/api/middleware"
	"github.com/ronnjoshua/real-estate/internal/config"
	"github.com/ronnjoshua/real-estate/internal/services"
	"github.com/ronnjoshua/real-estate/internal/storage"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient *asynq.Client) *gin.Engine {
	// Initialize services needed by API handlers.
	userService := services.NewUserService(db)
	invitationService := services.NewInvitationService(db, cfg, userService)
	propertyService := services.NewPropertyService(db, cfg, rdb)

	var s3StorageService storage.IS3Storage
	if cfg.AwsS3Bucket != "" {
		var err error
		s3StorageService, err = storage.NewS3Storage(cfg)
		if err != nil {
			log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
		}
	} else {
		log.Println("AWS_S3_BUCKET not configured, image upload routes disabled.")
	}

	r := gin.Default()

	// Apply global middleware first (order matters)
	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	// Initialize handlers
	propertyHandler := handlers.NewPropertyHandler(propertyService, s3StorageService, taskClient)
	authHandler := handlers.NewAuthHandler(cfg, userService, invitationService, taskClient)

	v1 := r.Group("/v1")
	{
		// Public routes (rate limiting already applied globally)
		v1.GET("/properties", propertyHandler.ListProperties)
		v1.GET("/properties/search", propertyHandler.SearchProperties)
		v1.GET("/properties/:id", propertyHandler.GetPropertyByID)

		v1.POST("/auth/token", authHandler.Token)
		v1.POST("/auth/register", authHandler.Register)
		v1.POST("/auth/accept-invitation/:token", authHandler.AcceptInvitation)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Authenticated routes
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.GET("/auth/me", authHandler.Me)
			authRequired.PUT("/auth/profile", authHandler.UpdateProfile)
		}

		// Admin routes
		adminRequired := v1.Group("/")
		adminRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
		{
			adminRequired.POST("/properties", propertyHandler.CreateProperty)
			adminRequired.PUT("/properties/:id", propertyHandler.UpdateProperty)
			adminRequired.DELETE("/properties/:id", propertyHandler.DeleteProperty)
			adminRequired.POST("/properties/:id/images", propertyHandler.RequestImageUpload)
			adminRequired.POST("/properties/:id/images/process", propertyHandler.ConfirmImageUpload)

			adminRequired.POST("/auth/invite", authHandler.Invite)
		}
	}

	return r
}

// SetupServiceRouter configures and returns the service Gin engine used by
// integration tooling: remote shutdown plus retrieval of mock emails captured
// in Redis.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			fmt.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
				fmt.Println("Shutdown signal sent successfully.")
			default:
				fmt.Println("Shutdown channel already signaled or blocked.")
			}
		case "getTestEmail":
			var args []string // Expect ["kind", "email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [kind, email]"})
				return
			}
			kind := args[0]
			emailAddr := args[1]
			redisKey := fmt.Sprintf("mockemail:%s:%s", emailAddr, kind)

			// Poll Redis briefly; the background worker may still be
			// delivering the email when the test asks for it.
			var emailJsonData string
			var getErr error
			found := false
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			for i := 0; i < 10; i++ {
				emailJsonData, getErr = rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					found = true
					rdb.Del(ctx, redisKey)
					break
				}
				if getErr != redis.Nil {
					log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, getErr)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				time.Sleep(200 * time.Millisecond)
			}

			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
				return
			}

			var emailData map[string]interface{}
			if err := json.Unmarshal([]byte(emailJsonData), &emailData); err != nil {
				log.Printf("Service API: Error unmarshalling email data from key %s: %v", redisKey, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
				return
			}

			c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
