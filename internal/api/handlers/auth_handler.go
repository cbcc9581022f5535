package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ronnjoshua/real-estate/internal/api/middleware"
	"github.com/ronnjoshua/real-estate/internal/auth"
	"github.com/ronnjoshua/real-estate/internal/config"
	"github.com/ronnjoshua/real-estate/internal/models"
	"github.com/ronnjoshua/real-estate/internal/services"
	"github.com/ronnjoshua/real-estate/internal/tasks"
)

// AuthHandler handles authentication and account management requests.
type AuthHandler struct {
	cfg               *config.Config
	userService       services.IUserService
	invitationService services.IInvitationService
	taskClient        *asynq.Client
}

// NewAuthHandler creates a new AuthHandler. taskClient may be nil; invitation
// emails are then skipped with a log line.
func NewAuthHandler(cfg *config.Config, userService services.IUserService, invitationService services.IInvitationService, taskClient *asynq.Client) *AuthHandler {
	return &AuthHandler{
		cfg:               cfg,
		userService:       userService,
		invitationService: invitationService,
		taskClient:        taskClient,
	}
}

// TokenRequest is the body for POST /v1/auth/token.
type TokenRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Token handles POST /v1/auth/token: email+password in, JWT out.
func (h *AuthHandler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect email or password"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
		return
	}

	token, err := auth.GenerateJWT(user.Email, user.Role, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   int(h.cfg.JwtTTL / time.Second),
	})
}

// Me handles GET /v1/auth/me. Requires AuthMiddleware.
func (h *AuthHandler) Me(c *gin.Context) {
	email := c.GetString(middleware.ContextKeyUserEmail)

	user, err := h.userService.FindByEmail(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// The token outlived the account.
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Account no longer exists"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve account"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// RegisterRequest is the body for POST /v1/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	FullName string `json:"full_name"`
	Password string `json:"password" binding:"required"`
}

// Register handles POST /v1/auth/register. Open registration always creates
// client accounts; admins come in through invitations.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.Email, req.FullName, req.Password, models.RoleClient)
	if err != nil {
		var vErr *services.ValidationError
		switch {
		case errors.Is(err, services.ErrEmailExists):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email already in use"})
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, user)
}

// InviteRequest is the body for POST /v1/auth/invite.
type InviteRequest struct {
	Email     string     `json:"email" binding:"required"`
	Role      string     `json:"role"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// Invite handles POST /v1/auth/invite (admin). Creates the invitation and
// queues the email delivery.
func (h *AuthHandler) Invite(c *gin.Context) {
	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	invitation, err := h.invitationService.CreateInvitation(c.Request.Context(), req.Email, req.Role, req.ExpiresAt)
	if err != nil {
		var vErr *services.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create invitation"})
		return
	}

	if h.taskClient != nil {
		if err := tasks.EnqueueInvitationEmail(c.Request.Context(), h.taskClient, invitation.Token); err != nil {
			// The invitation exists; the admin can re-send or share the
			// token manually.
			log.Printf("WARN: failed to enqueue invitation email for %s: %v", invitation.Email, err)
		}
	} else {
		log.Printf("Task client not configured, skipping invitation email for %s", invitation.Email)
	}

	c.JSON(http.StatusCreated, invitation)
}

// AcceptInvitationRequest is the body for POST /v1/auth/accept-invitation/:token.
type AcceptInvitationRequest struct {
	FullName string `json:"full_name"`
	Password string `json:"password" binding:"required"`
}

// AcceptInvitation handles POST /v1/auth/accept-invitation/:token.
func (h *AuthHandler) AcceptInvitation(c *gin.Context) {
	token := c.Param("token")

	var req AcceptInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	user, err := h.invitationService.AcceptInvitation(c.Request.Context(), token, req.FullName, req.Password)
	if err != nil {
		var vErr *services.ValidationError
		switch {
		case errors.Is(err, services.ErrInvitationInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or already used invitation"})
		case errors.Is(err, services.ErrInvitationExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invitation has expired"})
		case errors.Is(err, services.ErrEmailExists):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email already in use"})
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept invitation"})
		}
		return
	}

	c.JSON(http.StatusCreated, user)
}

// ProfileRequest is the body for PUT /v1/auth/profile.
type ProfileRequest struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UpdateProfile handles PUT /v1/auth/profile. Requires AuthMiddleware.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	email := c.GetString(middleware.ContextKeyUserEmail)

	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), email, services.ProfileUpdate{
		FullName:        req.FullName,
		Email:           req.Email,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		var vErr *services.ValidationError
		switch {
		case errors.Is(err, services.ErrEmailExists):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email already in use"})
		case errors.Is(err, services.ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Current password is incorrect"})
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Account no longer exists"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		}
		return
	}

	// A changed email invalidates the old token's subject; issue a fresh one.
	token, err := auth.GenerateJWT(user.Email, user.Role, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":         user,
		"access_token": token,
	})
}
