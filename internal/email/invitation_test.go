package email

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ronnjoshua/real-estate/internal/config"
	"github.com/ronnjoshua/real-estate/internal/models"
)

func TestBuildInvitationMessage(t *testing.T) {
	cfg := &config.Config{
		AppName:         "RealEstate",
		SmtpFromAddress: "noreply@realestate.example.com",
		FrontendBaseURL: "http://localhost:8080/",
	}
	expires := time.Date(2026, 9, 4, 12, 0, 0, 0, time.UTC)
	invitation := &models.Invitation{
		Email:     "invitee@example.com",
		Role:      models.RoleAdmin,
		Token:     "tok-abc-123",
		ExpiresAt: &expires,
	}

	subject, raw := BuildInvitationMessage(cfg, invitation)

	assert.Contains(t, subject, "RealEstate")
	body := string(raw)
	assert.Contains(t, body, "To: invitee@example.com")
	assert.Contains(t, body, "From: noreply@realestate.example.com")
	// No double slash from the trailing base URL slash.
	assert.Contains(t, body, "http://localhost:8080/accept-invitation/tok-abc-123")
	assert.NotContains(t, body, "8080//")
	assert.Contains(t, body, "as admin")
	assert.Contains(t, body, expires.Format(time.RFC1123))
}

func TestBuildInvitationMessage_NoExpiry(t *testing.T) {
	cfg := &config.Config{
		AppName:         "RealEstate",
		SmtpFromAddress: "noreply@realestate.example.com",
		FrontendBaseURL: "http://localhost:8080",
	}
	invitation := &models.Invitation{
		Email: "invitee@example.com",
		Role:  models.RoleClient,
		Token: "tok-abc-456",
	}

	_, raw := BuildInvitationMessage(cfg, invitation)
	assert.NotContains(t, string(raw), "expires on")
}
