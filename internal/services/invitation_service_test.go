package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ronnjoshua/real-estate/internal/config"
	"github.com/ronnjoshua/real-estate/internal/models"
	"github.com/ronnjoshua/real-estate/internal/utils"
)

func setupInvitationService(t *testing.T, dbName string) (IInvitationService, IUserService, *mongo.Database) {
	db := utils.SetupTestDB(t, dbName, "invitations", "users")
	userSvc := NewUserService(db)
	cfg := &config.Config{InvitationTTL: 72 * time.Hour}
	return NewInvitationService(db, cfg, userSvc), userSvc, db
}

func TestInvitationService_CreateInvitation(t *testing.T) {
	svc, _, _ := setupInvitationService(t, "testdb_invitation_create")
	ctx := context.Background()

	inv, err := svc.CreateInvitation(ctx, "ivan@example.com", models.RoleAdmin, nil)
	require.NoError(t, err)
	assert.False(t, inv.ID.IsZero())
	assert.NotEmpty(t, inv.Token)
	assert.Equal(t, models.RoleAdmin, inv.Role)
	assert.False(t, inv.IsUsed)
	require.NotNil(t, inv.ExpiresAt, "default TTL applies when no expiry given")
	assert.True(t, inv.ExpiresAt.After(time.Now().UTC()))

	found, err := svc.GetByToken(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, found.ID)

	_, err = svc.GetByToken(ctx, "no-such-token")
	assert.True(t, errors.Is(err, mongo.ErrNoDocuments))
}

func TestInvitationService_CreateInvitationValidation(t *testing.T) {
	svc, _, _ := setupInvitationService(t, "testdb_invitation_validation")
	ctx := context.Background()

	var vErr *ValidationError
	_, err := svc.CreateInvitation(ctx, "", models.RoleClient, nil)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "email", vErr.Field)

	_, err = svc.CreateInvitation(ctx, "judy@example.com", "overlord", nil)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "role", vErr.Field)

	// Empty role falls back to client.
	inv, err := svc.CreateInvitation(ctx, "judy@example.com", "", nil)
	require.NoError(t, err)
	assert.Equal(t, models.RoleClient, inv.Role)
}

func TestInvitationService_AcceptInvitation(t *testing.T) {
	svc, userSvc, _ := setupInvitationService(t, "testdb_invitation_accept")
	ctx := context.Background()

	inv, err := svc.CreateInvitation(ctx, "kate@example.com", models.RoleAdmin, nil)
	require.NoError(t, err)

	user, err := svc.AcceptInvitation(ctx, inv.Token, "Kate Santos", "invited-pass")
	require.NoError(t, err)
	assert.Equal(t, "kate@example.com", user.Email)
	assert.Equal(t, models.RoleAdmin, user.Role, "registered with the invited role")

	// The new account can authenticate immediately.
	_, err = userSvc.Authenticate(ctx, "kate@example.com", "invited-pass")
	assert.NoError(t, err)

	// Second accept with the same token is rejected.
	_, err = svc.AcceptInvitation(ctx, inv.Token, "Kate Again", "other-pass")
	assert.True(t, errors.Is(err, ErrInvitationInvalid))
}

func TestInvitationService_AcceptExpired(t *testing.T) {
	svc, _, _ := setupInvitationService(t, "testdb_invitation_expired")
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	inv, err := svc.CreateInvitation(ctx, "leo@example.com", "", &past)
	require.NoError(t, err)

	_, err = svc.AcceptInvitation(ctx, inv.Token, "Leo", "some-pass")
	assert.True(t, errors.Is(err, ErrInvitationExpired))
}

func TestInvitationService_AcceptUnknownToken(t *testing.T) {
	svc, _, _ := setupInvitationService(t, "testdb_invitation_unknown")

	_, err := svc.AcceptInvitation(context.Background(), "bogus-token", "Mallory", "pass")
	assert.True(t, errors.Is(err, ErrInvitationInvalid))
}

func TestInvitationService_AcceptRollsBackWhenRegistrationFails(t *testing.T) {
	svc, userSvc, _ := setupInvitationService(t, "testdb_invitation_rollback")
	ctx := context.Background()

	// An account with the invited email already exists, so registration fails.
	_, err := userSvc.Register(ctx, "nina@example.com", "Nina", "existing-pass", "")
	require.NoError(t, err)

	inv, err := svc.CreateInvitation(ctx, "nina@example.com", "", nil)
	require.NoError(t, err)

	_, err = svc.AcceptInvitation(ctx, inv.Token, "Nina Again", "new-pass")
	assert.True(t, errors.Is(err, ErrEmailExists))

	// The token stays usable after the failed accept.
	found, err := svc.GetByToken(ctx, inv.Token)
	require.NoError(t, err)
	assert.False(t, found.IsUsed)
}
