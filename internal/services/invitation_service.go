package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ronnjoshua/real-estate/internal/config"
	"github.com/ronnjoshua/real-estate/internal/db"
	"github.com/ronnjoshua/real-estate/internal/models"
)

// ErrInvitationInvalid is returned for unknown or already-consumed tokens.
var ErrInvitationInvalid = errors.New("invalid or used invitation token")

// ErrInvitationExpired is returned when the invitation's expiry has passed.
var ErrInvitationExpired = errors.New("invitation has expired")

// IInvitationService defines the interface for invitation operations.
type IInvitationService interface {
	CreateInvitation(ctx context.Context, email, role string, expiresAt *time.Time) (*models.Invitation, error)
	GetByToken(ctx context.Context, token string) (*models.Invitation, error)
	// AcceptInvitation consumes an invitation exactly once and registers the
	// recipient with the invited role.
	AcceptInvitation(ctx context.Context, token, fullName, password string) (*models.User, error)
}

const invitationsCollection = "invitations"

type invitationService struct {
	db          *mongo.Database
	cfg         *config.Config
	userService IUserService
}

// NewInvitationService creates a new InvitationService.
func NewInvitationService(database *mongo.Database, cfg *config.Config, userService IUserService) IInvitationService {
	return &invitationService{db: database, cfg: cfg, userService: userService}
}

// CreateInvitation issues a single-use invitation token for an email/role
// pair. When no explicit expiry is given the configured invitation TTL
// applies. Token collisions against the unique index are retried with a
// freshly generated token.
func (s *invitationService) CreateInvitation(ctx context.Context, email, role string, expiresAt *time.Time) (*models.Invitation, error) {
	if email == "" {
		return nil, &ValidationError{Field: "email", Reason: "must not be empty"}
	}
	if role == "" {
		role = models.RoleClient
	}
	if !models.ValidRole(role) {
		return nil, &ValidationError{Field: "role", Reason: "must be admin or client"}
	}

	if expiresAt == nil && s.cfg.InvitationTTL > 0 {
		t := time.Now().UTC().Add(s.cfg.InvitationTTL)
		expiresAt = &t
	}

	collection := s.db.Collection(invitationsCollection)

	var invitation models.Invitation
	operation := func() error {
		invitation = models.Invitation{
			Email:     email,
			Role:      role,
			Token:     uuid.NewString(),
			CreatedAt: time.Now().UTC(),
			ExpiresAt: expiresAt,
			IsUsed:    false,
		}
		res, insertErr := collection.InsertOne(ctx, invitation)
		if insertErr != nil {
			return insertErr
		}
		if id, ok := res.InsertedID.(primitive.ObjectID); ok {
			invitation.ID = id
		}
		return nil
	}

	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to create invitation for %s after retries: %w", email, err)
	}
	return &invitation, nil
}

// GetByToken looks up an invitation by its token. Returns mongo.ErrNoDocuments
// when absent.
func (s *invitationService) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	var invitation models.Invitation
	collection := s.db.Collection(invitationsCollection)

	err := collection.FindOne(ctx, bson.M{"token": token}).Decode(&invitation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding invitation by token: %w", err)
	}
	return &invitation, nil
}

// AcceptInvitation registers the user and flips is_used. The conditional
// update on is_used=false is what guarantees exactly-once consumption under
// concurrent accepts.
func (s *invitationService) AcceptInvitation(ctx context.Context, token, fullName, password string) (*models.User, error) {
	invitation, err := s.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvitationInvalid
		}
		return nil, err
	}
	if invitation.IsUsed {
		return nil, ErrInvitationInvalid
	}
	if invitation.ExpiresAt != nil && invitation.ExpiresAt.Before(time.Now().UTC()) {
		return nil, ErrInvitationExpired
	}

	collection := s.db.Collection(invitationsCollection)
	res, err := collection.UpdateOne(ctx,
		bson.M{"token": token, "is_used": false},
		bson.M{"$set": bson.M{"is_used": true}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume invitation: %w", err)
	}
	if res.ModifiedCount == 0 {
		// Another accept won the race.
		return nil, ErrInvitationInvalid
	}

	user, err := s.userService.Register(ctx, invitation.Email, fullName, password, invitation.Role)
	if err != nil {
		// Roll the consumption back so the invitation stays usable; the
		// registration failed before any account existed.
		_, rollbackErr := collection.UpdateOne(ctx,
			bson.M{"token": token},
			bson.M{"$set": bson.M{"is_used": false}},
		)
		if rollbackErr != nil {
			return nil, fmt.Errorf("registration failed (%v) and invitation rollback failed: %w", err, rollbackErr)
		}
		return nil, err
	}
	return user, nil
}
