package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ronnjoshua/real-estate/internal/auth"
	"github.com/ronnjoshua/real-estate/internal/db"
	"github.com/ronnjoshua/real-estate/internal/models"
)

// ErrEmailExists is returned when an attempt is made to use an email that already exists.
var ErrEmailExists = errors.New("email already in use by another account")

// ErrInvalidCredentials is returned on a failed email/password check.
var ErrInvalidCredentials = errors.New("incorrect email or password")

// ProfileUpdate carries the self-service profile change fields. A password
// change requires CurrentPassword to be set and correct.
type ProfileUpdate struct {
	FullName        string
	Email           string
	CurrentPassword string
	NewPassword     string
}

// IUserService defines the interface for user-related operations.
type IUserService interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Register(ctx context.Context, email, fullName, password, role string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	UpdateProfile(ctx context.Context, currentEmail string, upd ProfileUpdate) (*models.User, error)
}

const usersCollection = "users"

type userService struct {
	db *mongo.Database
}

// NewUserService creates a new UserService.
func NewUserService(db *mongo.Database) IUserService {
	return &userService{db: db}
}

// FindByEmail finds a user by email address.
// Returns nil and mongo.ErrNoDocuments if not found.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(usersCollection)

	err := collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}
	return &user, nil
}

// Register creates an active user with a hashed password. Role defaults to
// client; email uniqueness is enforced by the unique index, with the count
// check up front to give a clean error on the common path.
func (s *userService) Register(ctx context.Context, email, fullName, password, role string) (*models.User, error) {
	if email == "" {
		return nil, &ValidationError{Field: "email", Reason: "must not be empty"}
	}
	if password == "" {
		return nil, &ValidationError{Field: "password", Reason: "must not be empty"}
	}
	if role == "" {
		role = models.RoleClient
	}
	if !models.ValidRole(role) {
		return nil, &ValidationError{Field: "role", Reason: "must be admin or client"}
	}

	collection := s.db.Collection(usersCollection)
	count, err := collection.CountDocuments(ctx, bson.M{"email": email})
	if err != nil {
		return nil, fmt.Errorf("error checking email uniqueness for %s: %w", email, err)
	}
	if count > 0 {
		return nil, ErrEmailExists
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := models.User{
		Email:          email,
		FullName:       fullName,
		HashedPassword: hashed,
		Role:           role,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	res, err := collection.InsertOne(ctx, user)
	if err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			// Lost the race against a concurrent registration.
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to insert user %s: %w", email, err)
	}
	if insertedID, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = insertedID
	}
	return &user, nil
}

// Authenticate verifies the email/password pair and returns the user.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if !auth.CheckPasswordHash(password, user.HashedPassword) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// UpdateProfile changes full name, email and optionally the password of the
// user identified by currentEmail. An email change is rejected when the new
// address is taken; a password change requires the current password.
func (s *userService) UpdateProfile(ctx context.Context, currentEmail string, upd ProfileUpdate) (*models.User, error) {
	user, err := s.FindByEmail(ctx, currentEmail)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.FullName != "" {
		set["full_name"] = upd.FullName
	}

	if upd.Email != "" && upd.Email != user.Email {
		count, err := s.db.Collection(usersCollection).CountDocuments(ctx, bson.M{"email": upd.Email})
		if err != nil {
			return nil, fmt.Errorf("error checking email uniqueness for %s: %w", upd.Email, err)
		}
		if count > 0 {
			return nil, ErrEmailExists
		}
		set["email"] = upd.Email
	}

	if upd.NewPassword != "" {
		if upd.CurrentPassword == "" {
			return nil, &ValidationError{Field: "current_password", Reason: "required to set a new password"}
		}
		if !auth.CheckPasswordHash(upd.CurrentPassword, user.HashedPassword) {
			return nil, ErrInvalidCredentials
		}
		hashed, err := auth.HashPassword(upd.NewPassword)
		if err != nil {
			return nil, err
		}
		set["hashed_password"] = hashed
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.User
	err = s.db.Collection(usersCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": user.ID}, bson.M{"$set": set}, opts).
		Decode(&updated)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile for %s: %w", currentEmail, err)
	}
	return &updated, nil
}
