package handlers_test

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ronnjoshua/real-estate/internal/models"
	"github.com/ronnjoshua/real-estate/internal/services"
)

// --- Mocks ---

// MockPropertyService implements services.IPropertyService
type MockPropertyService struct {
	mock.Mock
}

func (m *MockPropertyService) ListProperties(ctx context.Context, filter models.PropertyFilter, limit int, cursor string) ([]models.Property, string, error) {
	args := m.Called(ctx, filter, limit, cursor)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]models.Property), args.String(1), args.Error(2)
}

func (m *MockPropertyService) GetProperty(ctx context.Context, id primitive.ObjectID) (*models.Property, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *MockPropertyService) CreateProperty(ctx context.Context, input models.PropertyInput) (*models.Property, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *MockPropertyService) UpdateProperty(ctx context.Context, id primitive.ObjectID, upd models.PropertyUpdate) (*models.Property, error) {
	args := m.Called(ctx, id, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *MockPropertyService) DeleteProperty(ctx context.Context, id primitive.ObjectID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockPropertyService) SearchProperties(ctx context.Context, query string, limit int) ([]models.Property, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Property), args.Error(1)
}

func (m *MockPropertyService) AddImageToProperty(ctx context.Context, id primitive.ObjectID, imageURL string) error {
	args := m.Called(ctx, id, imageURL)
	return args.Error(0)
}

// MockUserService implements services.IUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Register(ctx context.Context, email, fullName, password, role string) (*models.User, error) {
	args := m.Called(ctx, email, fullName, password, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) UpdateProfile(ctx context.Context, currentEmail string, upd services.ProfileUpdate) (*models.User, error) {
	args := m.Called(ctx, currentEmail, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockInvitationService implements services.IInvitationService
type MockInvitationService struct {
	mock.Mock
}

func (m *MockInvitationService) CreateInvitation(ctx context.Context, email, role string, expiresAt *time.Time) (*models.Invitation, error) {
	args := m.Called(ctx, email, role, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invitation), args.Error(1)
}

func (m *MockInvitationService) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invitation), args.Error(1)
}

func (m *MockInvitationService) AcceptInvitation(ctx context.Context, token, fullName, password string) (*models.User, error) {
	args := m.Called(ctx, token, fullName, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockS3Storage implements storage.IS3Storage
type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) GeneratePresignedPutURL(ctx context.Context, propertyID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, propertyID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockS3Storage) ObjectURL(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockS3Storage) Client() *s3.Client {
	return nil
}
