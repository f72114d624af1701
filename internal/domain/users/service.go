package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// Enricher fetches external data for a user. Implementations never fail;
// they return an empty map when the data is unavailable.
type Enricher interface {
	GetUserData(ctx context.Context, userID int64) map[string]any
}

// Repository is the storage the service needs
type Repository interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, name, email string) (User, error)
}

// Service implements the users use cases
type Service struct {
	repo     Repository
	enricher Enricher
	logger   *zap.Logger
}

// NewService creates a users service. A nil enricher leaves profiles
// without external data.
func NewService(repo Repository, enricher Enricher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, enricher: enricher, logger: logger}
}

// List returns all users
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Get returns a user with external data. The external service is only
// called for users that exist.
func (s *Service) Get(ctx context.Context, id int64) (Profile, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return Profile{}, err
	}

	p := Profile{User: u, ExternalData: map[string]any{}}
	if s.enricher != nil {
		p.ExternalData = s.enricher.GetUserData(ctx, id)
	}
	return p, nil
}

// Create validates and stores a new user
func (s *Service) Create(ctx context.Context, name, email string) (User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return User{}, fmt.Errorf("%w: name and email are required", ErrInvalid)
	}

	u, err := s.repo.Create(ctx, name, email)
	if err != nil {
		return User{}, err
	}
	logging.FromContext(s.logger, ctx).Info("user created", zap.Int64("user_id", u.ID))
	return u, nil
}
