package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jurypanel/jurypanel/localstore"
	"github.com/jurypanel/jurypanel/models"
	"github.com/jurypanel/jurypanel/repositories"
)

// Local key-value keys shared across services.
const (
	lastUsernameKey    = "lastUsername"
	globalUsersKey     = "globalUsers"
	globalAllScoresKey = "globalAllScores"
	sessionKeyPrefix   = "currentSession:"
)

type LoginInput struct {
	Name string `json:"name" validate:"required"`
	// Password carries the shared admin passphrase when AdminLogin is set.
	// Regular names need no credential: identity is by name, a deliberate
	// (and deliberately weak) policy inherited from the deployment this
	// replaces.
	Password   string `json:"password,omitempty"`
	AdminLogin bool   `json:"admin_login,omitempty"`
}

type AuthService interface {
	// Login resolves a human to a persistent user record: an existing name
	// reattaches to its user id, a new name creates a user. Logging in
	// under an admin-owned name without the passphrase is rejected.
	Login(ctx context.Context, input LoginInput) (*models.User, error)

	// RequireAdmin is the capability guard for admin-only operations.
	RequireAdmin(user *models.User) error

	// ListUsers reads the user set, falling back to the local cache when
	// the document store is unreachable.
	ListUsers(ctx context.Context) ([]models.User, error)

	GetUser(ctx context.Context, id string) (*models.User, error)

	// LastUsername is a login-form convenience, best effort.
	LastUsername() string
}

type authService struct {
	users     repositories.UserRepository
	local     localstore.Store
	adminHash []byte
	logger    *slog.Logger
}

func NewAuthService(users repositories.UserRepository, local localstore.Store, adminPassphrase string, logger *slog.Logger) (AuthService, error) {
	if adminPassphrase == "" {
		return nil, errors.New("admin passphrase must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassphrase), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin passphrase: %w", err)
	}
	return &authService{
		users:     users,
		local:     local,
		adminHash: hash,
		logger:    logger,
	}, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*models.User, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	if input.AdminLogin {
		if bcrypt.CompareHashAndPassword(s.adminHash, []byte(input.Password)) != nil {
			return nil, ErrInvalidAdminPassphrase
		}
	}

	if err := s.local.Set(lastUsernameKey, name); err != nil {
		s.logger.Warn("failed to persist last username", slog.Any("error", err))
	}

	existing, err := s.users.GetByName(ctx, name)
	switch {
	case err == nil:
		// An admin-owned name stays admin-only: a plain login attempt must
		// go through the admin form instead.
		if existing.IsAdmin && !input.AdminLogin {
			return nil, ErrAdminNameReserved
		}
		s.refreshUserCache(ctx)
		return existing, nil

	case errors.Is(err, repositories.ErrUserNotFound):
		user := &models.User{
			ID:      uuid.NewString(),
			Name:    name,
			IsAdmin: input.AdminLogin,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		s.refreshUserCache(ctx)
		return user, nil

	default:
		return nil, fmt.Errorf("failed to look up user by name: %w", err)
	}
}

func (s *authService) RequireAdmin(user *models.User) error {
	if user == nil || !user.IsAdmin {
		return ErrAdminRequired
	}
	return nil
}

func (s *authService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		s.logger.Error("user list read failed, trying cache", slog.Any("error", err))
		if cached, cacheErr := s.cachedUsers(); cacheErr == nil {
			return cached, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.writeUserCache(users)
	return users, nil
}

func (s *authService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *authService) LastUsername() string {
	name, err := s.local.Get(lastUsernameKey)
	if err != nil {
		return ""
	}
	return name
}

func (s *authService) refreshUserCache(ctx context.Context) {
	users, err := s.users.List(ctx)
	if err != nil {
		s.logger.Warn("failed to refresh user cache", slog.Any("error", err))
		return
	}
	s.writeUserCache(users)
}

func (s *authService) writeUserCache(users []models.User) {
	raw, err := json.Marshal(users)
	if err != nil {
		return
	}
	if err := s.local.Set(globalUsersKey, string(raw)); err != nil {
		s.logger.Warn("failed to write user cache", slog.Any("error", err))
	}
}

func (s *authService) cachedUsers() ([]models.User, error) {
	raw, err := s.local.Get(globalUsersKey)
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		return nil, err
	}
	return users, nil
}
