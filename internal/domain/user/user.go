package user

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/domain/apperr"
	"github.com/example/ec-storefront/internal/domain/model"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

const maxEmailLength = 254

var (
	ErrUserNotFound       = fmt.Errorf("user %w", apperr.ErrNotFound)
	ErrInvalidEmail       = apperr.Invalid("a valid email is required")
	ErrInvalidName        = apperr.Invalid("name is required")
	ErrEmailTaken         = fmt.Errorf("email already registered: %w", apperr.ErrConflict)
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", apperr.ErrUnauthorized)
	ErrWrongPassword      = apperr.Invalid("current password is incorrect")
	ErrEmptyProfileUpdate = apperr.Invalid("nothing to update")
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9](?:[a-zA-Z0-9\-]*[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9\-]*[a-zA-Z0-9])?)*\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return len(email) <= maxEmailLength && emailPattern.MatchString(email)
}

// Issuer mints credentials for authenticated users.
type Issuer interface {
	Issue(u *model.User) (string, time.Time, error)
}

// Credential is what a successful registration or login hands back.
type Credential struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

// Service handles user domain operations
type Service struct {
	users  store.UserStore
	issuer Issuer
	now    func() time.Time
}

// NewService creates a new user service
func NewService(users store.UserStore, issuer Issuer) *Service {
	return &Service{users: users, issuer: issuer, now: time.Now}
}

// Register creates a customer account and signs it in.
func (s *Service) Register(ctx context.Context, email, password, name string) (*Credential, error) {
	u, err := s.create(ctx, email, password, name, model.RoleCustomer)
	if err != nil {
		return nil, err
	}
	return s.credential(u)
}

func (s *Service) create(ctx context.Context, email, password, name string, role model.Role) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if !isValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if name == "" {
		return nil, ErrInvalidName
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     name,
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	err = s.users.CreateUser(ctx, u)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("user_id", u.ID).Str("role", string(role)).Msg("user registered")
	return u, nil
}

// Login verifies the password and issues a fresh credential. Unknown emails
// and wrong passwords fail the same way.
func (s *Service) Login(ctx context.Context, email, password string) (*Credential, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !auth.CheckPassword(password, u.PasswordHash) {
		zerolog.Ctx(ctx).Warn().Str("user_id", u.ID).Msg("login rejected")
		return nil, ErrInvalidCredentials
	}
	return s.credential(u)
}

func (s *Service) credential(u *model.User) (*Credential, error) {
	token, expiresAt, err := s.issuer.Issue(u)
	if err != nil {
		return nil, fmt.Errorf("issue credential: %w", err)
	}
	return &Credential{Token: token, ExpiresAt: expiresAt, User: u}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.users.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

// List returns every account, oldest first.
func (s *Service) List(ctx context.Context) ([]model.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ProfileUpdate carries the fields a user may change on their own account.
// A nil FullName and an empty NewPassword leave those fields alone; changing
// the password requires the current one.
type ProfileUpdate struct {
	FullName        *string
	CurrentPassword string
	NewPassword     string
}

// UpdateProfile applies a self-service change to userID's account.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*model.User, error) {
	if upd.FullName == nil && upd.NewPassword == "" {
		return nil, ErrEmptyProfileUpdate
	}
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if upd.FullName != nil {
		name := strings.TrimSpace(*upd.FullName)
		if name == "" {
			return nil, ErrInvalidName
		}
		u.FullName = name
	}
	if upd.NewPassword != "" {
		if !auth.CheckPassword(upd.CurrentPassword, u.PasswordHash) {
			zerolog.Ctx(ctx).Warn().Str("user_id", u.ID).Msg("password change rejected")
			return nil, ErrWrongPassword
		}
		hash, err := auth.HashPassword(upd.NewPassword)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}

	err = s.users.UpdateUser(ctx, u)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update user %s: %w", userID, err)
	}
	zerolog.Ctx(ctx).Info().Str("user_id", u.ID).Bool("password_changed", upd.NewPassword != "").Msg("profile updated")
	return u, nil
}

// EnsureAdmin creates the bootstrap admin account unless the email is
// already registered. It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	_, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("load admin: %w", err)
	}

	_, err = s.create(ctx, email, password, "Administrator", model.RoleAdmin)
	if errors.Is(err, ErrEmailTaken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
