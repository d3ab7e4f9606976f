package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/apimeter/apimeter/pkg/apikey"
	"github.com/apimeter/apimeter/pkg/jwt"
	"github.com/apimeter/apimeter/pkg/logger"
)

const (
	// TokenTTL is the session token lifetime.
	TokenTTL = 7 * 24 * time.Hour

	minPasswordLength = 8
	bcryptCost        = bcrypt.DefaultCost
)

// Service owns account lifecycle and credential issuance.
type Service struct {
	storage Storage
	tokens  *jwt.Service
	log     *slog.Logger
}

// NewService wires an auth Service.
func NewService(storage Storage, tokens *jwt.Service, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		storage: storage,
		tokens:  tokens,
		log:     log.With(logger.Component("auth")),
	}
}

// Register creates a new account with the USER role and no organization.
func (s *Service) Register(ctx context.Context, email, password, name string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return User{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(name),
		Role:         RoleUser,
	}
	if err := s.storage.CreateUser(ctx, user); err != nil {
		return User{}, err
	}

	s.log.InfoContext(ctx, "user registered", logger.UserID(user.ID.String()))
	return user, nil
}

// Authenticate checks the password and issues a session token. Wrong
// email and wrong password are the same error, so the endpoint cannot be
// used to enumerate accounts.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, string, error) {
	user, err := s.storage.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		// Burn comparable time on the miss path.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return User{}, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID.String(), TokenTTL)
	if err != nil {
		return User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// dummyHash is a valid bcrypt hash of a random string, compared against
// when the email does not exist.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Profile returns the user by ID.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (User, error) {
	return s.storage.UserByID(ctx, userID)
}

// GenerateAPIKey mints a new key for the user's organization. The secret
// value is only available on the returned struct; list endpoints expose
// the hint instead.
func (s *Service) GenerateAPIKey(ctx context.Context, userID uuid.UUID, name string) (APIKey, error) {
	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		return APIKey{}, err
	}
	if user.OrganizationID == uuid.Nil {
		return APIKey{}, ErrOrganizationMissing
	}

	value, err := apikey.Generate()
	if err != nil {
		return APIKey{}, fmt.Errorf("generate api key: %w", err)
	}

	key := APIKey{
		ID:             uuid.New(),
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Name:           strings.TrimSpace(name),
		Value:          value,
		Hint:           value[:len(apikey.Prefix)+4] + "...",
		Active:         true,
	}
	if err := s.storage.CreateAPIKey(ctx, key); err != nil {
		return APIKey{}, err
	}

	s.log.InfoContext(ctx, "api key created",
		logger.UserID(user.ID.String()),
		logger.OrgID(user.OrganizationID.String()),
		slog.String("key_id", key.ID.String()))
	return key, nil
}

// RevokeAPIKey deactivates the key. Revocation takes effect on the next
// resolution; there is no grace period.
func (s *Service) RevokeAPIKey(ctx context.Context, userID, keyID uuid.UUID) error {
	if err := s.storage.DeactivateAPIKey(ctx, userID, keyID); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "api key revoked",
		logger.UserID(userID.String()),
		slog.String("key_id", keyID.String()))
	return nil
}

// ListAPIKeys returns the user's keys with secret values blanked.
func (s *Service) ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]APIKey, error) {
	keys, err := s.storage.APIKeysByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range keys {
		keys[i].Value = ""
	}
	return keys, nil
}

// Members lists the users belonging to an organization.
func (s *Service) Members(ctx context.Context, orgID uuid.UUID) ([]User, error) {
	return s.storage.UsersByOrganization(ctx, orgID)
}

// AssignOrganization binds the user to a freshly created organization.
// The organization module calls this through its OwnerAssigner hook.
func (s *Service) AssignOrganization(ctx context.Context, userID, orgID uuid.UUID) error {
	return s.storage.AssignOrganization(ctx, userID, orgID)
}
