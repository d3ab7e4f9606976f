package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/apimeter/apimeter/modules/billing"
	"github.com/apimeter/apimeter/pkg/apikey"
	"github.com/apimeter/apimeter/pkg/jwt"
	"github.com/apimeter/apimeter/pkg/logger"
)

// Principal is a fully resolved caller: who they are, which tenant they
// act for, and what that tenant is entitled to. Both credential paths
// produce the same shape, so everything past the resolver is
// credential-agnostic.
type Principal struct {
	User           User
	OrganizationID uuid.UUID
	Entitlement    billing.Entitlement
	Credential     CredentialKind
}

// EntitlementFunc resolves an organization's effective entitlement. The
// billing module provides the implementation.
type EntitlementFunc func(ctx context.Context, orgID uuid.UUID) (billing.Entitlement, error)

// Resolver turns a raw credential string into a Principal.
type Resolver struct {
	storage     Storage
	tokens      *jwt.Service
	entitlement EntitlementFunc
	log         *slog.Logger

	// touchTimeout bounds the background last-used write.
	touchTimeout time.Duration
}

// NewResolver wires a Resolver.
func NewResolver(storage Storage, tokens *jwt.Service, entitlement EntitlementFunc, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		storage:      storage,
		tokens:       tokens,
		entitlement:  entitlement,
		log:          log.With(logger.Component("resolver")),
		touchTimeout: 3 * time.Second,
	}
}

// Resolve authenticates a credential and returns the caller's Principal.
// The credential format picks the path: API keys carry the key prefix,
// everything else is treated as a session token. Every failure collapses
// to ErrUnauthenticated so the response never reveals whether the
// credential was malformed, expired, revoked, or simply never existed.
func (r *Resolver) Resolve(ctx context.Context, credential string) (Principal, error) {
	if credential == "" {
		return Principal{}, ErrUnauthenticated
	}

	if apikey.Match(credential) {
		return r.resolveAPIKey(ctx, credential)
	}
	return r.resolveToken(ctx, credential)
}

func (r *Resolver) resolveToken(ctx context.Context, token string) (Principal, error) {
	subject, err := r.tokens.Verify(token)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}

	user, err := r.storage.UserByID(ctx, userID)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}

	return r.principal(ctx, user, user.OrganizationID, CredentialToken)
}

func (r *Resolver) resolveAPIKey(ctx context.Context, value string) (Principal, error) {
	key, err := r.storage.APIKeyByValue(ctx, value)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}

	user, err := r.storage.UserByID(ctx, key.UserID)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}

	// Last-used bookkeeping must not add latency or fail the request.
	go func(keyID uuid.UUID) {
		touchCtx, cancel := context.WithTimeout(context.Background(), r.touchTimeout)
		defer cancel()
		if err := r.storage.TouchAPIKey(touchCtx, keyID); err != nil {
			r.log.Warn("failed to record api key use",
				slog.String("key_id", keyID.String()), logger.Error(err))
		}
	}(key.ID)

	return r.principal(ctx, user, key.OrganizationID, CredentialAPIKey)
}

func (r *Resolver) principal(ctx context.Context, user User, orgID uuid.UUID, kind CredentialKind) (Principal, error) {
	p := Principal{
		User:           user,
		OrganizationID: orgID,
		Credential:     kind,
	}

	if orgID != uuid.Nil {
		ent, err := r.entitlement(ctx, orgID)
		if err != nil {
			// Entitlement resolution failing is an availability problem,
			// not an authentication one.
			return Principal{}, errors.Join(errors.New("resolve entitlement"), err)
		}
		p.Entitlement = ent
	}
	return p, nil
}
