package goClone

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goClone/jwt"
)

// Owner operations, as named in capability token scopes.
const (
	OwnerOpUpgradeImplementation = "upgrade_implementation"
	OwnerOpUpdateFeatureSet      = "update_feature_set"
)

// OwnerAuthorizer decides whether the caller carried by ctx may perform an
// owner operation on factory. A nil error authorizes; any error is reported
// to the caller as [ErrOwnerUnauthorized].
type OwnerAuthorizer interface {
	AuthorizeOwner(ctx context.Context, factory Address, op string) error
}

// AllowAllOwners treats every caller as the owner. It is the default when the
// owner capability is disabled.
type AllowAllOwners struct{}

func (AllowAllOwners) AuthorizeOwner(context.Context, Address, string) error { return nil }

// OwnerFunc adapts a plain function to [OwnerAuthorizer].
type OwnerFunc func(ctx context.Context, factory Address, op string) error

func (f OwnerFunc) AuthorizeOwner(ctx context.Context, factory Address, op string) error {
	return f(ctx, factory, op)
}

// JWTOwnerAuthorizer accepts callers presenting a valid owner capability
// token (see [WithOwnerToken]) bound to the factory and scoped to the
// operation.
type JWTOwnerAuthorizer struct {
	manager *jwt.Manager
}

// NewJWTOwnerAuthorizer wraps a token manager.
func NewJWTOwnerAuthorizer(m *jwt.Manager) *JWTOwnerAuthorizer {
	return &JWTOwnerAuthorizer{manager: m}
}

func (a *JWTOwnerAuthorizer) AuthorizeOwner(ctx context.Context, factory Address, op string) error {
	if a == nil || a.manager == nil {
		return errors.New("owner token manager not configured")
	}

	token, ok := OwnerTokenFromContext(ctx)
	if !ok {
		return errors.New("owner token missing")
	}

	claims, err := a.manager.ParseOwner(token)
	if err != nil {
		return fmt.Errorf("owner token invalid: %w", err)
	}
	if !strings.EqualFold(claims.Factory, factory.String()) {
		return errors.New("owner token bound to another factory")
	}
	if !claims.Allows(op) {
		return errors.New("owner token scope excludes " + op)
	}
	return nil
}

func newOwnerTokenManager(cfg OwnerConfig) (*jwt.Manager, error) {
	return jwt.NewManager(jwt.Config{
		TokenTTL:      cfg.TokenTTL,
		SigningMethod: jwt.SigningMethod(cfg.SigningMethod),
		PrivateKey:    cloneBytes(cfg.PrivateKey),
		PublicKey:     cloneBytes(cfg.PublicKey),
		Issuer:        cfg.Issuer,
		KeyID:         cfg.KeyID,
		RequireIAT:    true,
	})
}
