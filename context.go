package goClone

import "context"

type ownerTokenContextKey struct{}
type callerContextKey struct{}

// WithOwnerToken attaches an owner capability token to ctx. Owner-gated
// factory operations hand it to the configured [OwnerAuthorizer].
func WithOwnerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ownerTokenContextKey{}, token)
}

// WithCaller attaches a free-form caller label to ctx. It is copied into
// notifications and never used for authorization.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// OwnerTokenFromContext returns the token attached by [WithOwnerToken].
func OwnerTokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	token, _ := ctx.Value(ownerTokenContextKey{}).(string)
	return token, token != ""
}

// CallerFromContext returns the label attached by [WithCaller].
func CallerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	caller, _ := ctx.Value(callerContextKey{}).(string)
	return caller
}
