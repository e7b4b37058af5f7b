package auth

import (
	"context"

	"github.com/gokatarajesh/quizmind/internal/auth/jwt"
	"github.com/gokatarajesh/quizmind/internal/result"
)

type claimsKey struct{}

// WithClaims stores validated token claims on ctx.
func WithClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims set by AuthMiddleware, if any.
func ClaimsFromContext(ctx context.Context) (*jwt.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*jwt.Claims)
	return claims, ok && claims != nil
}

// IdentityFromClaims converts token claims into the identity results are stored under.
func IdentityFromClaims(claims *jwt.Claims) *result.Identity {
	if claims == nil {
		return nil
	}
	return &result.Identity{
		UserID:      claims.UserID,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
	}
}

// IdentityFromContext is IdentityFromClaims for the request's claims; nil when anonymous.
func IdentityFromContext(ctx context.Context) *result.Identity {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil
	}
	return IdentityFromClaims(claims)
}
