package handler

import (
	"context"
	"strings"

	"github.com/Skryldev/image-api/core"
	apperrors "github.com/Skryldev/image-api/errors"
)

const bearerScheme = "Bearer"

// BearerToken extracts the token from an Authorization header value of the
// form "Bearer <token>". The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

// WithAuth rejects requests without a valid bearer token and attaches the
// verified identity to the request before delegating.
func WithAuth(verifier core.TokenVerifier) Decorator {
	return func(next core.Handler) core.Handler {
		return core.HandlerFunc(func(ctx context.Context, req *core.Request) (*core.Response, error) {
			id, err := Authenticate(ctx, verifier, req.Authorization)
			if err != nil {
				return nil, err
			}
			req.Identity = &id
			return next.Handle(ctx, req)
		})
	}
}

// Authenticate verifies the bearer token in header. It fails with
// MISSING_TOKEN when no well-formed token is present and INVALID_TOKEN when
// the verifier rejects it. Storage and transient failures of the verifier
// are returned unchanged.
func Authenticate(ctx context.Context, verifier core.TokenVerifier, header string) (core.Identity, error) {
	token, ok := BearerToken(header)
	if !ok {
		return core.Identity{}, apperrors.Unauthorized(apperrors.CodeMissingToken, "auth.bearer",
			"Missing Authorization Bearer token", nil)
	}
	id, err := verifier.VerifyToken(ctx, token)
	if err != nil {
		switch apperrors.CategoryOf(err) {
		case apperrors.CategoryAuth, apperrors.CategoryStorage, apperrors.CategoryTransient:
			return core.Identity{}, err
		}
		return core.Identity{}, apperrors.Unauthorized(apperrors.CodeInvalidToken, "auth.verify",
			"Invalid or expired token", err)
	}
	return id, nil
}
