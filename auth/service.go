// Package auth registers users, issues bearer tokens at login and verifies
// them for the request chain.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skryldev/image-api/core"
	apperrors "github.com/Skryldev/image-api/errors"
)

// Service implements registration, login, logout and token verification.
type Service struct {
	users   UserStore
	tokens  *TokenManager
	revoker Revoker
	cost    int
}

// NewService wires the service. cost is the bcrypt cost; values below
// bcrypt.MinCost use bcrypt.DefaultCost.
func NewService(users UserStore, tokens *TokenManager, revoker Revoker, cost int) *Service {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}
	return &Service{users: users, tokens: tokens, revoker: revoker, cost: cost}
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Register creates an account for email.
func (s *Service) Register(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.Validation(apperrors.CodeMissingFields, "auth.register", "Email and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, apperrors.InvalidField(apperrors.CodeInvalidParams, "auth.register", "password",
			"Password must be at most 72 bytes")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryAuth, "auth.register.hash", err)
	}

	u := &User{ID: uuid.NewString(), Email: email, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, apperrors.Validation(apperrors.CodeEmailExists, "auth.register", "Email already registered")
		}
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "auth.register.create", err)
	}
	return u, nil
}

// Login checks the credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", apperrors.Validation(apperrors.CodeMissingFields, "auth.login", "Email and password are required")
	}
	invalid := apperrors.Unauthorized(apperrors.CodeInvalidCredentials, "auth.login", "Invalid credentials", nil)

	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return "", invalid
	}
	if err != nil {
		return "", apperrors.Wrap(apperrors.CategoryStorage, "auth.login.lookup", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", invalid
	}

	token, _, err := s.tokens.Issue(core.Identity{SubjectID: u.ID, Email: u.Email})
	if err != nil {
		return "", apperrors.Wrap(apperrors.CategoryAuth, "auth.login.issue", err)
	}
	return token, nil
}

// VerifyToken implements core.TokenVerifier. Revoked tokens are rejected.
func (s *Service) VerifyToken(ctx context.Context, token string) (core.Identity, error) {
	claims, err := s.verify(ctx, token)
	if err != nil {
		return core.Identity{}, err
	}
	return claims.Identity(), nil
}

// Logout revokes token until its natural expiry.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.verify(ctx, token)
	if err != nil {
		return err
	}
	if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "auth.logout", err)
	}
	return nil
}

func (s *Service) verify(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, apperrors.Unauthorized(apperrors.CodeInvalidToken, "auth.verify", "Invalid or expired token", err)
	}
	if claims.ID != "" {
		revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryStorage, "auth.verify.revocation", err)
		}
		if revoked {
			return nil, apperrors.Unauthorized(apperrors.CodeInvalidToken, "auth.verify", "Invalid or expired token", nil)
		}
	}
	return claims, nil
}

// Close releases the revocation store.
func (s *Service) Close() error { return s.revoker.Close() }

var _ core.TokenVerifier = (*Service)(nil)
