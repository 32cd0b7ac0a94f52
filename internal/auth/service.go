package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-hq/meridian/internal/shared"
	"github.com/meridian-hq/meridian/internal/token"
	"github.com/meridian-hq/meridian/internal/users"
)

// UserSource is the slice of the users repository auth needs.
type UserSource interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
	GetUser(ctx context.Context, id int64) (users.User, error)
}

// Service wraps authentication business rules.
type Service struct {
	source   UserSource
	issuer   *token.Issuer
	verifier *token.Verifier
}

// NewService constructs a new Service.
func NewService(source UserSource, issuer *token.Issuer, verifier *token.Verifier) *Service {
	return &Service{source: source, issuer: issuer, verifier: verifier}
}

// Login validates email/password credentials and mints a token pair.
// Every failure collapses to ErrInvalidCredentials so responses do not
// reveal whether the account exists.
func (s *Service) Login(ctx context.Context, email, password string) (token.Pair, error) {
	user, err := s.source.FindByEmail(ctx, email)
	if err != nil {
		return token.Pair{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return token.Pair{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return token.Pair{}, shared.ErrInvalidCredentials
	}
	return s.issuer.Pair(user.ID)
}

// Refresh exchanges a valid refresh token for a fresh pair. The account is
// re-read so a deactivated or deleted user cannot keep rotating tokens.
func (s *Service) Refresh(ctx context.Context, rawToken string) (token.Pair, error) {
	claims, err := s.verifier.VerifyRefresh(rawToken)
	if err != nil {
		return token.Pair{}, shared.ErrInvalidToken
	}
	subjectID, err := claims.SubjectID()
	if err != nil {
		return token.Pair{}, shared.ErrInvalidToken
	}
	user, err := s.source.GetUser(ctx, subjectID)
	if err != nil || !user.IsActive {
		return token.Pair{}, shared.ErrInvalidToken
	}
	return s.issuer.Pair(user.ID)
}

// Profile returns the account behind verified claims.
func (s *Service) Profile(ctx context.Context, subjectID int64) (users.User, error) {
	user, err := s.source.GetUser(ctx, subjectID)
	if err != nil {
		return users.User{}, shared.ErrSubjectNotFound
	}
	return user, nil
}
