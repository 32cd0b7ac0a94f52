package users

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-hq/meridian/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, limit, offset int) ([]User, error)
	CountUsers(ctx context.Context) (int, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, email, name, passwordHash string) (User, error)
	UpdateUser(ctx context.Context, id int64, email, name string) (User, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns one page of users plus pagination metadata.
func (s *Service) ListUsers(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	total, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	meta := shared.NewPagination(page, perPage, total)
	list, err := s.repo.ListUsers(ctx, meta.PerPage, (meta.Page-1)*meta.PerPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, meta, nil
}

// GetUser fetches one user.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser hashes the password and inserts the account.
func (s *Service) CreateUser(ctx context.Context, email, name, password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, normalizeEmail(email), strings.TrimSpace(name), string(hash))
}

// UpdateUser updates account profile fields.
func (s *Service) UpdateUser(ctx context.Context, id int64, email, name string) (User, error) {
	return s.repo.UpdateUser(ctx, id, normalizeEmail(email), strings.TrimSpace(name))
}

// Deactivate disables the account without deleting its rows.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, false)
}

// Activate re-enables a disabled account.
func (s *Service) Activate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, true)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
