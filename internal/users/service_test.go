package users_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-hq/meridian/internal/shared"
	"github.com/meridian-hq/meridian/internal/users"
	_ "github.com/meridian-hq/meridian/testing"
)

type stubRepo struct {
	rows        []users.User
	lastLimit   int
	lastOffset  int
	created     users.User
	activeCalls map[int64]bool
}

func (s *stubRepo) ListUsers(_ context.Context, limit, offset int) ([]users.User, error) {
	s.lastLimit, s.lastOffset = limit, offset
	if offset >= len(s.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[offset:end], nil
}

func (s *stubRepo) CountUsers(context.Context) (int, error) {
	return len(s.rows), nil
}

func (s *stubRepo) GetUser(_ context.Context, id int64) (users.User, error) {
	for _, u := range s.rows {
		if u.ID == id {
			return u, nil
		}
	}
	return users.User{}, shared.ErrNotFound
}

func (s *stubRepo) CreateUser(_ context.Context, email, name, passwordHash string) (users.User, error) {
	s.created = users.User{
		ID:           int64(len(s.rows) + 1),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	s.rows = append(s.rows, s.created)
	return s.created, nil
}

func (s *stubRepo) UpdateUser(_ context.Context, id int64, email, name string) (users.User, error) {
	for i, u := range s.rows {
		if u.ID == id {
			s.rows[i].Email = email
			s.rows[i].Name = name
			return s.rows[i], nil
		}
	}
	return users.User{}, shared.ErrNotFound
}

func (s *stubRepo) SetActive(_ context.Context, id int64, active bool) error {
	if s.activeCalls == nil {
		s.activeCalls = map[int64]bool{}
	}
	s.activeCalls[id] = active
	return nil
}

func TestCreateUserHashesPasswordAndNormalizesEmail(t *testing.T) {
	repo := &stubRepo{}
	svc := users.NewService(repo)

	u, err := svc.CreateUser(context.Background(), "  Ada@Example.COM ", "  Ada  ", "hunter2secret")
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, "Ada", u.Name)
	assert.NotEqual(t, "hunter2secret", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("hunter2secret")))
}

func TestListUsersPaginates(t *testing.T) {
	repo := &stubRepo{}
	for i := 0; i < 45; i++ {
		repo.rows = append(repo.rows, users.User{ID: int64(i + 1)})
	}
	svc := users.NewService(repo)

	list, meta, err := svc.ListUsers(context.Background(), 3, 20)
	require.NoError(t, err)

	assert.Len(t, list, 5)
	assert.Equal(t, 3, meta.Page)
	assert.Equal(t, 20, meta.PerPage)
	assert.Equal(t, 45, meta.Total)
	assert.Equal(t, 3, meta.TotalPages)
	assert.Equal(t, 40, repo.lastOffset)
}

func TestListUsersDefaultsPageAndSize(t *testing.T) {
	repo := &stubRepo{rows: []users.User{{ID: 1}, {ID: 2}}}
	svc := users.NewService(repo)

	list, meta, err := svc.ListUsers(context.Background(), 0, 0)
	require.NoError(t, err)

	assert.Len(t, list, 2)
	assert.Equal(t, 1, meta.Page)
	assert.Equal(t, 20, meta.PerPage)
	assert.Equal(t, 0, repo.lastOffset)
}

func TestDeactivateAndActivate(t *testing.T) {
	repo := &stubRepo{}
	svc := users.NewService(repo)

	require.NoError(t, svc.Deactivate(context.Background(), 7))
	assert.False(t, repo.activeCalls[7])

	require.NoError(t, svc.Activate(context.Background(), 7))
	assert.True(t, repo.activeCalls[7])
}
