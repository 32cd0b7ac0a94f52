package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-hq/meridian/internal/shared"
	"github.com/meridian-hq/meridian/internal/token"
	_ "github.com/meridian-hq/meridian/testing"
)

const testSecret = "meridian-test-secret"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestVerifyAccessRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := token.NewIssuer(testSecret, 15*time.Minute, 24*time.Hour).WithClock(fixedClock(now))
	verifier := token.NewVerifier(testSecret).WithClock(fixedClock(now.Add(time.Minute)))

	pair, err := issuer.Pair(42)
	require.NoError(t, err)

	claims, err := verifier.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)

	id, err := claims.SubjectID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, token.KindAccess, claims.Kind)
}

func TestVerifyAccessExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := token.NewIssuer(testSecret, 15*time.Minute, 24*time.Hour).WithClock(fixedClock(now))
	verifier := token.NewVerifier(testSecret).WithClock(fixedClock(now.Add(16 * time.Minute)))

	pair, err := issuer.Pair(42)
	require.NoError(t, err)

	_, err = verifier.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestVerifyRefreshRejectsAccessKind(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := token.NewIssuer(testSecret, 15*time.Minute, 24*time.Hour).WithClock(fixedClock(now))
	verifier := token.NewVerifier(testSecret).WithClock(fixedClock(now.Add(time.Minute)))

	pair, err := issuer.Pair(42)
	require.NoError(t, err)

	// Unexpired access token fails the refresh check on kind alone.
	_, err = verifier.VerifyRefresh(pair.AccessToken)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)

	claims, err := verifier.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, token.KindRefresh, claims.Kind)
}

func TestVerifyAccessWrongSecret(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := token.NewIssuer("other-secret", 15*time.Minute, 24*time.Hour).WithClock(fixedClock(now))
	verifier := token.NewVerifier(testSecret).WithClock(fixedClock(now))

	pair, err := issuer.Pair(42)
	require.NoError(t, err)

	_, err = verifier.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestVerifyAccessMalformed(t *testing.T) {
	verifier := token.NewVerifier(testSecret)

	for _, raw := range []string{"", "garbage", "a.b.c"} {
		_, err := verifier.VerifyAccess(raw)
		assert.ErrorIs(t, err, shared.ErrInvalidToken, "token %q", raw)
	}
}
