// Package token issues and verifies the signed bearer tokens used by the
// request admission pipeline.
package token

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/meridian-hq/meridian/internal/shared"
)

// Token kinds carried in the "kind" claim. The kind is the only type
// discrimination a token carries.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Claims is the decoded, verified payload of a signed token.
type Claims struct {
	jwt.RegisteredClaims
	Kind string `json:"kind,omitempty"`
}

// SubjectID parses the subject claim as a numeric user ID.
func (c *Claims) SubjectID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, shared.ErrInvalidToken
	}
	return id, nil
}

// Verifier checks token integrity and expiry. It is a pure function of
// (token, secret, clock) and has no side effects.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier constructs a Verifier for HMAC-signed tokens.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// WithClock overrides the verifier clock. Used by tests.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// VerifyAccess verifies signature and expiry and returns the claims.
// Any malformed, tampered or expired token yields ErrInvalidToken.
func (v *Verifier) VerifyAccess(raw string) (*Claims, error) {
	return v.parse(raw)
}

// VerifyRefresh verifies like VerifyAccess and additionally requires the
// refresh kind, rejecting an access token presented where a refresh token
// is expected.
func (v *Verifier) VerifyRefresh(raw string) (*Claims, error) {
	claims, err := v.parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.Kind != KindRefresh {
		return nil, shared.ErrInvalidToken
	}
	return claims, nil
}

func (v *Verifier) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, shared.ErrInvalidToken
	}
	return claims, nil
}

// Pair bundles a freshly minted access/refresh token pair.
type Pair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Issuer mints signed token pairs.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer constructs an Issuer sharing the verifier's secret.
func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock overrides the issuer clock. Used by tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Pair mints an access/refresh pair for the given subject.
func (i *Issuer) Pair(subjectID int64) (Pair, error) {
	now := i.now()
	access, err := i.sign(subjectID, KindAccess, now.Add(i.accessTTL), now)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := i.sign(subjectID, KindRefresh, now.Add(i.refreshTTL), now)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(i.accessTTL),
	}, nil
}

func (i *Issuer) sign(subjectID int64, kind string, expiresAt, issuedAt time.Time) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subjectID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
		Kind: kind,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}
