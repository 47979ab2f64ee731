package scopedtoken

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/tendant/simple-secure/pkg/errors"
	"github.com/tendant/simple-secure/pkg/principal"
)

// Verifier checks a token for a principal and scope.
type Verifier interface {
	Verify(token string, subject principal.ID, scope string) error
}

// Claims carried by a scoped token.
type Claims struct {
	Scope string `json:"scp"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies scoped tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu   sync.Mutex
	used map[string]time.Time // jti -> expiry
}

type Option func(*Tokens)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tokens) { t.now = now }
}

func New(secret string, ttl time.Duration, opts ...Option) *Tokens {
	t := &Tokens{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		used:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Issue signs a token for subject and scope and returns it with its expiry.
func (t *Tokens) Issue(subject principal.ID, scope string) (string, time.Time, error) {
	if subject.IsNone() {
		return "", time.Time{}, fmt.Errorf("scoped token requires a subject")
	}
	now := t.now().UTC()
	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		slog.Error("Failed signing scoped token", "scope", scope, "err", err)
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify fails closed with TOKEN_INVALID on any mismatch, expiry or reuse.
func (t *Tokens) Verify(token string, subject principal.ID, scope string) error {
	if token == "" {
		return apperrors.TokenInvalid("missing token")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		slog.Debug("Scoped token rejected", "scope", scope, "err", err)
		return apperrors.Wrap(err, apperrors.ErrCodeTokenInvalid, "invalid token")
	}
	if claims.Subject != subject.String() {
		return apperrors.TokenInvalid("token subject mismatch")
	}
	if claims.Scope != scope {
		return apperrors.TokenInvalid("token scope mismatch")
	}
	if claims.ID == "" {
		return apperrors.TokenInvalid("token has no id")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked()
	if _, seen := t.used[claims.ID]; seen {
		return apperrors.TokenInvalid("token already used")
	}
	t.used[claims.ID] = claims.ExpiresAt.Time
	return nil
}

// pruneLocked forgets consumed ids whose tokens have expired anyway.
func (t *Tokens) pruneLocked() {
	now := t.now()
	for jti, exp := range t.used {
		if now.After(exp) {
			delete(t.used, jti)
		}
	}
}
