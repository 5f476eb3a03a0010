// Package auth verifies bearer tokens and carries the caller's identity
// through the request context.
//
// The API is stateless: every authenticated request presents
// "Authorization: Bearer <token>". Tokens are HS256 JWTs issued by this
// service after the client authenticates with an upstream identity
// provider; verification of the upstream assertion is pluggable through
// the Authenticator interface.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/commonweal/volunteerhub/internal/app/system/apperr"
)

// Identity is the authenticated caller injected into r.Context().
type Identity struct {
	UserID    primitive.ObjectID
	SubjectID string
	Email     string
	Name      string
}

type ctxKey string

const identityKey ctxKey = "identity"

// CurrentIdentity returns the caller's identity and a found flag.
func CurrentIdentity(r *http.Request) (Identity, bool) {
	id, ok := r.Context().Value(identityKey).(Identity)
	return id, ok
}

// WithIdentity returns a request whose context carries id. Exposed for
// handler tests that bypass the middleware.
func WithIdentity(r *http.Request, id Identity) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), identityKey, id))
}

// Authenticator issues and verifies the service's bearer tokens.
type Authenticator interface {
	Issue(id Identity) (string, time.Time, error)
	Verify(token string) (Identity, error)
}

// JWT is the HS256 Authenticator used in production.
type JWT struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWT builds an HS256 token authenticator. The signing key must be at
// least 32 bytes.
func NewJWT(key, issuer string, ttl time.Duration) (*JWT, error) {
	if len(key) < 32 {
		return nil, fmt.Errorf("auth signing key too short: %d bytes, need 32", len(key))
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWT{key: []byte(key), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

type claims struct {
	SubjectID string `json:"sid"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a token for id and returns it with its expiry.
func (j *JWT) Issue(id Identity) (string, time.Time, error) {
	now := j.now()
	exp := now.Add(j.ttl)
	c := claims{
		SubjectID: id.SubjectID,
		Email:     id.Email,
		Name:      id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   id.UserID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(j.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return tok, exp, nil
}

// Verify parses and validates a token, returning the embedded identity.
func (j *JWT) Verify(token string) (Identity, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return j.key, nil
	},
		jwt.WithIssuer(j.issuer),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, apperr.Wrap(apperr.Unauthenticated, "invalid or expired token", err)
	}

	uid, err := primitive.ObjectIDFromHex(c.Subject)
	if err != nil {
		return Identity{}, apperr.Wrap(apperr.Unauthenticated, "invalid token subject", err)
	}
	return Identity{UserID: uid, SubjectID: c.SubjectID, Email: c.Email, Name: c.Name}, nil
}

// Middleware verifies the Authorization header when present and injects
// the identity into the request context. Requests without a token pass
// through anonymous; RequireIdentity gates the routes that need one.
func Middleware(a Authenticator, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerToken(r)
			if tok == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := a.Verify(tok)
			if err != nil {
				apperr.Render(w, log, err)
				return
			}
			next.ServeHTTP(w, WithIdentity(r, id))
		})
	}
}

// RequireIdentity rejects anonymous requests with 401.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentIdentity(r); !ok {
			apperr.Render(w, nil, apperr.New(apperr.Unauthenticated, "authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
