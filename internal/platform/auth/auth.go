// Package auth resolves the requesting user from a bearer token.
//
// Token issuance belongs to an external identity service; Issuer exists for
// operators and tests that need to mint tokens against the shared secret.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when a token fails signature or claim checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSecret is returned when no signing secret is configured.
	ErrMissingSecret = errors.New("jwt secret is not configured")
)

// Claims carries the user identity inside the token subject.
type Claims struct {
	jwt.RegisteredClaims
}

// Verifier validates HS256 tokens.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a verifier. An empty issuer skips the issuer check.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	return &Verifier{secret: []byte(secret), issuer: issuer}, nil
}

// Parse validates the token and returns the subject as a user ID.
func (v *Verifier) Parse(token string) (uuid.UUID, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	return id, nil
}

// Issuer mints HS256 tokens.
type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewIssuer creates a token issuer.
func NewIssuer(secret, issuer string) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Issue signs a token for userID valid for ttl.
func (i *Issuer) Issue(userID uuid.UUID, ttl time.Duration) (string, error) {
	if userID == uuid.Nil {
		return "", fmt.Errorf("issue token: user id is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("issue token: ttl must be positive")
	}
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

type requesterKey struct{}

// WithRequester stores the authenticated user ID in ctx.
func WithRequester(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, requesterKey{}, id)
}

// RequesterID returns the authenticated user ID, or uuid.Nil for anonymous requests.
func RequesterID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(requesterKey{}).(uuid.UUID)
	return id
}

// Middleware attaches the requester identity when a valid bearer token is
// present. Requests without a token pass through anonymously; a malformed or
// invalid token also passes through anonymously so that operations decide
// whether identity is required.
func Middleware(v *Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" || v == nil {
				next.ServeHTTP(w, r)
				return
			}
			id, err := v.Parse(token)
			if err != nil {
				if logger != nil {
					logger.Debug("bearer token rejected", "path", r.URL.Path, "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithRequester(r.Context(), id)))
		})
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
