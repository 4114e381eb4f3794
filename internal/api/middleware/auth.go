package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sociodent/sociodent/backend/internal/infrastructure/observability"
	"github.com/sociodent/sociodent/backend/pkg/config"
)

type contextKey string

const principalKey contextKey = "principal"

// Roles carried in bearer tokens
const (
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// Claims are the bearer token claims
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Principal is the authenticated caller
type Principal struct {
	Subject string
	Role    string
}

// WithPrincipal returns a new context carrying p
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the caller attached by the auth middleware
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// Authenticator verifies HS256 bearer tokens
type Authenticator struct {
	key     []byte
	issuer  string
	devMode bool
}

// NewAuthenticator creates an authenticator. With no signing key and devMode
// set, every request is let through as a "dev" principal. The dev principal
// is an admin wherever admins are allowed, otherwise it takes the first
// required role.
func NewAuthenticator(cfg config.AuthConfig, devMode bool) *Authenticator {
	return &Authenticator{
		key:     []byte(cfg.SigningKey),
		issuer:  cfg.Issuer,
		devMode: devMode && cfg.SigningKey == "",
	}
}

// IssueToken signs a token for subject with role
func (a *Authenticator) IssueToken(subject, role string, ttl time.Duration) (string, error) {
	if len(a.key) == 0 {
		return "", errors.New("no signing key configured")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
}

// Parse verifies tokenString and returns its principal
func (a *Authenticator) Parse(tokenString string) (*Principal, error) {
	if len(a.key) == 0 {
		return nil, errors.New("no signing key configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return a.key, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.Role == "" {
		return nil, errors.New("token is missing subject or role")
	}
	return &Principal{Subject: claims.Subject, Role: claims.Role}, nil
}

// RequireRole rejects requests without a valid bearer token for one of roles
func (a *Authenticator) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.devMode {
				role := RoleAdmin
				if len(roles) > 0 && !hasRole(RoleAdmin, roles) {
					role = roles[0]
				}
				ctx := WithPrincipal(r.Context(), &Principal{Subject: "dev", Role: role})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			header := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			principal, err := a.Parse(tokenString)
			if err != nil {
				observability.LoggerFromContext(r.Context()).Debug().Err(err).Msg("rejected bearer token")
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if !hasRole(principal.Role, roles) {
				writeAuthError(w, http.StatusForbidden, "insufficient role")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func hasRole(role string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
