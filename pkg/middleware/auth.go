package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/fkhayef/teamtasks/internal/session"
	"github.com/fkhayef/teamtasks/pkg/response"
)

// TestUserHeader lets development clients act as any user without a token
const TestUserHeader = "X-Test-User-ID"

var (
	ErrMissingToken = errors.New("authorization header required")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// ViewerLookup resolves an authenticated user id to a viewer.
// It returns nil, nil when the user does not exist.
type ViewerLookup interface {
	Viewer(ctx context.Context, userID string) (*session.Viewer, error)
}

// Authenticator verifies bearer tokens and attaches the viewer to the request
type Authenticator struct {
	secret  []byte
	devAuth bool
	users   ViewerLookup
}

// NewAuthenticator creates an authenticator. When devAuth is set the
// X-Test-User-ID header is accepted in place of a token (DEV ONLY).
func NewAuthenticator(secret string, devAuth bool, users ViewerLookup) *Authenticator {
	return &Authenticator{secret: []byte(secret), devAuth: devAuth, users: users}
}

// Middleware rejects unauthenticated requests and stores the viewer in the context
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := ""
		if a.devAuth {
			userID = strings.TrimSpace(r.Header.Get(TestUserHeader))
		}

		if userID == "" {
			token, err := bearerToken(r)
			if err != nil {
				response.Unauthorized(w, err.Error())
				return
			}
			userID, err = ParseToken(a.secret, token)
			if err != nil {
				response.Unauthorized(w, ErrInvalidToken.Error())
				return
			}
		}

		viewer, err := a.users.Viewer(r.Context(), userID)
		if err != nil {
			response.InternalError(w, "Failed to resolve user")
			return
		}
		if viewer == nil {
			response.Unauthorized(w, "Unknown user")
			return
		}

		ctx := session.WithViewer(r.Context(), *viewer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from "Authorization: Bearer <token>"
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}

// IssueToken signs an HS256 token whose subject is userID
func IssueToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates token and returns its subject
func ParseToken(secret []byte, token string) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
