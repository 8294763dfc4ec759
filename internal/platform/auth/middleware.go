package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// Shopper tokens carry the role and locale as Firebase custom claims. The
// locale feeds pt-BR pricing labels downstream; a token without a role claim
// is treated as a plain shopper.
const (
	roleClaim   = "role"
	localeClaim = "locale"
	emailClaim  = "email"

	verifyTimeout = 5 * time.Second
)

var (
	// ErrTokenExpired signals that the Firebase ID token has expired.
	ErrTokenExpired = errors.New("auth: firebase id token expired")
	// ErrTokenInvalid signals that the Firebase ID token failed verification.
	ErrTokenInvalid = errors.New("auth: firebase id token invalid")
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// UserGetter retrieves Firebase user records.
type UserGetter interface {
	GetUser(ctx context.Context, uid string) (*firebaseauth.UserRecord, error)
}

// Authenticator turns Firebase token verification into HTTP middleware for
// the shopper and admin route groups.
type Authenticator struct {
	verifier TokenVerifier
	users    UserGetter
}

// Option customises the Authenticator.
type Option func(*Authenticator)

// WithUserGetter enables lazy Firebase user record loading on the identity.
func WithUserGetter(getter UserGetter) Option {
	return func(a *Authenticator) {
		a.users = getter
	}
}

// NewAuthenticator builds an Authenticator around the given verifier.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{verifier: verifier}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireFirebaseAuth verifies the Authorization bearer token and, when roles
// are given, requires the identity to hold at least one of them.
func (a *Authenticator) RequireFirebaseAuth(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		if role = normaliseRole(role); role != "" {
			allowed[role] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}
			if a == nil || a.verifier == nil {
				writeAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization service unavailable")
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), verifyTimeout)
			defer cancel()

			token, err := a.verifier.VerifyIDToken(ctx, tokenStr)
			if err != nil {
				writeVerificationError(w, err)
				return
			}

			identity := a.identityFromToken(token)
			if len(allowed) > 0 && !identity.HasAnyRole(allowedRoles...) {
				writeAuthError(w, http.StatusUnauthorized, "insufficient_role", "identity does not have required role")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func (a *Authenticator) identityFromToken(token *firebaseauth.Token) *Identity {
	identity := &Identity{
		UID:    token.UID,
		Email:  stringClaim(token.Claims, emailClaim),
		Locale: stringClaim(token.Claims, localeClaim),
		Roles:  rolesFromClaim(token.Claims[roleClaim]),
		token:  token,
	}
	if len(identity.Roles) == 0 {
		identity.Roles = []string{RoleUser}
	}

	if a.users != nil {
		identity.userLoader = func(ctx context.Context, uid string) (*firebaseauth.UserRecord, error) {
			if uid == "" {
				uid = identity.UID
			}
			ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
			defer cancel()
			return a.users.GetUser(ctx, uid)
		}
	}
	return identity
}

// rolesFromClaim accepts the role claim as a single string or a list. Custom
// claims written by the admin tooling use the string form.
func rolesFromClaim(raw any) []string {
	switch v := raw.(type) {
	case string:
		if role := normaliseRole(v); role != "" {
			return []string{role}
		}
		return nil
	case []any:
		out := make([]string, 0, len(v))
		seen := make(map[string]struct{}, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				continue
			}
			role := normaliseRole(str)
			if role == "" {
				continue
			}
			if _, dup := seen[role]; dup {
				continue
			}
			seen[role] = struct{}{}
			out = append(out, role)
		}
		return out
	default:
		return nil
	}
}

func stringClaim(claims map[string]any, key string) string {
	if str, ok := claims[key].(string); ok {
		return strings.TrimSpace(str)
	}
	return ""
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   code,
		"message": message,
		"status":  status,
	})
}

func writeVerificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired), firebaseauth.IsIDTokenExpired(err):
		writeAuthError(w, http.StatusUnauthorized, "token_expired", "firebase id token expired")
	case errors.Is(err, ErrTokenInvalid), firebaseauth.IsIDTokenInvalid(err):
		writeAuthError(w, http.StatusUnauthorized, "invalid_token", "firebase id token invalid")
	default:
		writeAuthError(w, http.StatusUnauthorized, "invalid_token", "firebase id token verification failed")
	}
}
