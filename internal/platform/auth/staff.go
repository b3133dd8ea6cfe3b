package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/httpx"
)

// Back-office roles carried in the Firebase "role" custom claim. Staff may read orders; only
// admins may override order status.
const (
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

const (
	defaultRoleClaim     = "role"
	defaultVerifyTimeout = 5 * time.Second
)

var roleRank = map[string]int{
	RoleStaff: 1,
	RoleAdmin: 2,
}

var (
	// ErrTokenExpired signals that the presented ID token has expired.
	ErrTokenExpired = errors.New("auth: id token expired")
	// ErrTokenInvalid signals that the presented ID token failed verification.
	ErrTokenInvalid = errors.New("auth: id token invalid")
)

// Staff is the back-office principal attached to admin requests.
type Staff struct {
	UID   string
	Email string
	Role  string
}

// Allows reports whether the staff role ranks at or above minimum.
func (s *Staff) Allows(minimum string) bool {
	if s == nil {
		return false
	}
	have, ok := roleRank[s.Role]
	if !ok {
		return false
	}
	return have >= roleRank[normaliseRole(minimum)]
}

type contextKey string

const staffContextKey contextKey = "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/auth/staff"

// WithStaff stores the authenticated staff member on ctx.
func WithStaff(ctx context.Context, staff *Staff) context.Context {
	return context.WithValue(ctx, staffContextKey, staff)
}

// StaffFromContext returns the staff member stored by RequireRole.
func StaffFromContext(ctx context.Context) (*Staff, bool) {
	staff, ok := ctx.Value(staffContextKey).(*Staff)
	if !ok || staff == nil {
		return nil, false
	}
	return staff, true
}

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Authenticator turns Firebase ID tokens into Staff principals.
type Authenticator struct {
	verifier  TokenVerifier
	roleClaim string
	timeout   time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithRoleClaim overrides the custom claim holding the staff role.
func WithRoleClaim(claim string) Option {
	return func(a *Authenticator) {
		if claim = strings.TrimSpace(claim); claim != "" {
			a.roleClaim = claim
		}
	}
}

// WithVerificationTimeout bounds each token verification call.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs an Authenticator for the admin route group.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:  verifier,
		roleClaim: defaultRoleClaim,
		timeout:   defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireRole admits requests whose bearer token belongs to staff ranked at or above minimum.
func (a *Authenticator) RequireRole(minimum string) func(http.Handler) http.Handler {
	minimum = normaliseRole(minimum)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			staff, err := a.authenticate(ctx, r.Header.Get("Authorization"))
			if err != nil {
				httpx.WriteError(ctx, w, authError(err))
				return
			}
			if !staff.Allows(minimum) {
				httpx.WriteError(ctx, w, httpx.NewError("insufficient_role", "role "+staff.Role+" cannot perform this action", http.StatusForbidden))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithStaff(ctx, staff)))
		})
	}
}

var (
	errMissingBearer = errors.New("auth: authorization header missing or invalid")
	errNoVerifier    = errors.New("auth: verifier unavailable")
	errMissingRole   = errors.New("auth: no staff role on token")
)

func (a *Authenticator) authenticate(ctx context.Context, header string) (*Staff, error) {
	token, ok := bearerToken(header)
	if !ok {
		return nil, errMissingBearer
	}
	if a == nil || a.verifier == nil {
		return nil, errNoVerifier
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	decoded, err := a.verifier.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, err
	}

	role := highestRole(decoded.Claims[a.roleClaim])
	if role == "" {
		return nil, errMissingRole
	}
	email, _ := decoded.Claims["email"].(string)
	return &Staff{
		UID:   decoded.UID,
		Email: strings.TrimSpace(email),
		Role:  role,
	}, nil
}

// highestRole accepts a single role string or a list and keeps the best-ranked known role.
func highestRole(raw any) string {
	var candidates []string
	switch v := raw.(type) {
	case string:
		candidates = []string{v}
	case []string:
		candidates = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				candidates = append(candidates, s)
			}
		}
	}

	best := ""
	for _, candidate := range candidates {
		role := normaliseRole(candidate)
		if roleRank[role] > roleRank[best] {
			best = role
		}
	}
	return best
}

func authError(err error) httpx.Error {
	switch {
	case errors.Is(err, errMissingBearer):
		return httpx.NewError("unauthenticated", "authorization header missing or invalid", http.StatusUnauthorized)
	case errors.Is(err, errNoVerifier):
		return httpx.NewError("unauthenticated", "authorization service unavailable", http.StatusUnauthorized)
	case errors.Is(err, errMissingRole):
		return httpx.NewError("missing_role", "no staff role associated with identity", http.StatusForbidden)
	case errors.Is(err, ErrTokenExpired), firebaseauth.IsIDTokenExpired(err):
		return httpx.NewError("token_expired", "id token expired", http.StatusUnauthorized)
	default:
		return httpx.NewError("invalid_token", "id token invalid", http.StatusUnauthorized)
	}
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
