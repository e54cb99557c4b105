package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/tallyroom/tallyroom/internal/platform/httpx"
	"github.com/tallyroom/tallyroom/internal/shared"
)

// ErrForbidden is returned when the acting principal may not perform a change.
var ErrForbidden = fmt.Errorf("access: %w", httpx.ErrForbidden)

// ErrNoPrincipal is returned when a request carries no authenticated user.
var ErrNoPrincipal = fmt.Errorf("access: %w", httpx.ErrUnauthorized)

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in ctx.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal stored by the middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// DenialRecorder is notified whenever a server-side check rejects a request.
type DenialRecorder interface {
	RecordDenial(module Module, role Role)
}

// Authorizer is the server-side edit check services depend on.
type Authorizer interface {
	Authorize(p Principal, module Module, date string) error
}

// Middleware enforces the policy on the server for routes that mutate data.
type Middleware struct {
	Policy   Policy
	Resolver *Resolver
	Logger   *slog.Logger
	Denials  DenialRecorder
}

// LoadPrincipal resolves the session user into a Principal and stores it in
// the request context. Anonymous requests pass through untouched.
func (m Middleware) LoadPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := sessionUserID(r)
		if !ok || m.Resolver == nil {
			next.ServeHTTP(w, r)
			return
		}
		p, err := m.Resolver.Resolve(r.Context(), userID)
		if err != nil {
			if errors.Is(err, httpx.ErrNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Error("resolve principal", slog.Int64("user_id", userID), slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	})
}

// RequireAuthenticated rejects requests without a principal.
func (m Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			httpx.RespondError(w, ErrNoPrincipal)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireEdit rejects requests whose principal may not edit module. It is
// meant for modules whose rules do not depend on a record date; date-bound
// modules call Authorize with the record's date instead.
func (m Middleware) RequireEdit(module Module) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, ErrNoPrincipal)
				return
			}
			if !m.Policy.CanEdit(p.Role, module, "") {
				m.deny(module, p)
				httpx.RespondError(w, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authorize checks that p may edit module for a record dated date.
func (m Middleware) Authorize(p Principal, module Module, date string) error {
	if m.Policy.CanEdit(p.Role, module, date) {
		return nil
	}
	m.deny(module, p)
	return ErrForbidden
}

var _ Authorizer = Middleware{}

func (m Middleware) deny(module Module, p Principal) {
	if m.Denials != nil {
		m.Denials.RecordDenial(module, p.Role)
	}
	if m.Logger != nil {
		m.Logger.Info("access denied", slog.String("module", module.String()), slog.String("role", p.Role.String()), slog.Int64("user_id", p.UserID))
	}
}

func sessionUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
