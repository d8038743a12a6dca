package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/andrewwphillips/libris/internal/store"
)

const bearerScheme = "Bearer "

// contextKey is unexported so only this package can attach the current user.
type contextKey struct{}

// WithUser returns a context carrying the given user as the current user.
func WithUser(ctx context.Context, u *store.User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// UserFrom returns the current user attached to the context, or nil for an
// anonymous request.
func UserFrom(ctx context.Context) *store.User {
	u, _ := ctx.Value(contextKey{}).(*store.User)
	return u
}

// UserFinder resolves a verified token's user id to the stored user.
type UserFinder interface {
	UserByID(ctx context.Context, id string) (*store.User, error)
}

type authHandler struct {
	authority *Authority
	users     UserFinder
	inner     http.Handler
}

// Handler wraps inner so that each request's bearer credential is resolved to
// a current user before any resolver runs.  No credential means anonymous; a
// credential that fails verification fails the whole request.
func Handler(authority *Authority, users UserFinder, inner http.Handler) http.Handler {
	return &authHandler{authority: authority, users: users, inner: inner}
}

func (h *authHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerScheme) {
		h.inner.ServeHTTP(w, r) // no credential supplied - run as anonymous
		return
	}

	identity, err := h.authority.Verify(strings.TrimPrefix(header, bearerScheme))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	user, err := h.users.UserByID(r.Context(), identity.UserID)
	if errors.Is(err, store.ErrNotFound) {
		// token is valid but the user is gone - treated as anonymous
		h.inner.ServeHTTP(w, r)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "resolving current user failed")
		return
	}
	h.inner.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"errors":[{"message":%q}]}`, message)
}
