package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

type ctxKey int

const (
	sessionKey ctxKey = iota
	userKey
)

// SessionFromContext returns the request's session, set by SessionStore.Middleware.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionKey).(*Session)
	return sess
}

// UserFromContext returns the logged-in user, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userKey).(*User)
	return u
}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// Middleware loads the session into the request context and refreshes its
// expiry when the touch interval has passed.
func (s *SessionStore) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.Load(r)
		if err != nil {
			slog.Error("loading session", "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		if err := s.Touch(w, r, sess); err != nil {
			slog.Warn("touching session", "error", err)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
	})
}

// LoadUser resolves the session's user ID into a *User on the context.
// A session pointing at a deleted user is logged out.
func LoadUser(users *UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromContext(r.Context())
			if sess == nil || sess.UserID == 0 {
				next.ServeHTTP(w, r)
				return
			}

			u, err := users.GetByID(r.Context(), sess.UserID)
			if errors.Is(err, ErrUserNotFound) {
				sess.SetUser(0)
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				slog.Error("loading session user", "error", err, "user_id", sess.UserID)
				http.Error(w, "Internal error", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// RequireAuth redirects requests without a logged-in user to the login page,
// remembering where they were going. It fails closed: a missing session is
// treated as anonymous.
func RequireAuth(sessions *SessionStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}

		sess := SessionFromContext(r.Context())
		if sess != nil {
			sess.SetReturnTo(returnPath(r))
			sess.AddFlash(FlashError, "You must be logged in first")
			if err := sessions.Save(w, r, sess); err != nil {
				slog.Error("saving session", "error", err)
			}
		}

		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})
}

// returnPath picks the page to come back to after login. Only GET requests
// can be replayed; a rejected form submission returns to the listing it
// targeted instead.
func returnPath(r *http.Request) string {
	if r.Method == http.MethodGet {
		return r.URL.RequestURI()
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "listings" {
		if _, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
			return "/listings/" + parts[1]
		}
	}
	return "/listings"
}
