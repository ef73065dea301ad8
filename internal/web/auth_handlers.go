package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/evcraddock/wanderlust/internal/auth"
	"github.com/evcraddock/wanderlust/internal/validate"
)

// handleSignupPage renders the signup form.
func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) error {
	return s.render(w, r, http.StatusOK, "signup.html", &page{Title: "Sign up"})
}

// handleSignup registers a user and logs them in.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return &Error{Status: http.StatusBadRequest, Message: "Bad request", Err: err}
	}

	u, err := s.users.Register(r.Context(), auth.SignupInput{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	})
	if err != nil {
		var valErr *validate.Error
		switch {
		case errors.As(err, &valErr):
			s.redirect(w, r, auth.FlashError, valErr.Error(), "/signup")
		case errors.Is(err, auth.ErrUsernameTaken):
			s.redirect(w, r, auth.FlashError, "A user with the given username is already registered", "/signup")
		default:
			slog.Error("registering user", "error", err)
			s.redirect(w, r, auth.FlashError, "Error creating account.", "/signup")
		}
		return nil
	}

	slog.Info("user registered", "user_id", u.ID)
	return s.logIn(w, r, u, "Welcome to Wanderlust!", "/listings")
}

// handleLoginPage renders the login form.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) error {
	return s.render(w, r, http.StatusOK, "login.html", &page{Title: "Log in"})
}

// handleLogin checks the password and sends the user back to where they
// were going.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return &Error{Status: http.StatusBadRequest, Message: "Bad request", Err: err}
	}

	u, err := s.users.Authenticate(r.Context(), r.FormValue("username"), r.FormValue("password"))
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.redirect(w, r, auth.FlashError, "Invalid username or password", "/login")
		return nil
	}
	if err != nil {
		return err
	}

	dest := "/listings"
	if sess := auth.SessionFromContext(r.Context()); sess != nil {
		if p := sess.PopReturnTo(); safeRedirect(p) {
			dest = p
		}
	}

	return s.logIn(w, r, u, "Welcome back to Wanderlust!", dest)
}

// handleLogout clears the user from the session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) error {
	sess := auth.SessionFromContext(r.Context())
	if sess != nil {
		if err := s.sessions.Renew(r, sess); err != nil {
			return err
		}
		sess.SetUser(0)
		sess.SetReturnTo("")
	}
	s.redirect(w, r, auth.FlashSuccess, "You are logged out!", "/listings")
	return nil
}

// logIn moves the session to a fresh ID and binds it to u.
func (s *Server) logIn(w http.ResponseWriter, r *http.Request, u *auth.User, message, dest string) error {
	sess := auth.SessionFromContext(r.Context())
	if sess == nil {
		return errors.New("no session on request")
	}
	if err := s.sessions.Renew(r, sess); err != nil {
		return err
	}
	sess.SetUser(u.ID)
	s.redirect(w, r, auth.FlashSuccess, message, dest)
	return nil
}

// safeRedirect reports whether p is a local path.
func safeRedirect(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}
