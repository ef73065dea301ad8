package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/evcraddock/wanderlust/internal/auth"
	"github.com/evcraddock/wanderlust/internal/validate"
)

// Error is a handler error with the status and message shown to the user.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// appHandler is a handler whose errors are rendered as the error page.
type appHandler func(w http.ResponseWriter, r *http.Request) error

func (s *Server) handle(fn appHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			s.renderError(w, r, err)
		}
	}
}

// page is the data every template receives.
type page struct {
	Title   string
	User    *auth.User
	Flashes []auth.Flash
}

func (p *page) base() *page { return p }

type pageData interface {
	base() *page
}

type errorData struct {
	page
	Status  int
	Message string
}

// render executes a page into a buffer, then stores the session (whose
// flashes the page consumed) before writing anything.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) error {
	tmpl, ok := s.templates[name]
	if !ok {
		return fmt.Errorf("unknown template %s", name)
	}

	p := data.base()
	p.User = auth.UserFromContext(r.Context())
	sess := auth.SessionFromContext(r.Context())
	if sess != nil {
		p.Flashes = sess.PopFlashes()
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("rendering %s: %w", name, err)
	}

	if sess != nil {
		if err := s.sessions.Save(w, r, sess); err != nil {
			slog.Error("saving session", "error", err)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// renderError renders the error page for err. Unknown errors are logged and
// shown as a generic 500.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "Something went wrong!"

	var webErr *Error
	var valErr *validate.Error
	switch {
	case errors.As(err, &webErr):
		status = webErr.Status
		if webErr.Message != "" {
			message = webErr.Message
		}
		if status >= 500 {
			slog.Error("request failed", "error", err, "path", r.URL.Path)
		}
	case errors.As(err, &valErr):
		status = http.StatusBadRequest
		message = valErr.Error()
	default:
		slog.Error("request failed", "error", err, "path", r.URL.Path)
	}

	data := &errorData{page: page{Title: "Error"}, Status: status, Message: message}
	if rerr := s.render(w, r, status, "error.html", data); rerr != nil {
		slog.Error("rendering error page", "error", rerr)
		http.Error(w, message, status)
	}
}

// recoverer turns a panic into the error page.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.Error("panic serving request", "panic", rec, "path", r.URL.Path, "stack", string(debug.Stack()))
				s.renderError(w, r, &Error{Status: http.StatusInternalServerError})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// redirect queues a flash notice and sends a 303 to url.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, kind, message, url string) {
	if sess := auth.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(kind, message)
		if err := s.sessions.Save(w, r, sess); err != nil {
			slog.Error("saving session", "error", err)
		}
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}
