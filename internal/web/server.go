// Package web provides the HTTP server and handlers for the wanderlust web UI.
package web

import (
	"database/sql"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/evcraddock/wanderlust/internal/auth"
	"github.com/evcraddock/wanderlust/internal/geocode"
	"github.com/evcraddock/wanderlust/internal/listing"
	"github.com/evcraddock/wanderlust/internal/logging"
	"github.com/evcraddock/wanderlust/internal/review"
	"github.com/evcraddock/wanderlust/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// pages are rendered inside templates/layout.html.
var pages = []string{
	"index.html",
	"new.html",
	"show.html",
	"edit.html",
	"login.html",
	"signup.html",
	"error.html",
}

// Config holds the web server settings.
type Config struct {
	Session        auth.SessionConfig
	AllowedOrigins []string
}

// Server is the web UI HTTP server.
type Server struct {
	listings   *listing.Repository
	listingSvc *listing.Service
	reviews    *review.Repository
	users      *auth.UserStore
	sessions   *auth.SessionStore
	geocoder   geocode.Geocoder
	images     storage.ImageStore
	templates  map[string]*template.Template
	router     chi.Router
}

// NewServer creates a web server. images may be nil, in which case uploaded
// files are ignored.
func NewServer(db *sql.DB, cfg Config, geocoder geocode.Geocoder, images storage.ImageStore) (*Server, error) {
	funcMap := template.FuncMap{
		"formatPrice": tmplFormatPrice,
		"stars":       tmplStars,
		"seq":         tmplSeq,
	}

	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		tmpl, err := template.New(page).Funcs(funcMap).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}
		templates[page] = tmpl
	}

	listings := listing.NewRepository(db)
	s := &Server{
		listings:   listings,
		listingSvc: listing.NewService(listings, geocoder),
		reviews:    review.NewRepository(db),
		users:      auth.NewUserStore(db),
		sessions:   auth.NewSessionStore(db, cfg.Session),
		geocoder:   geocoder,
		images:     images,
		templates:  templates,
	}

	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("creating static sub-fs: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger)
	r.Use(s.recoverer)
	r.Use(methodOverride)

	r.NotFound(s.handle(func(w http.ResponseWriter, r *http.Request) error {
		return &Error{Status: http.StatusNotFound, Message: "Page not found!"}
	}))
	r.MethodNotAllowed(s.handle(func(w http.ResponseWriter, r *http.Request) error {
		return &Error{Status: http.StatusMethodNotAllowed, Message: "Method not allowed"}
	}))

	r.Get("/health", handleHealth)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticContent))))

	r.Group(func(r chi.Router) {
		r.Use(s.sessions.Middleware)
		r.Use(auth.LoadUser(s.users))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/listings", http.StatusFound)
		})

		r.Route("/listings", func(r chi.Router) {
			r.Get("/", s.handle(s.handleIndex))
			r.With(s.requireAuth).Get("/new", s.handle(s.handleNew))
			r.With(s.requireAuth).Post("/", s.handle(s.handleCreate))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handle(s.handleShow))
				r.Group(func(r chi.Router) {
					r.Use(corsFor(cfg.AllowedOrigins)...)
					r.Get("/geocode", s.handleGeocode)
					r.Options("/geocode", handlePreflight)
				})

				r.Group(func(r chi.Router) {
					r.Use(s.requireAuth)
					r.Get("/edit", s.handle(s.handleEdit))
					r.Put("/", s.handle(s.handleUpdate))
					r.Delete("/", s.handle(s.handleDelete))
					r.Post("/reviews", s.handle(s.handleCreateReview))
					r.Delete("/reviews/{reviewId}", s.handle(s.handleDeleteReview))
				})
			})
		})

		r.Get("/signup", s.handle(s.handleSignupPage))
		r.Post("/signup", s.handle(s.handleSignup))
		r.Get("/login", s.handle(s.handleLoginPage))
		r.Post("/login", s.handle(s.handleLogin))
		r.Get("/logout", s.handle(s.handleLogout))
	})

	s.router = r
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Sessions returns the session store, for background cleanup.
func (s *Server) Sessions() *auth.SessionStore {
	return s.sessions
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return auth.RequireAuth(s.sessions, next)
}

// corsFor allows cross-origin reads of the JSON geocode endpoint from the
// configured origins. No origins, no CORS headers.
func corsFor(origins []string) []func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return nil
	}
	return []func(http.Handler) http.Handler{cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		MaxAge:         300,
	})}
}

// methodOverride lets HTML forms send PUT and DELETE as POST with a
// _method query parameter.
func methodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			switch m := strings.ToUpper(r.URL.Query().Get("_method")); m {
			case http.MethodPut, http.MethodPatch, http.MethodDelete:
				r.Method = m
			}
		}
		next.ServeHTTP(w, r)
	})
}

// handlePreflight answers OPTIONS requests the CORS middleware let through.
func handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Template helper functions

func tmplFormatPrice(p int64) string {
	return "₹" + formatWithCommas(p)
}

func tmplStars(rating int) string {
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}
	return strings.Repeat("★", rating) + strings.Repeat("☆", 5-rating)
}

func tmplSeq(start, end int) []int {
	var s []int
	for i := start; i <= end; i++ {
		s = append(s, i)
	}
	return s
}

func formatWithCommas(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	return strings.Join(parts, ",")
}
