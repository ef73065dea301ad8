package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const cookieName = "wl_session"

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash is a one-shot notice shown on the next rendered page.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Session is the server-side state behind a session cookie.
type Session struct {
	ID        string
	UserID    int64
	ReturnTo  string
	ExpiresAt time.Time
	TouchedAt time.Time

	flashes []Flash
	isNew   bool
	dirty   bool
}

// sessionData is the JSON stored in sessions.data.
type sessionData struct {
	UserID   int64   `json:"user_id,omitempty"`
	ReturnTo string  `json:"return_to,omitempty"`
	Flashes  []Flash `json:"flashes,omitempty"`
}

// AddFlash queues a notice for the next rendered page.
func (s *Session) AddFlash(kind, message string) {
	s.flashes = append(s.flashes, Flash{Kind: kind, Message: message})
	s.dirty = true
}

// PopFlashes returns and clears the queued notices.
func (s *Session) PopFlashes() []Flash {
	if len(s.flashes) == 0 {
		return nil
	}
	out := s.flashes
	s.flashes = nil
	s.dirty = true
	return out
}

// SetUser records the logged-in user (0 logs out).
func (s *Session) SetUser(id int64) {
	s.UserID = id
	s.dirty = true
}

// SetReturnTo remembers where to send the user after login.
func (s *Session) SetReturnTo(path string) {
	s.ReturnTo = path
	s.dirty = true
}

// PopReturnTo returns and clears the remembered path.
func (s *Session) PopReturnTo() string {
	p := s.ReturnTo
	if p != "" {
		s.ReturnTo = ""
		s.dirty = true
	}
	return p
}

// IsNew reports whether the session has never been stored.
func (s *Session) IsNew() bool { return s.isNew }

// SessionConfig controls cookie signing and expiry.
type SessionConfig struct {
	Secret     []byte
	TTL        time.Duration // sliding lifetime
	TouchAfter time.Duration // minimum interval between expiry refreshes of an unchanged session
	Secure     bool
}

// SessionStore manages sessions in SQLite. The cookie carries an HS256 token
// whose ID claim is the session ID; the data lives in the sessions table.
type SessionStore struct {
	db  *sql.DB
	cfg SessionConfig
	now func() time.Time
}

// NewSessionStore creates a session store.
func NewSessionStore(db *sql.DB, cfg SessionConfig) *SessionStore {
	return &SessionStore{db: db, cfg: cfg, now: time.Now}
}

// Load returns the session for the request's cookie, or a new unsaved
// session when the cookie is missing, forged, expired or unknown.
func (s *SessionStore) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return s.newSession(), nil
	}

	id, err := s.parseToken(cookie.Value)
	if err != nil {
		return s.newSession(), nil
	}

	var raw string
	sess := &Session{ID: id}
	err = s.db.QueryRowContext(r.Context(),
		"SELECT data, expires_at, touched_at FROM sessions WHERE id = ?", id,
	).Scan(&raw, &sess.ExpiresAt, &sess.TouchedAt)
	if err == sql.ErrNoRows {
		return s.newSession(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if s.now().After(sess.ExpiresAt) {
		if _, err := s.db.ExecContext(r.Context(), "DELETE FROM sessions WHERE id = ?", id); err != nil {
			return nil, fmt.Errorf("deleting expired session: %w", err)
		}
		return s.newSession(), nil
	}

	var data sessionData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("decoding session data: %w", err)
	}
	sess.UserID = data.UserID
	sess.ReturnTo = data.ReturnTo
	sess.flashes = data.Flashes

	return sess, nil
}

// Save persists a changed session and (re)issues its cookie. Unchanged new
// sessions are not stored.
func (s *SessionStore) Save(w http.ResponseWriter, r *http.Request, sess *Session) error {
	if !sess.dirty {
		return nil
	}

	data, err := json.Marshal(sessionData{
		UserID:   sess.UserID,
		ReturnTo: sess.ReturnTo,
		Flashes:  sess.flashes,
	})
	if err != nil {
		return fmt.Errorf("encoding session data: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(s.cfg.TTL)

	if sess.isNew {
		_, err = s.db.ExecContext(r.Context(),
			"INSERT INTO sessions (id, data, expires_at, touched_at) VALUES (?, ?, ?, ?)",
			sess.ID, string(data), expiresAt, now,
		)
	} else {
		_, err = s.db.ExecContext(r.Context(),
			"UPDATE sessions SET data = ?, expires_at = ?, touched_at = ? WHERE id = ?",
			string(data), expiresAt, now, sess.ID,
		)
	}
	if err != nil {
		return fmt.Errorf("storing session: %w", err)
	}

	sess.ExpiresAt = expiresAt
	sess.TouchedAt = now
	sess.isNew = false
	sess.dirty = false

	return s.setCookie(w, sess)
}

// Touch extends an unchanged stored session, at most once per TouchAfter.
func (s *SessionStore) Touch(w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess.isNew {
		return nil
	}
	now := s.now()
	if now.Sub(sess.TouchedAt) < s.cfg.TouchAfter {
		return nil
	}

	expiresAt := now.Add(s.cfg.TTL)
	if _, err := s.db.ExecContext(r.Context(),
		"UPDATE sessions SET expires_at = ?, touched_at = ? WHERE id = ?",
		expiresAt, now, sess.ID,
	); err != nil {
		return fmt.Errorf("touching session: %w", err)
	}

	sess.ExpiresAt = expiresAt
	sess.TouchedAt = now
	return s.setCookie(w, sess)
}

// Renew moves the session to a fresh ID, keeping its data. Called on login
// and logout so a pre-login cookie cannot be reused.
func (s *SessionStore) Renew(r *http.Request, sess *Session) error {
	if !sess.isNew {
		if _, err := s.db.ExecContext(r.Context(), "DELETE FROM sessions WHERE id = ?", sess.ID); err != nil {
			return fmt.Errorf("deleting old session: %w", err)
		}
	}
	id, err := generateSessionID()
	if err != nil {
		return fmt.Errorf("generating session ID: %w", err)
	}
	sess.ID = id
	sess.isNew = true
	sess.dirty = true
	return nil
}

// Destroy removes the session and clears the cookie.
func (s *SessionStore) Destroy(w http.ResponseWriter, r *http.Request, sess *Session) error {
	if !sess.isNew {
		if _, err := s.db.ExecContext(r.Context(), "DELETE FROM sessions WHERE id = ?", sess.ID); err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// Cleanup removes expired sessions and returns how many were deleted.
func (s *SessionStore) Cleanup(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at < ?",
		s.now(),
	)
	if err != nil {
		return 0, fmt.Errorf("cleaning up sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking affected rows: %w", err)
	}
	return n, nil
}

// RunCleanup deletes expired sessions every interval until ctx is done.
func (s *SessionStore) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Cleanup(ctx)
			if err != nil {
				slog.Error("session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("expired sessions removed", "count", n)
			}
		}
	}
}

func (s *SessionStore) newSession() *Session {
	id, err := generateSessionID()
	if err != nil {
		// crypto/rand does not fail on supported platforms.
		panic(fmt.Sprintf("generating session ID: %v", err))
	}
	return &Session{ID: id, isNew: true}
}

func (s *SessionStore) setCookie(w http.ResponseWriter, sess *Session) error {
	token, err := s.signToken(sess.ID, sess.ExpiresAt)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *SessionStore) signToken(id string, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(s.now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("signing session cookie: %w", err)
	}
	return token, nil
}

func (s *SessionStore) parseToken(value string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(value, &claims,
		func(*jwt.Token) (interface{}, error) { return s.cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("parsing session cookie: %w", err)
	}
	if claims.ID == "" {
		return "", errors.New("session cookie has no ID")
	}
	return claims.ID, nil
}

func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
