package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireAuthRedirectsUnauthenticated(t *testing.T) {
	store := testSessionStore(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := store.Middleware(RequireAuth(store, inner))

	r := httptest.NewRequest("GET", "/listings/new", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if w.Header().Get("Location") != "/login" {
		t.Errorf("location = %q, want /login", w.Header().Get("Location"))
	}

	// The redirect carries a session remembering the destination and a notice.
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected session cookie on redirect")
	}
	sess := loadWith(t, store, cookie)
	if sess.ReturnTo != "/listings/new" {
		t.Errorf("return_to = %q, want /listings/new", sess.ReturnTo)
	}
	flashes := sess.PopFlashes()
	if len(flashes) != 1 || flashes[0].Kind != FlashError {
		t.Errorf("flashes = %+v", flashes)
	}
}

func TestRequireAuthAllowsAuthenticated(t *testing.T) {
	store := testSessionStore(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireAuth(store, inner)

	r := httptest.NewRequest("GET", "/listings/new", nil)
	r = r.WithContext(WithUser(r.Context(), &User{ID: 1, Username: "alice"}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestLoadUser(t *testing.T) {
	d := testDB(t)
	users := NewUserStore(d)
	store := NewSessionStore(d, SessionConfig{Secret: []byte(testSecret), TTL: 3600e9, TouchAfter: 60e9})

	u, err := users.Register(context.Background(), SignupInput{Username: "alice", Email: "a@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	sess := loadFresh(t, store)
	sess.SetUser(u.ID)
	cookie := save(t, store, sess)

	var got *User
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserFromContext(r.Context())
	})
	handler := store.Middleware(LoadUser(users)(inner))

	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(cookie)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if got == nil || got.Username != "alice" {
		t.Fatalf("user = %+v, want alice", got)
	}

	// Anonymous requests carry no user.
	got = nil
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if got != nil {
		t.Errorf("expected no user, got %+v", got)
	}
}

func TestLoadUserDeletedUser(t *testing.T) {
	d := testDB(t)
	users := NewUserStore(d)
	store := NewSessionStore(d, SessionConfig{Secret: []byte(testSecret), TTL: 3600e9, TouchAfter: 60e9})

	sess := loadFresh(t, store)
	sess.SetUser(12345)
	cookie := save(t, store, sess)

	var got *User
	var gotSess *Session
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserFromContext(r.Context())
		gotSess = SessionFromContext(r.Context())
	})
	handler := store.Middleware(LoadUser(users)(inner))

	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(cookie)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if got != nil {
		t.Errorf("expected no user, got %+v", got)
	}
	if gotSess == nil || gotSess.UserID != 0 {
		t.Errorf("expected session to be logged out, got %+v", gotSess)
	}
}

func TestReturnPath(t *testing.T) {
	tests := []struct {
		method string
		target string
		want   string
	}{
		{"GET", "/listings/new", "/listings/new"},
		{"GET", "/listings/3/edit?x=1", "/listings/3/edit?x=1"},
		{"POST", "/listings/3/reviews", "/listings/3"},
		{"POST", "/listings/3?_method=DELETE", "/listings/3"},
		{"POST", "/listings", "/listings"},
		{"POST", "/listings/abc/reviews", "/listings"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			if got := returnPath(r); got != tt.want {
				t.Errorf("returnPath = %q, want %q", got, tt.want)
			}
		})
	}
}
