package auth

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/evcraddock/wanderlust/internal/db"
	"github.com/evcraddock/wanderlust/internal/validate"
)

func init() {
	bcryptCost = bcrypt.MinCost
}

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if cerr := d.Close(); cerr != nil {
			t.Errorf("close db: %v", cerr)
		}
	})
	return d
}

func testUserStore(t *testing.T) *UserStore {
	t.Helper()
	return NewUserStore(testDB(t))
}

func TestRegisterAndAuthenticate(t *testing.T) {
	s := testUserStore(t)
	ctx := context.Background()

	u, err := s.Register(ctx, SignupInput{Username: "alice", Email: " Alice@Example.com ", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want lowercased", u.Email)
	}

	got, err := s.Authenticate(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("id = %d, want %d", got.ID, u.ID)
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	s := testUserStore(t)
	ctx := context.Background()

	if _, err := s.Register(ctx, SignupInput{Username: "alice", Email: "a@example.com", Password: "correct-horse"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := s.Authenticate(ctx, "alice", "wrong-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthenticateUnknownUser(t *testing.T) {
	s := testUserStore(t)

	if _, err := s.Authenticate(context.Background(), "nobody", "whatever1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	s := testUserStore(t)
	ctx := context.Background()

	in := SignupInput{Username: "alice", Email: "a@example.com", Password: "correct-horse"}
	if _, err := s.Register(ctx, in); err != nil {
		t.Fatalf("first register: %v", err)
	}

	in.Username = "ALICE"
	if _, err := s.Register(ctx, in); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("err = %v, want ErrUsernameTaken", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := testUserStore(t)

	tests := []struct {
		name string
		in   SignupInput
	}{
		{"missing username", SignupInput{Email: "a@example.com", Password: "correct-horse"}},
		{"short username", SignupInput{Username: "al", Email: "a@example.com", Password: "correct-horse"}},
		{"bad email", SignupInput{Username: "alice", Email: "not-an-email", Password: "correct-horse"}},
		{"short password", SignupInput{Username: "alice", Email: "a@example.com", Password: "short"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Register(context.Background(), tt.in)
			var verr *validate.Error
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *validate.Error", err)
			}
		})
	}
}

func TestGetByIDNotFound(t *testing.T) {
	s := testUserStore(t)

	if _, err := s.GetByID(context.Background(), 9999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}

func TestList(t *testing.T) {
	s := testUserStore(t)
	ctx := context.Background()

	for _, name := range []string{"carol", "alice", "bob"} {
		if _, err := s.Register(ctx, SignupInput{Username: name, Email: name + "@example.com", Password: "password123"}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	users, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("got %d users, want 3", len(users))
	}
	if users[0].Username != "alice" || users[2].Username != "carol" {
		t.Errorf("order = %s,%s,%s", users[0].Username, users[1].Username, users[2].Username)
	}
}
