package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		wantErr bool
	}{
		{
			name: "creates new database",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "wanderlust.db")
			},
		},
		{
			name: "creates nested directories",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "a", "b", "wanderlust.db")
			},
		},
		{
			name: "opens existing database",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "wanderlust.db")
				d, err := Open(path)
				if err != nil {
					t.Fatalf("setup: %v", err)
				}
				if err := d.Close(); err != nil {
					t.Fatalf("setup close: %v", err)
				}
				return path
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setup(t)
			d, err := Open(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer func() {
				if err := d.Close(); err != nil {
					t.Errorf("close: %v", err)
				}
			}()

			if _, err := os.Stat(path); os.IsNotExist(err) {
				t.Error("database file was not created")
			}
		})
	}
}

func TestWALMode(t *testing.T) {
	d := openTestDB(t)

	var mode string
	if err := d.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want %q", mode, "wal")
	}
}

func TestForeignKeys(t *testing.T) {
	d := openTestDB(t)

	var fk int
	if err := d.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestMigrations(t *testing.T) {
	tests := []struct {
		name  string
		table string
		cols  []string
	}{
		{
			name:  "users table exists",
			table: "users",
			cols:  []string{"id", "username", "email", "password_hash", "created_at"},
		},
		{
			name:  "listings table exists",
			table: "listings",
			cols:  []string{"id", "title", "description", "image_url", "price", "location", "country", "owner_id", "geo_lng", "geo_lat", "created_at", "updated_at", "image_key"},
		},
		{
			name:  "reviews table exists",
			table: "reviews",
			cols:  []string{"id", "listing_id", "body", "rating", "author_id", "created_at"},
		},
		{
			name:  "listing_reviews table exists",
			table: "listing_reviews",
			cols:  []string{"listing_id", "review_id", "position"},
		},
		{
			name:  "sessions table exists",
			table: "sessions",
			cols:  []string{"id", "data", "expires_at", "touched_at", "created_at"},
		},
	}

	d := openTestDB(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols := tableColumns(t, d, tt.table)
			if len(cols) != len(tt.cols) {
				t.Fatalf("got %d columns, want %d: %v", len(cols), len(tt.cols), cols)
			}
			for i, want := range tt.cols {
				if cols[i] != want {
					t.Errorf("column %d = %q, want %q", i, cols[i], want)
				}
			}
		})
	}
}

func TestRatingConstraint(t *testing.T) {
	d := openTestDB(t)
	userID := insertUser(t, d, "rater")
	listingID := insertListing(t, d, userID)

	tests := []struct {
		name    string
		rating  int
		wantErr bool
	}{
		{"rating 1 is valid", 1, false},
		{"rating 5 is valid", 5, false},
		{"rating 0 is invalid", 0, true},
		{"rating 6 is invalid", 6, true},
		{"rating -1 is invalid", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Exec(
				`INSERT INTO reviews (listing_id, body, rating, author_id) VALUES (?, ?, ?, ?)`,
				listingID, "ok", tt.rating, userID,
			)
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestGeometryConstraint(t *testing.T) {
	d := openTestDB(t)
	userID := insertUser(t, d, "mapper")

	tests := []struct {
		name    string
		lng     interface{}
		lat     interface{}
		wantErr bool
	}{
		{"no geometry", nil, nil, false},
		{"valid point", -104.99, 39.74, false},
		{"longitude only", -104.99, nil, true},
		{"latitude only", nil, 39.74, true},
		{"longitude out of range", 200.0, 10.0, true},
		{"latitude out of range", 10.0, -91.0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Exec(
				`INSERT INTO listings (title, owner_id, geo_lng, geo_lat) VALUES (?, ?, ?, ?)`,
				"Cabin", userID, tt.lng, tt.lat,
			)
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestForeignKeyEnforced(t *testing.T) {
	d := openTestDB(t)

	// Every pooled connection must enforce foreign keys, not just the first.
	d.SetMaxOpenConns(4)
	for i := 0; i < 4; i++ {
		_, err := d.Exec(`INSERT INTO listings (title, owner_id) VALUES (?, ?)`, "Orphan", 9999+i)
		if err == nil {
			t.Fatalf("attempt %d: expected foreign key error for missing owner", i)
		}
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wanderlust.db")

	// Open twice: migrations should not fail on second run
	d1, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := d1.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}

	d2, err := Open(path)
	if err != nil {
		t.Fatalf("second open (idempotency): %v", err)
	}
	if err := d2.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestDefaultPath(t *testing.T) {
	p, err := DefaultPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if filepath.Base(p) != "wanderlust.db" {
		t.Errorf("expected filename wanderlust.db, got %s", filepath.Base(p))
	}

	dir := filepath.Base(filepath.Dir(p))
	if dir != ".wanderlust" {
		t.Errorf("expected directory .wanderlust, got %s", dir)
	}
}

// openTestDB creates a temporary database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wanderlust.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close test db: %v", err)
		}
	})
	return d
}

// tableColumns returns column names for a table using PRAGMA table_info.
func tableColumns(t *testing.T, d *sql.DB, table string) []string {
	t.Helper()
	rows, err := d.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		t.Fatalf("pragma table_info(%s): %v", table, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			t.Errorf("close rows: %v", err)
		}
	}()

	var cols []string
	for rows.Next() {
		var cid int
		var name, typ string
		var notnull int
		var dflt *string
		var pk int
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			t.Fatalf("scan: %v", err)
		}
		cols = append(cols, name)
	}
	return cols
}

func insertUser(t *testing.T, d *sql.DB, username string) int64 {
	t.Helper()
	res, err := d.Exec(
		`INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)`,
		username, username+"@example.com", "x",
	)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("last insert id: %v", err)
	}
	return id
}

func insertListing(t *testing.T, d *sql.DB, ownerID int64) int64 {
	t.Helper()
	res, err := d.Exec(`INSERT INTO listings (title, owner_id) VALUES (?, ?)`, "Cabin", ownerID)
	if err != nil {
		t.Fatalf("insert listing: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("last insert id: %v", err)
	}
	return id
}
