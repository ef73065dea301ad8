package listing

import (
	"context"
	"database/sql"
	"fmt"
)

// Repository provides CRUD operations for listings.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a listing repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const insertSQL = `INSERT INTO listings
	(title, description, image_url, image_key, price, location, country, owner_id, geo_lng, geo_lat)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectColumns = `l.id, l.title, l.description, l.image_url, l.image_key,
	l.price, l.location, l.country, l.owner_id, u.username,
	l.geo_lng, l.geo_lat, l.created_at, l.updated_at`

const selectFrom = `FROM listings l JOIN users u ON u.id = l.owner_id`

// Insert adds a new listing and returns it with its generated ID.
func (r *Repository) Insert(ctx context.Context, l *Listing) (*Listing, error) {
	var lng, lat interface{}
	if l.Geometry != nil {
		lng, lat = l.Geometry.Lng(), l.Geometry.Lat()
	}

	result, err := r.db.ExecContext(ctx, insertSQL,
		l.Title, l.Description, l.Image.URL, l.Image.Key,
		l.Price, l.Location, l.Country, l.Owner, lng, lat,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting listing: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting insert id: %w", err)
	}

	return r.GetByID(ctx, id)
}

// GetByID returns a listing with its owner name and ordered review IDs.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Listing, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE l.id = ?", selectColumns, selectFrom)

	l, err := scanListing(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying listing %d: %w", id, err)
	}

	l.ReviewIDs, err = r.reviewIDs(ctx, id)
	if err != nil {
		return nil, err
	}

	return l, nil
}

func (r *Repository) reviewIDs(ctx context.Context, listingID int64) (ids []int64, err error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT review_id FROM listing_reviews WHERE listing_id = ? ORDER BY position",
		listingID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying review references: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	ids = []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning review reference: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// List returns all listings, newest first. Review IDs are not loaded.
func (r *Repository) List(ctx context.Context) (listings []*Listing, err error) {
	query := fmt.Sprintf("SELECT %s %s ORDER BY l.created_at DESC, l.id DESC", selectColumns, selectFrom)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing listings: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		listings = append(listings, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating listings: %w", err)
	}

	return listings, nil
}

// Update writes the user-editable fields of a listing, and the image when
// img is non-nil. Owner and geometry are never changed.
func (r *Repository) Update(ctx context.Context, id int64, in Input, img *Image) error {
	var price int64
	if in.Price != nil {
		price = *in.Price
	}

	var result sql.Result
	var err error
	if img != nil {
		result, err = r.db.ExecContext(ctx,
			`UPDATE listings SET title = ?, description = ?, price = ?, location = ?, country = ?,
				image_url = ?, image_key = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			in.Title, in.Description, price, in.Location, in.Country, img.URL, img.Key, id,
		)
	} else {
		result, err = r.db.ExecContext(ctx,
			`UPDATE listings SET title = ?, description = ?, price = ?, location = ?, country = ?,
				updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			in.Title, in.Description, price, in.Location, in.Country, id,
		)
	}
	if err != nil {
		return fmt.Errorf("updating listing: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a listing together with its reviews and review references
// in one transaction.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM listing_reviews WHERE listing_id = ?", id); err != nil {
		return fmt.Errorf("deleting review references: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM reviews WHERE listing_id = ?", id); err != nil {
		return fmt.Errorf("deleting reviews: %w", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM listings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting listing: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}
