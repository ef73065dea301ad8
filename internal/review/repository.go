package review

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/evcraddock/wanderlust/internal/validate"
)

// Repository provides CRUD operations for reviews. A listing's reviews are
// kept in two places, the reviews table and the listing's ordered
// listing_reviews references, and every write changes both.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a review repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `r.id, r.listing_id, r.body, r.rating, r.author_id, u.username, r.created_at`

func scanReview(row interface{ Scan(...interface{}) error }) (*Review, error) {
	var rv Review
	err := row.Scan(&rv.ID, &rv.ListingID, &rv.Body, &rv.Rating, &rv.AuthorID, &rv.AuthorName, &rv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

// Add validates the input, stores the review by authorID and appends it to
// the listing's review references.
func (r *Repository) Add(ctx context.Context, listingID, authorID int64, in Input) (*Review, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM listings WHERE id = ?", listingID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking listing: %w", err)
	}
	if exists == 0 {
		return nil, ErrListingNotFound
	}

	result, err := tx.ExecContext(ctx,
		"INSERT INTO reviews (listing_id, body, rating, author_id) VALUES (?, ?, ?, ?)",
		listingID, in.Body, *in.Rating, authorID,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting review: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO listing_reviews (listing_id, review_id, position)
			SELECT ?, ?, COALESCE(MAX(position) + 1, 0) FROM listing_reviews WHERE listing_id = ?`,
		listingID, id, listingID,
	); err != nil {
		return nil, fmt.Errorf("linking review: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing review: %w", err)
	}

	return r.GetByID(ctx, id)
}

// GetByID returns a review with its author name.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Review, error) {
	query := fmt.Sprintf("SELECT %s FROM reviews r JOIN users u ON u.id = r.author_id WHERE r.id = ?", selectColumns)

	rv, err := scanReview(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying review %d: %w", id, err)
	}
	return rv, nil
}

// ListByListingID returns a listing's reviews in the order they were added.
func (r *Repository) ListByListingID(ctx context.Context, listingID int64) (reviews []*Review, err error) {
	query := fmt.Sprintf(`SELECT %s FROM listing_reviews lr
		JOIN reviews r ON r.id = lr.review_id
		JOIN users u ON u.id = r.author_id
		WHERE lr.listing_id = ?
		ORDER BY lr.position`, selectColumns)

	rows, err := r.db.QueryContext(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("listing reviews: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning review: %w", err)
		}
		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reviews: %w", err)
	}

	return reviews, nil
}

// Delete removes a review from the listing's references and from the
// reviews table in one transaction.
func (r *Repository) Delete(ctx context.Context, listingID, reviewID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM listing_reviews WHERE listing_id = ? AND review_id = ?",
		listingID, reviewID,
	); err != nil {
		return fmt.Errorf("unlinking review: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		"DELETE FROM reviews WHERE id = ? AND listing_id = ?",
		reviewID, listingID,
	)
	if err != nil {
		return fmt.Errorf("deleting review: %w", err)
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
