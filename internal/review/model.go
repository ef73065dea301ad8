// Package review provides the review domain model and data access.
package review

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/evcraddock/wanderlust/internal/validate"
)

var (
	// ErrNotFound is returned when a review ID does not exist on the listing.
	ErrNotFound = errors.New("review not found")
	// ErrListingNotFound is returned when reviewing a listing that does not exist.
	ErrListingNotFound = errors.New("listing not found")
)

// Review is a rating and comment left on a listing.
type Review struct {
	ID         int64     `json:"id"`
	ListingID  int64     `json:"listing_id"`
	Body       string    `json:"comment"`
	Rating     int       `json:"rating"`
	AuthorID   int64     `json:"author_id"`
	AuthorName string    `json:"author"`
	CreatedAt  time.Time `json:"created_at"`
}

// OwnerID returns the review's author.
func (r *Review) OwnerID() int64 { return r.AuthorID }

// Input is the review form payload.
type Input struct {
	Body   string `form:"comment" validate:"required,max=2000"`
	Rating *int   `form:"rating" validate:"required,min=1,max=5"`
}

// InputFromForm reads an Input from submitted form values, accepting plain
// ("comment") or nested ("review[comment]") field names.
func InputFromForm(form url.Values) (Input, error) {
	get := func(name string) string {
		if v := form.Get("review[" + name + "]"); v != "" {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(form.Get(name))
	}

	in := Input{Body: get("comment")}

	if raw := get("rating"); raw != "" {
		rating, err := strconv.Atoi(raw)
		if err != nil {
			return in, &validate.Error{Fields: []validate.FieldError{
				{Field: "rating", Message: `"rating" must be a number`},
			}}
		}
		in.Rating = &rating
	}

	return in, nil
}
