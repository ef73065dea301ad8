// Package listing provides the listing domain model, data access and the
// create/update workflow.
package listing

import (
	"database/sql"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/evcraddock/wanderlust/internal/validate"
)

var (
	// ErrNotFound is returned when a listing ID does not exist.
	ErrNotFound = errors.New("listing not found")
	// ErrLocationRequired is returned when a listing is submitted without a location.
	ErrLocationRequired = errors.New("location is required")
	// ErrLocationNotFound is returned when the location cannot be geocoded.
	ErrLocationNotFound = errors.New("location could not be found")
)

// Image is an uploaded picture and its key in the image store.
type Image struct {
	URL string `json:"url"`
	Key string `json:"key,omitempty"`
}

// Geometry is a GeoJSON point. Coordinates are [longitude, latitude].
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// NewPoint builds a point geometry.
func NewPoint(lng, lat float64) *Geometry {
	return &Geometry{Type: "Point", Coordinates: [2]float64{lng, lat}}
}

// Lng returns the longitude.
func (g *Geometry) Lng() float64 { return g.Coordinates[0] }

// Lat returns the latitude.
func (g *Geometry) Lat() float64 { return g.Coordinates[1] }

// Listing is a rentable property.
type Listing struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Image       Image     `json:"image"`
	Price       int64     `json:"price"`
	Location    string    `json:"location"`
	Country     string    `json:"country"`
	Owner       int64     `json:"owner_id"`
	OwnerName   string    `json:"owner"`
	Geometry    *Geometry `json:"geometry,omitempty"`
	ReviewIDs   []int64   `json:"reviews"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OwnerID returns the user who created the listing.
func (l *Listing) OwnerID() int64 { return l.Owner }

// PreviewURL returns a reduced-size variant of the image for the edit form.
// URLs from CDNs with an /upload path segment get a width transform, others
// are returned unchanged.
func (l *Listing) PreviewURL() string {
	return strings.Replace(l.Image.URL, "/upload", "/upload/w_250", 1)
}

// Input is the listing form payload. Only these fields can be set by a user.
type Input struct {
	Title       string `form:"title" validate:"required,max=200"`
	Description string `form:"description" validate:"required,max=5000"`
	Price       *int64 `form:"price" validate:"required,gte=0"`
	Location    string `form:"location" validate:"max=200"`
	Country     string `form:"country" validate:"required,max=100"`
}

// InputFromForm reads an Input from submitted form values. Fields may be
// named plainly ("title") or nested ("listing[title]"). A price that is not
// a whole number is reported as a validation error.
func InputFromForm(form url.Values) (Input, error) {
	get := func(name string) string {
		if v := form.Get("listing[" + name + "]"); v != "" {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(form.Get(name))
	}

	in := Input{
		Title:       get("title"),
		Description: get("description"),
		Location:    get("location"),
		Country:     get("country"),
	}

	if raw := get("price"); raw != "" {
		price, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return in, &validate.Error{Fields: []validate.FieldError{
				{Field: "price", Message: `"price" must be a number`},
			}}
		}
		in.Price = &price
	}

	return in, nil
}

// scanListing scans a listing row selected with selectColumns.
func scanListing(row interface{ Scan(...interface{}) error }) (*Listing, error) {
	var l Listing
	var lng, lat sql.NullFloat64

	err := row.Scan(
		&l.ID, &l.Title, &l.Description, &l.Image.URL, &l.Image.Key,
		&l.Price, &l.Location, &l.Country, &l.Owner, &l.OwnerName,
		&lng, &lat, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lng.Valid && lat.Valid {
		l.Geometry = NewPoint(lng.Float64, lat.Float64)
	}

	return &l, nil
}
