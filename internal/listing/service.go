package listing

import (
	"context"
	"fmt"

	"github.com/evcraddock/wanderlust/internal/geocode"
	"github.com/evcraddock/wanderlust/internal/validate"
)

// Service provides the listing create and update workflow.
type Service struct {
	repo     *Repository
	geocoder geocode.Geocoder
}

// NewService creates a listing service.
func NewService(repo *Repository, geocoder geocode.Geocoder) *Service {
	return &Service{repo: repo, geocoder: geocoder}
}

// Check validates a listing payload and requires a location. It returns a
// *validate.Error or ErrLocationRequired.
func Check(in Input) error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	if in.Location == "" {
		return ErrLocationRequired
	}
	return nil
}

// Create validates the input, geocodes its location and stores the listing
// owned by ownerID. This is the only operation that hits the geocoding API.
// Nothing is stored unless every step succeeds.
func (s *Service) Create(ctx context.Context, ownerID int64, in Input, img *Image) (*Listing, error) {
	if err := Check(in); err != nil {
		return nil, err
	}

	pt, err := s.geocoder.Lookup(ctx, in.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLocationNotFound, err)
	}

	l := &Listing{
		Title:       in.Title,
		Description: in.Description,
		Price:       *in.Price,
		Location:    in.Location,
		Country:     in.Country,
		Owner:       ownerID,
		Geometry:    NewPoint(pt.Lng, pt.Lat),
	}
	if img != nil {
		l.Image = *img
	}

	saved, err := s.repo.Insert(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("saving listing: %w", err)
	}

	return saved, nil
}

// Update validates the input and overwrites the editable fields of listing
// id. The stored geometry is kept even when the location text changes.
func (s *Service) Update(ctx context.Context, id int64, in Input, img *Image) error {
	if err := Check(in); err != nil {
		return err
	}

	return s.repo.Update(ctx, id, in, img)
}
