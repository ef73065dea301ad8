package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/evcraddock/wanderlust/internal/auth"
	"github.com/evcraddock/wanderlust/internal/geocode"
	"github.com/evcraddock/wanderlust/internal/listing"
	"github.com/evcraddock/wanderlust/internal/review"
	"github.com/evcraddock/wanderlust/internal/storage"
	"github.com/evcraddock/wanderlust/internal/validate"
)

// maxUploadSize bounds a whole multipart listing form.
const maxUploadSize = storage.MaxImageSize + 1<<20

type indexData struct {
	page
	Listings []*listing.Listing
}

type formData struct {
	page
	Listing *listing.Listing
}

type reviewView struct {
	*review.Review
	CanDelete bool
}

type showData struct {
	page
	Listing *listing.Listing
	Reviews []reviewView
	IsOwner bool
}

// handleIndex renders every listing.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) error {
	listings, err := s.listings.List(r.Context())
	if err != nil {
		return err
	}
	return s.render(w, r, http.StatusOK, "index.html", &indexData{page: page{Title: "All Listings"}, Listings: listings})
}

// handleNew renders the new listing form.
func (s *Server) handleNew(w http.ResponseWriter, r *http.Request) error {
	return s.render(w, r, http.StatusOK, "new.html", &formData{page: page{Title: "New Listing"}})
}

// handleCreate validates the form, uploads the optional image, geocodes the
// location and stores the listing.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) error {
	user := auth.UserFromContext(r.Context())

	if err := parseListingForm(w, r); err != nil {
		return err
	}

	in, err := listing.InputFromForm(r.Form)
	if err != nil {
		return err
	}
	if err := listing.Check(in); err != nil {
		if errors.Is(err, listing.ErrLocationRequired) {
			s.redirect(w, r, auth.FlashError, "Location is required", "/listings/new")
			return nil
		}
		return err
	}

	img, err := s.uploadImage(r)
	if err != nil {
		s.redirect(w, r, auth.FlashError, uploadMessage(err), "/listings/new")
		return nil
	}

	created, err := s.listingSvc.Create(r.Context(), user.ID, in, img)
	if err != nil {
		s.discardImage(r.Context(), img)

		var valErr *validate.Error
		switch {
		case errors.As(err, &valErr):
			return err
		case errors.Is(err, geocode.ErrUnavailable):
			slog.Warn("geocoding failed", "error", err, "location", in.Location)
			s.redirect(w, r, auth.FlashError, "Location lookup is unavailable, please try again later", "/listings/new")
		case errors.Is(err, listing.ErrLocationNotFound):
			s.redirect(w, r, auth.FlashError, "Location not found, please enter a valid location", "/listings/new")
		default:
			slog.Error("creating listing", "error", err, "user_id", user.ID)
			s.redirect(w, r, auth.FlashError, "Error creating listing.", "/listings/new")
		}
		return nil
	}

	slog.Info("listing created", "listing_id", created.ID, "user_id", user.ID)
	s.redirect(w, r, auth.FlashSuccess, "New Listing Created!", fmt.Sprintf("/listings/%d", created.ID))
	return nil
}

// handleShow renders a listing with its reviews.
func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) error {
	l, ok, err := s.loadListing(w, r)
	if !ok {
		return err
	}

	reviews, err := s.reviews.ListByListingID(r.Context(), l.ID)
	if err != nil {
		return err
	}

	user := auth.UserFromContext(r.Context())
	views := make([]reviewView, len(reviews))
	for i, rv := range reviews {
		views[i] = reviewView{Review: rv, CanDelete: auth.IsOwner(rv, user)}
	}

	return s.render(w, r, http.StatusOK, "show.html", &showData{
		page:    page{Title: l.Title},
		Listing: l,
		Reviews: views,
		IsOwner: auth.IsOwner(l, user),
	})
}

// handleEdit renders the edit form for the listing's owner.
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) error {
	l, ok, err := s.loadOwnedListing(w, r)
	if !ok {
		return err
	}
	return s.render(w, r, http.StatusOK, "edit.html", &formData{page: page{Title: "Edit " + l.Title}, Listing: l})
}

// handleUpdate applies the editable fields and an optional new image.
// Geometry is left as it was.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) error {
	l, ok, err := s.loadOwnedListing(w, r)
	if !ok {
		return err
	}
	editURL := fmt.Sprintf("/listings/%d/edit", l.ID)

	if err := parseListingForm(w, r); err != nil {
		return err
	}

	in, err := listing.InputFromForm(r.Form)
	if err != nil {
		return err
	}
	if err := listing.Check(in); err != nil {
		if errors.Is(err, listing.ErrLocationRequired) {
			s.redirect(w, r, auth.FlashError, "Location is required", editURL)
			return nil
		}
		return err
	}

	img, err := s.uploadImage(r)
	if err != nil {
		s.redirect(w, r, auth.FlashError, uploadMessage(err), editURL)
		return nil
	}

	if err := s.listingSvc.Update(r.Context(), l.ID, in, img); err != nil {
		s.discardImage(r.Context(), img)
		if errors.Is(err, listing.ErrNotFound) {
			s.redirect(w, r, auth.FlashError, "Listing not found!", "/listings")
			return nil
		}
		var valErr *validate.Error
		if errors.As(err, &valErr) {
			return err
		}
		slog.Error("updating listing", "error", err, "listing_id", l.ID)
		s.redirect(w, r, auth.FlashError, "Error updating listing.", editURL)
		return nil
	}

	if img != nil {
		s.discardImage(r.Context(), &l.Image)
	}

	s.redirect(w, r, auth.FlashSuccess, "Listing Updated!", fmt.Sprintf("/listings/%d", l.ID))
	return nil
}

// handleDelete removes the listing with its reviews.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) error {
	l, ok, err := s.loadOwnedListing(w, r)
	if !ok {
		return err
	}

	if err := s.listings.Delete(r.Context(), l.ID); err != nil {
		if errors.Is(err, listing.ErrNotFound) {
			s.redirect(w, r, auth.FlashError, "Listing not found!", "/listings")
			return nil
		}
		return err
	}
	s.discardImage(r.Context(), &l.Image)

	slog.Info("listing deleted", "listing_id", l.ID)
	s.redirect(w, r, auth.FlashSuccess, "Listing Deleted!", "/listings")
	return nil
}

type geocodeResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleGeocode resolves a listing's location on demand. It always answers
// with JSON.
func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Listing not found"})
		return
	}

	l, err := s.listings.GetByID(r.Context(), id)
	if errors.Is(err, listing.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Listing not found"})
		return
	}
	if err != nil {
		slog.Error("loading listing for geocode", "error", err, "listing_id", id)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Something went wrong!"})
		return
	}

	pt, err := s.geocoder.Lookup(r.Context(), l.Location)
	switch {
	case errors.Is(err, geocode.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Location not found"})
	case err != nil:
		slog.Warn("geocoding failed", "error", err, "listing_id", id)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "Geocoding service unavailable"})
	default:
		writeJSON(w, http.StatusOK, geocodeResponse{Latitude: pt.Lat, Longitude: pt.Lng})
	}
}

// loadListing loads the {id} listing. When it does not exist the caller is
// redirected to the index and ok is false.
func (s *Server) loadListing(w http.ResponseWriter, r *http.Request) (l *listing.Listing, ok bool, err error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err == nil {
		l, err = s.listings.GetByID(r.Context(), id)
	}
	if err == nil {
		return l, true, nil
	}
	if errors.Is(err, listing.ErrNotFound) || errors.Is(err, strconv.ErrSyntax) || errors.Is(err, strconv.ErrRange) {
		s.redirect(w, r, auth.FlashError, "Listing not found!", "/listings")
		return nil, false, nil
	}
	return nil, false, err
}

// loadOwnedListing is loadListing plus the ownership gate: anyone but the
// owner is sent back to the listing with a notice.
func (s *Server) loadOwnedListing(w http.ResponseWriter, r *http.Request) (*listing.Listing, bool, error) {
	l, ok, err := s.loadListing(w, r)
	if !ok {
		return nil, false, err
	}
	if !s.requireOwner(w, r, l, "You don't have permission to edit this listing", fmt.Sprintf("/listings/%d", l.ID)) {
		return nil, false, nil
	}
	return l, true, nil
}

// requireOwner reports whether the current user owns res. Otherwise it
// redirects to back with message and performs nothing else.
func (s *Server) requireOwner(w http.ResponseWriter, r *http.Request, res auth.Ownable, message, back string) bool {
	user := auth.UserFromContext(r.Context())
	if auth.IsOwner(res, user) {
		return true
	}
	var userID int64
	if user != nil {
		userID = user.ID
	}
	slog.Warn("ownership check failed", "user_id", userID, "path", r.URL.Path)
	s.redirect(w, r, auth.FlashError, message, back)
	return false
}

// parseListingForm parses a multipart or urlencoded listing form.
func parseListingForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	err := r.ParseMultipartForm(1 << 20)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return &Error{Status: http.StatusRequestEntityTooLarge, Message: "Upload too large", Err: err}
		}
		return &Error{Status: http.StatusBadRequest, Message: "Bad request", Err: err}
	}
	return nil
}

// uploadImage stores the submitted image, if any. Without an image store
// uploads are ignored.
func (s *Server) uploadImage(r *http.Request) (*listing.Image, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	file, header, err := formFile(r, "listing[image]", "image")
	if err != nil || file == nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			slog.Warn("closing upload", "error", cerr)
		}
	}()

	if s.images == nil {
		slog.Warn("image store not configured, ignoring upload", "filename", header.Filename)
		return nil, nil
	}

	obj, err := s.images.Put(r.Context(), file)
	if err != nil {
		return nil, err
	}
	return &listing.Image{URL: obj.URL, Key: obj.Key}, nil
}

func formFile(r *http.Request, names ...string) (multipart.File, *multipart.FileHeader, error) {
	for _, name := range names {
		file, header, err := r.FormFile(name)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading upload: %w", err)
		}
		return file, header, nil
	}
	return nil, nil, nil
}

func uploadMessage(err error) string {
	if errors.Is(err, storage.ErrUnsupportedType) || errors.Is(err, storage.ErrTooLarge) {
		return "Image must be a PNG, JPEG, GIF or WebP file under 10 MB"
	}
	slog.Error("uploading image", "error", err)
	return "Error uploading image."
}

// discardImage removes a stored image, logging failures.
func (s *Server) discardImage(ctx context.Context, img *listing.Image) {
	if s.images == nil || img == nil || img.Key == "" {
		return
	}
	if err := s.images.Delete(ctx, img.Key); err != nil {
		slog.Warn("removing image", "error", err, "key", img.Key)
	}
}
