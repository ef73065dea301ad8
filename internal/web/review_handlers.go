package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/evcraddock/wanderlust/internal/auth"
	"github.com/evcraddock/wanderlust/internal/review"
	"github.com/evcraddock/wanderlust/internal/validate"
)

// handleCreateReview adds the current user's review to a listing.
func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) error {
	user := auth.UserFromContext(r.Context())

	listingID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.redirect(w, r, auth.FlashError, "Listing not found!", "/listings")
		return nil
	}

	if err := r.ParseForm(); err != nil {
		return &Error{Status: http.StatusBadRequest, Message: "Bad request", Err: err}
	}

	in, err := review.InputFromForm(r.Form)
	if err != nil {
		return err
	}

	rv, err := s.reviews.Add(r.Context(), listingID, user.ID, in)
	if err != nil {
		var valErr *validate.Error
		switch {
		case errors.As(err, &valErr):
			return err
		case errors.Is(err, review.ErrListingNotFound):
			s.redirect(w, r, auth.FlashError, "Listing not found!", "/listings")
		default:
			slog.Error("creating review", "error", err, "listing_id", listingID, "user_id", user.ID)
			s.redirect(w, r, auth.FlashError, "Error creating review.", fmt.Sprintf("/listings/%d", listingID))
		}
		return nil
	}

	slog.Info("review created", "review_id", rv.ID, "listing_id", listingID, "user_id", user.ID)
	s.redirect(w, r, auth.FlashSuccess, "New Review Created!", fmt.Sprintf("/listings/%d", listingID))
	return nil
}

// handleDeleteReview removes a review for its author.
func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) error {
	listingID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.redirect(w, r, auth.FlashError, "Listing not found!", "/listings")
		return nil
	}
	back := fmt.Sprintf("/listings/%d", listingID)

	reviewID, err := strconv.ParseInt(chi.URLParam(r, "reviewId"), 10, 64)
	if err != nil {
		s.redirect(w, r, auth.FlashError, "Review not found!", back)
		return nil
	}

	rv, err := s.reviews.GetByID(r.Context(), reviewID)
	if errors.Is(err, review.ErrNotFound) || (err == nil && rv.ListingID != listingID) {
		s.redirect(w, r, auth.FlashError, "Review not found!", back)
		return nil
	}
	if err != nil {
		return err
	}

	if !s.requireOwner(w, r, rv, "You are not the author of this review", back) {
		return nil
	}

	if err := s.reviews.Delete(r.Context(), listingID, reviewID); err != nil {
		if errors.Is(err, review.ErrNotFound) {
			s.redirect(w, r, auth.FlashError, "Review not found!", back)
			return nil
		}
		return err
	}

	s.redirect(w, r, auth.FlashSuccess, "Review Deleted!", back)
	return nil
}
