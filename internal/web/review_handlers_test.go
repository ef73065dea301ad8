package web

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func reviewForm(comment, rating string) url.Values {
	return url.Values{"review[comment]": {comment}, "review[rating]": {rating}}
}

func TestCreateReview(t *testing.T) {
	env := testServer(t)
	owner := insertUser(t, env.db, "alice")
	l := insertListing(t, env.db, owner, "Cabin")
	b, author := env.loginAs(t, "bob")

	w := b.postForm(fmt.Sprintf("/listings/%d/reviews", l.ID), reviewForm("Lovely stay", "4"))

	expectRedirect(t, w, fmt.Sprintf("/listings/%d", l.ID))
	if n := count(t, env.db, "SELECT COUNT(*) FROM reviews WHERE listing_id = ? AND author_id = ? AND rating = 4", l.ID, author); n != 1 {
		t.Errorf("reviews = %d, want 1", n)
	}
	if n := count(t, env.db, "SELECT COUNT(*) FROM listing_reviews WHERE listing_id = ?", l.ID); n != 1 {
		t.Errorf("review references = %d, want 1", n)
	}

	page := b.follow(t, w)
	body := page.Body.String()
	if !strings.Contains(body, "New Review Created!") {
		t.Error("expected success flash")
	}
	if !strings.Contains(body, "Lovely stay") || !strings.Contains(body, "@bob") {
		t.Error("expected review with author on the listing page")
	}
	if !strings.Contains(body, "★★★★☆") {
		t.Error("expected star rating")
	}
}

func TestCreateReviewRequiresLogin(t *testing.T) {
	env := testServer(t)
	owner := insertUser(t, env.db, "alice")
	l := insertListing(t, env.db, owner, "Cabin")
	b := env.anon()

	w := b.postForm(fmt.Sprintf("/listings/%d/reviews", l.ID), reviewForm("Lovely stay", "4"))

	expectRedirect(t, w, "/login")
	if n := count(t, env.db, "SELECT COUNT(*) FROM reviews"); n != 0 {
		t.Errorf("reviews = %d, want 0", n)
	}

	// A rejected POST returns to the listing after login, not to the form action.
	insertUser(t, env.db, "bob")
	w = b.postForm("/login", url.Values{"username": {"bob"}, "password": {testPassword}})
	expectRedirect(t, w, fmt.Sprintf("/listings/%d", l.ID))
}

func TestCreateReviewValidation(t *testing.T) {
	tests := []struct {
		name    string
		comment string
		rating  string
	}{
		{"missing comment", "", "4"},
		{"missing rating", "Lovely", ""},
		{"rating too high", "Lovely", "7"},
		{"rating too low", "Lovely", "0"},
		{"rating not a number", "Lovely", "five"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t)
			owner := insertUser(t, env.db, "alice")
			l := insertListing(t, env.db, owner, "Cabin")
			b, _ := env.loginAs(t, "bob")

			w := b.postForm(fmt.Sprintf("/listings/%d/reviews", l.ID), reviewForm(tt.comment, tt.rating))

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if n := count(t, env.db, "SELECT COUNT(*) FROM reviews"); n != 0 {
				t.Errorf("reviews = %d, want 0", n)
			}
		})
	}
}

func TestCreateReviewUnknownListing(t *testing.T) {
	env := testServer(t)
	b, _ := env.loginAs(t, "bob")

	w := b.postForm("/listings/9999/reviews", reviewForm("Lovely stay", "4"))

	expectRedirect(t, w, "/listings")
	page := b.follow(t, w)
	if !strings.Contains(page.Body.String(), "Listing not found!") {
		t.Error("expected not found flash")
	}
}

func TestDeleteReview(t *testing.T) {
	env := testServer(t)
	owner := insertUser(t, env.db, "alice")
	l := insertListing(t, env.db, owner, "Cabin")
	b, author := env.loginAs(t, "bob")
	rv := insertReview(t, env.db, l.ID, author)
	other := insertReview(t, env.db, l.ID, owner)

	w := b.postForm(fmt.Sprintf("/listings/%d/reviews/%d?_method=DELETE", l.ID, rv.ID), nil)

	expectRedirect(t, w, fmt.Sprintf("/listings/%d", l.ID))
	if n := count(t, env.db, "SELECT COUNT(*) FROM reviews WHERE id = ?", rv.ID); n != 0 {
		t.Errorf("review rows = %d, want 0", n)
	}
	if n := count(t, env.db, "SELECT COUNT(*) FROM listing_reviews WHERE review_id = ?", rv.ID); n != 0 {
		t.Errorf("review references = %d, want 0", n)
	}
	if n := count(t, env.db, "SELECT COUNT(*) FROM listing_reviews WHERE review_id = ?", other.ID); n != 1 {
		t.Errorf("other review references = %d, want 1", n)
	}

	page := b.follow(t, w)
	if !strings.Contains(page.Body.String(), "Review Deleted!") {
		t.Error("expected success flash")
	}
}

func TestDeleteReviewNotAuthor(t *testing.T) {
	env := testServer(t)
	owner := insertUser(t, env.db, "alice")
	l := insertListing(t, env.db, owner, "Cabin")
	rv := insertReview(t, env.db, l.ID, owner)

	// The listing owner is not the review author either.
	b, _ := env.loginAs(t, "bob")

	w := b.postForm(fmt.Sprintf("/listings/%d/reviews/%d?_method=DELETE", l.ID, rv.ID), nil)

	expectRedirect(t, w, fmt.Sprintf("/listings/%d", l.ID))
	if n := count(t, env.db, "SELECT COUNT(*) FROM reviews WHERE id = ?", rv.ID); n != 1 {
		t.Errorf("review rows = %d, want 1", n)
	}
	page := b.follow(t, w)
	if !strings.Contains(page.Body.String(), "You are not the author of this review") {
		t.Error("expected author flash")
	}
}

func TestDeleteReviewWrongListing(t *testing.T) {
	env := testServer(t)
	b, author := env.loginAs(t, "bob")
	first := insertListing(t, env.db, author, "Cabin")
	second := insertListing(t, env.db, author, "Loft")
	rv := insertReview(t, env.db, first.ID, author)

	w := b.postForm(fmt.Sprintf("/listings/%d/reviews/%d?_method=DELETE", second.ID, rv.ID), nil)

	expectRedirect(t, w, fmt.Sprintf("/listings/%d", second.ID))
	if n := count(t, env.db, "SELECT COUNT(*) FROM reviews WHERE id = ?", rv.ID); n != 1 {
		t.Errorf("review rows = %d, want 1", n)
	}
	page := b.follow(t, w)
	if !strings.Contains(page.Body.String(), "Review not found!") {
		t.Error("expected not found flash")
	}
}

func TestShowReviewDeleteButtonOnlyForAuthor(t *testing.T) {
	env := testServer(t)
	owner := insertUser(t, env.db, "alice")
	l := insertListing(t, env.db, owner, "Cabin")
	b, author := env.loginAs(t, "bob")
	rv := insertReview(t, env.db, l.ID, author)
	other := insertReview(t, env.db, l.ID, owner)

	body := b.get(fmt.Sprintf("/listings/%d", l.ID)).Body.String()

	if !strings.Contains(body, fmt.Sprintf("/reviews/%d?_method=DELETE", rv.ID)) {
		t.Error("author should see delete for their review")
	}
	if strings.Contains(body, fmt.Sprintf("/reviews/%d?_method=DELETE", other.ID)) {
		t.Error("author should not see delete for another review")
	}
}
