package listing

import (
	"errors"
	"net/url"
	"testing"

	"github.com/evcraddock/wanderlust/internal/validate"
)

func TestInputFromForm(t *testing.T) {
	form := url.Values{
		"listing[title]":    {"  Cabin "},
		"listing[price]":    {"1200"},
		"listing[location]": {"Denver, CO"},
		"description":       {"Cosy"},
		"country":           {"United States"},
	}

	in, err := InputFromForm(form)
	if err != nil {
		t.Fatalf("input from form: %v", err)
	}
	if in.Title != "Cabin" {
		t.Errorf("title = %q, want Cabin", in.Title)
	}
	if in.Price == nil || *in.Price != 1200 {
		t.Errorf("price = %v, want 1200", in.Price)
	}
	if in.Description != "Cosy" || in.Country != "United States" || in.Location != "Denver, CO" {
		t.Errorf("got %+v", in)
	}
}

func TestInputFromFormPrice(t *testing.T) {
	in, err := InputFromForm(url.Values{"price": {""}})
	if err != nil {
		t.Fatalf("empty price: %v", err)
	}
	if in.Price != nil {
		t.Errorf("price = %v, want nil", *in.Price)
	}

	_, err = InputFromForm(url.Values{"price": {"cheap"}})
	var verr *validate.Error
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *validate.Error", err)
	}
	if verr.Fields[0].Field != "price" {
		t.Errorf("field = %q, want price", verr.Fields[0].Field)
	}
}

func TestPreviewURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{
			"https://res.cloudinary.com/demo/image/upload/v1/wanderlust/abc.jpg",
			"https://res.cloudinary.com/demo/image/upload/w_250/v1/wanderlust/abc.jpg",
		},
		{"https://bucket.s3.amazonaws.com/wanderlust/abc.jpg", "https://bucket.s3.amazonaws.com/wanderlust/abc.jpg"},
		{"", ""},
	}

	for _, tt := range tests {
		l := &Listing{Image: Image{URL: tt.url}}
		if got := l.PreviewURL(); got != tt.want {
			t.Errorf("PreviewURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestOwnerID(t *testing.T) {
	l := &Listing{Owner: 7}
	if l.OwnerID() != 7 {
		t.Errorf("OwnerID = %d, want 7", l.OwnerID())
	}
}
