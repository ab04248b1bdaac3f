// Package scraper defines the contract with the listing-page extractor. The
// extraction itself (HTTP fetching, HTML parsing, anti-bot headers) lives in
// a separate component; the radar only consumes validated RawDeal records.
package scraper

import (
	"context"
	"fmt"
	"time"
)

// RawDeal is one listing as extracted from the "newest" page. Optional
// attributes are empty strings when the page does not show them.
type RawDeal struct {
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	Merchant        string    `json:"merchant"`
	ImageURL        string    `json:"image_url"`
	Price           string    `json:"price"`
	Discount        string    `json:"discount"`
	Coupon          string    `json:"coupon"`
	Description     string    `json:"description"`
	Temperature     float64   `json:"temperature"`
	PublishedAt     time.Time `json:"published_at"`
	Expired         bool      `json:"expired"`
	PostedOrUpdated string    `json:"posted_or_updated"` // "Publicado" or "Actualizado"
}

// Scraper yields the current listings from the site's "newest" page
type Scraper interface {
	FetchNewest(ctx context.Context) ([]RawDeal, error)
}

// MalformedDealError marks a scraped record the radar cannot use. The record
// is skipped and logged with its payload; the cycle continues.
type MalformedDealError struct {
	Reason string
	Deal   RawDeal
}

// Error implements the error interface
func (e *MalformedDealError) Error() string {
	return fmt.Sprintf("malformed deal (%s): %+v", e.Reason, e.Deal)
}

// Validate checks the fields the pipeline cannot work without
func Validate(d *RawDeal) error {
	if d.URL == "" {
		return &MalformedDealError{Reason: "missing url", Deal: *d}
	}
	if d.Temperature < 0 {
		return &MalformedDealError{Reason: "negative temperature", Deal: *d}
	}
	if d.PublishedAt.IsZero() {
		return &MalformedDealError{Reason: "missing published_at", Deal: *d}
	}
	return nil
}
