package core

import "context"

// ListingFetcher retrieves the ad references currently shown on a listing page.
// A non-nil error is a soft failure: the returned slice is empty and the caller
// should treat the site as having no new ads this cycle.
type ListingFetcher interface {
	Fetch(ctx context.Context) ([]AdReference, error)
}

// DetailFetcher retrieves and extracts a single ad. It returns an error only
// when the page itself could not be fetched; missing fields never cause one.
type DetailFetcher interface {
	Fetch(ctx context.Context, ref AdReference) (*AdRecord, error)
}

// Filter decides whether an extracted ad is worth a notification.
type Filter interface {
	IsRelevant(record *AdRecord) bool
}

// Notifier delivers a formatted message, optionally with a photo, to a single
// downstream channel. It reports whether any delivery attempt succeeded and
// never returns an error.
type Notifier interface {
	Deliver(ctx context.Context, message string, photoURL string) bool
}
