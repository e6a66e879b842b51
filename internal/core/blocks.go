package core

import "time"

// MissingTitle is used when no extraction layer produced a title for an ad.
const MissingTitle = "(untitled listing)"

// AdReference is a raw link or opaque id found on a listing page. It may be
// relative to the site it was discovered on.
type AdReference string

// IdentityKey is the canonical deduplication key for an ad.
type IdentityKey string

// AdRecord contains the data extracted from a single ad detail page.
// Price, PhotoURL and Description are best-effort; an empty string means the
// field could not be extracted.
type AdRecord struct {
	Identity    IdentityKey `json:"identity" yaml:"identity"`
	Site        string      `json:"site" yaml:"site"`
	URL         string      `json:"url" yaml:"url"`
	Title       string      `json:"title" yaml:"title"`
	Price       string      `json:"price,omitempty" yaml:"price,omitempty"`
	PhotoURL    string      `json:"photo_url,omitempty" yaml:"photo_url,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	FetchedAt   time.Time   `json:"fetched_at" yaml:"fetched_at"`
}

// HasPhoto reports whether a photo URL was extracted.
func (r *AdRecord) HasPhoto() bool {
	return r != nil && r.PhotoURL != ""
}

// ExtractedTitle returns the title, or "" when it is the MissingTitle
// placeholder.
func (r *AdRecord) ExtractedTitle() string {
	if r == nil || r.Title == MissingTitle {
		return ""
	}
	return r.Title
}

// ProcessError tracks a failure that happened while handling one site or ad.
type ProcessError struct {
	Site       string      `json:"site" yaml:"site"`
	Identity   IdentityKey `json:"identity,omitempty" yaml:"identity,omitempty"`
	Stage      Stage       `json:"stage" yaml:"stage"`
	Error      string      `json:"error" yaml:"error"`
	OccurredAt time.Time   `json:"occurred_at" yaml:"occurred_at"`
}

// Stage names the pipeline step a ProcessError occurred in.
type Stage string

const (
	StageListing Stage = "listing"
	StageDetail  Stage = "detail"
	StageFilter  Stage = "filter"
	StageRender  Stage = "render"
	StageNotify  Stage = "notify"
	StageCommit  Stage = "commit"
)
