// Package listing discovers ad references on a classifieds search page.
package listing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bakkerme/adhunter/internal/core"
	"github.com/bakkerme/adhunter/internal/identity"
	"github.com/bakkerme/adhunter/internal/sources/page"
)

type Options struct {
	Site       string
	ListingURL string
	Strategies []Strategy
	Normalizer *identity.Normalizer
	Client     *page.Client
	Logger     *slog.Logger
}

// Fetcher fetches one listing page and runs the strategy chain over it.
type Fetcher struct {
	site       string
	listingURL string
	strategies []Strategy
	normalizer *identity.Normalizer
	client     *page.Client
	logger     *slog.Logger
}

func NewFetcher(opts Options) (*Fetcher, error) {
	if strings.TrimSpace(opts.ListingURL) == "" {
		return nil, fmt.Errorf("listing url is required")
	}
	if opts.Normalizer == nil {
		return nil, fmt.Errorf("listing normalizer is required")
	}
	if len(opts.Strategies) == 0 {
		return nil, fmt.Errorf("at least one listing strategy is required")
	}
	if opts.Client == nil {
		opts.Client = page.NewClient(page.Options{})
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Fetcher{
		site:       opts.Site,
		listingURL: opts.ListingURL,
		strategies: opts.Strategies,
		normalizer: opts.Normalizer,
		client:     opts.Client,
		logger:     opts.Logger.With("site", opts.Site),
	}, nil
}

// Fetch returns the ads currently on the listing page, deduplicated by
// identity in first-seen order. Fetch failures yield an empty slice and a
// non-nil error; they are never fatal to the caller.
func (f *Fetcher) Fetch(ctx context.Context) ([]core.AdReference, error) {
	p, err := f.client.Get(ctx, f.listingURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", f.site, err)
	}

	for _, strategy := range f.strategies {
		refs := f.dedupe(strategy.Extract(p))
		if len(refs) == 0 {
			f.logger.Debug("listing strategy found nothing", "strategy", strategy.Name())
			continue
		}
		f.logger.Info("listing fetched", "strategy", strategy.Name(), "ads", len(refs))
		return refs, nil
	}
	f.logger.Info("listing fetched", "strategy", "none", "ads", 0)
	return nil, nil
}

func (f *Fetcher) dedupe(refs []core.AdReference) []core.AdReference {
	if len(refs) == 0 {
		return nil
	}
	out := make([]core.AdReference, 0, len(refs))
	seen := make(map[core.IdentityKey]struct{}, len(refs))
	for _, ref := range refs {
		key := f.normalizer.Normalize(ref)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ref)
	}
	return out
}
