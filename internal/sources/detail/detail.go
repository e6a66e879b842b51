// Package detail extracts an ad record from a single offer page.
package detail

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/bakkerme/adhunter/internal/core"
	"github.com/bakkerme/adhunter/internal/identity"
	"github.com/bakkerme/adhunter/internal/sources/page"
)

type Options struct {
	Site       string
	Layers     []Layer
	Normalizer *identity.Normalizer
	Client     *page.Client
	Logger     *slog.Logger
	Now        func() time.Time
}

type Fetcher struct {
	site       string
	layers     []Layer
	normalizer *identity.Normalizer
	client     *page.Client
	logger     *slog.Logger
	now        func() time.Time
}

func NewFetcher(opts Options) (*Fetcher, error) {
	if opts.Normalizer == nil {
		return nil, fmt.Errorf("detail normalizer is required")
	}
	if len(opts.Layers) == 0 {
		opts.Layers = DefaultLayers(DefaultSelectors)
	}
	if opts.Client == nil {
		opts.Client = page.NewClient(page.Options{})
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Fetcher{
		site:       opts.Site,
		layers:     opts.Layers,
		normalizer: opts.Normalizer,
		client:     opts.Client,
		logger:     opts.Logger.With("site", opts.Site),
		now:        opts.Now,
	}, nil
}

// Fetch downloads the offer page and fills each field through the layer
// chain. It returns nil only when the page could not be fetched; extraction
// misses become placeholders.
func (f *Fetcher) Fetch(ctx context.Context, ref core.AdReference) (*core.AdRecord, error) {
	target, err := f.normalizer.URL(ref)
	if err != nil {
		return nil, fmt.Errorf("resolve ad url: %w", err)
	}
	p, err := f.client.Get(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("fetch ad %s: %w", target, err)
	}

	record := &core.AdRecord{
		Identity:  f.normalizer.Normalize(ref),
		Site:      f.site,
		URL:       target,
		FetchedAt: f.now(),
	}

	var fields Fields
	doc, err := p.Document()
	if err != nil {
		f.logger.Warn("ad page not parseable", "url", target, "error", err)
	} else {
		for _, layer := range f.layers {
			got := layer.Extract(doc)
			f.logger.Debug("detail layer", "layer", layer.Name(), "url", target,
				"title", got.Title != "", "price", got.Price != "", "photo", got.Photo != "", "description", got.Description != "")
			fields.merge(got)
			if fields.complete() {
				break
			}
		}
	}

	record.Title = fields.Title
	if record.Title == "" {
		record.Title = core.MissingTitle
	}
	record.Price = fields.Price
	record.Description = fields.Description
	record.PhotoURL = resolve(p.URL, fields.Photo)
	return record, nil
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
