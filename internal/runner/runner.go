// Package runner drives the poll loop: fetch listings, extract new ads, filter,
// notify and remember what was sent.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bakkerme/adhunter/internal/core"
	"github.com/bakkerme/adhunter/internal/dedupe"
	"github.com/bakkerme/adhunter/internal/identity"
	"github.com/bakkerme/adhunter/internal/observability/metrics"
	"github.com/bakkerme/adhunter/internal/observability/otelx"
	"github.com/bakkerme/adhunter/internal/outputs"
	"github.com/bakkerme/adhunter/internal/runner/snapshot"
)

const defaultRecoveryInterval = time.Minute

var errDeliveryFailed = errors.New("notification not delivered")

// Site is one watched listing with the fetchers that read it.
type Site struct {
	Name       string
	Listing    core.ListingFetcher
	Detail     core.DetailFetcher
	Normalizer *identity.Normalizer
}

type Options struct {
	Sites    []Site
	Filter   core.Filter
	Renderer *outputs.Renderer
	Notifier core.Notifier
	Store    dedupe.Store
	Metrics  *metrics.Metrics
	// Schedule decides when the next cycle starts after a successful one.
	Schedule cron.Schedule
	// RecoveryInterval is the pause after a failed cycle.
	RecoveryInterval time.Duration
	// SnapshotPath, when set, receives a JSON report after every cycle.
	SnapshotPath string
	Logger       *slog.Logger
	Now          func() time.Time
	After        func(time.Duration) <-chan time.Time
}

type Runner struct {
	sites            []Site
	filter           core.Filter
	renderer         *outputs.Renderer
	notifier         core.Notifier
	store            dedupe.Store
	metrics          *metrics.Metrics
	schedule         cron.Schedule
	recoveryInterval time.Duration
	snapshotPath     string
	logger           *slog.Logger
	now              func() time.Time
	after            func(time.Duration) <-chan time.Time

	seen *dedupe.SeenSet
}

func New(opts Options) (*Runner, error) {
	if len(opts.Sites) == 0 {
		return nil, fmt.Errorf("at least one site is required")
	}
	for i, site := range opts.Sites {
		if site.Listing == nil || site.Detail == nil || site.Normalizer == nil {
			return nil, fmt.Errorf("site %d (%s): listing, detail and normalizer are required", i, site.Name)
		}
	}
	if opts.Filter == nil {
		return nil, fmt.Errorf("filter is required")
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("seen store is required")
	}
	if opts.Renderer == nil {
		renderer, err := outputs.NewRenderer("")
		if err != nil {
			return nil, err
		}
		opts.Renderer = renderer
	}
	if opts.Schedule == nil {
		opts.Schedule = cron.Every(10 * time.Minute)
	}
	if opts.RecoveryInterval <= 0 {
		opts.RecoveryInterval = defaultRecoveryInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.After == nil {
		opts.After = time.After
	}
	return &Runner{
		sites:            opts.Sites,
		filter:           opts.Filter,
		renderer:         opts.Renderer,
		notifier:         opts.Notifier,
		store:            opts.Store,
		metrics:          opts.Metrics,
		schedule:         opts.Schedule,
		recoveryInterval: opts.RecoveryInterval,
		snapshotPath:     opts.SnapshotPath,
		logger:           opts.Logger,
		now:              opts.Now,
		after:            opts.After,
	}, nil
}

// Run executes cycles until ctx is cancelled. A failed cycle is followed by
// the shorter recovery pause instead of the regular schedule.
func (r *Runner) Run(ctx context.Context) error {
	for {
		_, err := r.RunOnce(ctx)
		if ctx.Err() != nil {
			r.logger.Info("poll loop stopped")
			return nil
		}

		now := r.now()
		wait := r.recoveryInterval
		if err != nil {
			r.logger.Error("cycle failed, backing off", "error", err, "retry_in", wait)
		} else {
			wait = r.schedule.Next(now).Sub(now)
			if wait < 0 {
				wait = 0
			}
			r.logger.Info("sleeping until next cycle", "next_in", wait)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("poll loop stopped")
			return nil
		case <-r.after(wait):
		}
	}
}

// RunOnce performs a single cycle over every site. Per-ad failures are
// recorded on the cycle and never abort it; an error is returned only when
// the cycle as a whole failed.
func (r *Runner) RunOnce(ctx context.Context) (cycle *core.Cycle, err error) {
	started := r.now()
	cycle = &core.Cycle{
		ID:        fmt.Sprintf("cycle-%d", started.UnixNano()),
		StartedAt: started.UTC(),
		Status:    core.CycleStatusRunning,
	}
	logger := r.logger.With("cycle_id", cycle.ID)
	ctx = core.WithLogger(core.WithCycleID(ctx, cycle.ID), logger)
	ctx, span := otelx.StartSpan(ctx, "adhunter.cycle", trace.WithAttributes(attribute.String("cycle.id", cycle.ID)))

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("cycle panicked", "panic", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("cycle panic: %v", rec)
		}
		r.finish(ctx, cycle, started, err)
		otelx.EndSpan(span, err)
	}()

	r.ensureSeen(ctx)
	handled := make(map[core.IdentityKey]struct{})
	for _, site := range r.sites {
		if err := ctx.Err(); err != nil {
			return cycle, err
		}
		r.processSite(ctx, cycle, site, handled)
	}
	return cycle, ctx.Err()
}

func (r *Runner) ensureSeen(ctx context.Context) {
	if r.seen != nil {
		return
	}
	logger := core.LoggerFromContext(ctx)
	seen, err := r.store.Load(ctx)
	if err != nil {
		logger.Warn("seen store unreadable, starting with an empty set", "error", err)
	}
	if seen == nil {
		seen = dedupe.NewSeenSet()
	}
	r.seen = seen
	r.metrics.SeenSetSize(seen.Len())
	logger.Info("seen set loaded", "size", seen.Len())
}

func (r *Runner) processSite(ctx context.Context, cycle *core.Cycle, site Site, handled map[core.IdentityKey]struct{}) {
	logger := core.LoggerFromContext(ctx).With("site", site.Name)
	ctx = core.WithLogger(ctx, logger)

	refs, err := site.Listing.Fetch(ctx)
	r.metrics.ListingFetched(site.Name, err)
	if err != nil {
		logger.Warn("listing fetch failed, treating as no new ads", "error", err)
		cycle.AddError(site.Name, "", core.StageListing, err)
		return
	}
	logger.Info("listing scanned", "ads", len(refs))

	for _, ref := range refs {
		if ctx.Err() != nil {
			return
		}
		r.processAd(ctx, cycle, site, ref, handled)
	}
}

// processAd runs one reference through extract, filter, notify and commit.
// A panic here is contained to this reference, which stays uncommitted.
func (r *Runner) processAd(ctx context.Context, cycle *core.Cycle, site Site, ref core.AdReference, handled map[core.IdentityKey]struct{}) {
	key := site.Normalizer.Normalize(ref)
	if key == "" {
		return
	}
	cycle.Discovered++
	r.metrics.Ad(site.Name, metrics.OutcomeDiscovered)

	if r.seen.Contains(key) {
		cycle.Skipped++
		r.metrics.Ad(site.Name, metrics.OutcomeSeen)
		return
	}
	if _, ok := handled[key]; ok {
		cycle.Skipped++
		return
	}
	handled[key] = struct{}{}

	logger := core.LoggerFromContext(ctx).With("identity", string(key))
	ctx = core.WithLogger(ctx, logger)
	ctx, span := otelx.StartSpan(ctx, "adhunter.ad", trace.WithAttributes(
		attribute.String("site", site.Name),
		attribute.String("ad.identity", string(key)),
	))

	stage := core.StageDetail
	var adErr error
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("ad processing panicked", "stage", stage, "panic", rec, "stack", string(debug.Stack()))
			adErr = fmt.Errorf("panic: %v", rec)
		}
		if adErr != nil {
			cycle.AddError(site.Name, key, stage, adErr)
			r.metrics.Ad(site.Name, metrics.OutcomeFailed)
		}
		otelx.EndSpan(span, adErr)
	}()

	record, err := site.Detail.Fetch(ctx, ref)
	if err != nil {
		logger.Warn("ad fetch failed, will retry next cycle", "error", err)
		adErr = err
		return
	}
	if record == nil {
		adErr = fmt.Errorf("detail fetch returned no record")
		return
	}
	record.Identity = key
	cycle.Extracted++
	r.metrics.Ad(site.Name, metrics.OutcomeExtracted)

	stage = core.StageFilter
	if !r.filter.IsRelevant(record) {
		logger.Debug("ad not relevant", "title", record.Title)
		r.metrics.Ad(site.Name, metrics.OutcomeIrrelevant)
		return
	}
	cycle.Relevant++

	stage = core.StageRender
	message, err := r.renderer.Render(record)
	if err != nil {
		adErr = err
		return
	}

	stage = core.StageNotify
	delivered := r.notifier.Deliver(ctx, message, record.PhotoURL)
	r.metrics.Delivery(delivered)
	if !delivered {
		logger.Warn("notification failed, ad stays eligible", "title", record.Title)
		adErr = errDeliveryFailed
		return
	}
	cycle.Notified++
	r.metrics.Ad(site.Name, metrics.OutcomeNotified)
	logger.Info("ad notified", "title", record.Title, "price", record.Price, "url", record.URL)

	stage = core.StageCommit
	if err := r.store.Commit(ctx, r.seen, key); err != nil {
		// The ad was delivered; keep it in memory so this process does not
		// send it again. Only a restart can repeat it.
		r.seen.Add(key)
		logger.Error("seen store commit failed", "error", err)
		cycle.AddError(site.Name, key, core.StageCommit, err)
	} else {
		cycle.Committed++
	}
	r.metrics.SeenSetSize(r.seen.Len())
}

func (r *Runner) finish(ctx context.Context, cycle *core.Cycle, started time.Time, err error) {
	completed := r.now()
	completedUTC := completed.UTC()
	cycle.CompletedAt = &completedUTC
	cycle.Status = core.CycleStatusCompleted
	if err != nil {
		cycle.Status = core.CycleStatusFailed
	}
	r.metrics.ObserveCycle(string(cycle.Status), completed.Sub(started), completed)

	logger := core.LoggerFromContext(ctx)
	logger.Info("cycle finished",
		"status", cycle.Status,
		"discovered", cycle.Discovered,
		"skipped", cycle.Skipped,
		"extracted", cycle.Extracted,
		"relevant", cycle.Relevant,
		"notified", cycle.Notified,
		"committed", cycle.Committed,
		"errors", len(cycle.Errors),
		"duration", completed.Sub(started),
	)

	if r.snapshotPath != "" {
		if err := snapshot.Save(r.snapshotPath, cycle, r.seen.Len()); err != nil {
			logger.Warn("write cycle snapshot failed", "error", err)
		}
	}
}
