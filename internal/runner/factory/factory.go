// Package factory wires environment settings and the watchlist into a runner.
package factory

import (
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/bakkerme/adhunter/internal/config"
	"github.com/bakkerme/adhunter/internal/core"
	"github.com/bakkerme/adhunter/internal/dedupe"
	"github.com/bakkerme/adhunter/internal/filter"
	"github.com/bakkerme/adhunter/internal/identity"
	"github.com/bakkerme/adhunter/internal/observability/metrics"
	"github.com/bakkerme/adhunter/internal/outputs"
	"github.com/bakkerme/adhunter/internal/outputs/email"
	"github.com/bakkerme/adhunter/internal/outputs/email/smtp"
	"github.com/bakkerme/adhunter/internal/outputs/telegram"
	"github.com/bakkerme/adhunter/internal/runner"
	"github.com/bakkerme/adhunter/internal/sources/detail"
	"github.com/bakkerme/adhunter/internal/sources/listing"
	"github.com/bakkerme/adhunter/internal/sources/page"
)

type Factory struct {
	Logger  *slog.Logger
	Env     config.EnvConfig
	Metrics *metrics.Metrics
	// HTTPClient, when set, replaces the clients used for pages and
	// notifications.
	HTTPClient *http.Client
	// EmailSender overrides the SMTP sender built from SMTP_* settings.
	EmailSender email.Sender
}

func NewFromEnvConfig(logger *slog.Logger, env config.EnvConfig) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		Logger:  logger,
		Env:     env,
		Metrics: metrics.New(),
	}
}

// NewRunner builds the full pipeline for the watchlist. The returned store
// must be closed by the caller once the runner stops.
func (f *Factory) NewRunner(w *config.Watchlist) (*runner.Runner, dedupe.Store, error) {
	if w == nil {
		return nil, nil, fmt.Errorf("watchlist is required")
	}
	w.ApplyEnv(f.Env)
	if err := w.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid watchlist: %w", err)
	}

	sites := make([]runner.Site, 0, len(w.Sites))
	for _, cfg := range w.Sites {
		site, err := f.NewSite(cfg)
		if err != nil {
			return nil, nil, err
		}
		sites = append(sites, site)
	}
	relevance, err := f.NewFilter(w.Filter)
	if err != nil {
		return nil, nil, err
	}
	renderer, err := outputs.NewRenderer(w.Message.Template)
	if err != nil {
		return nil, nil, err
	}
	notifier, err := f.NewNotifier()
	if err != nil {
		return nil, nil, err
	}
	schedule, err := runner.NewSchedule(f.Env.Poll.Interval, f.Env.Poll.Schedule)
	if err != nil {
		return nil, nil, err
	}
	store, err := f.NewStore()
	if err != nil {
		return nil, nil, err
	}

	r, err := runner.New(runner.Options{
		Sites:            sites,
		Filter:           relevance,
		Renderer:         renderer,
		Notifier:         notifier,
		Store:            store,
		Metrics:          f.Metrics,
		Schedule:         schedule,
		RecoveryInterval: f.Env.Poll.RecoveryInterval,
		SnapshotPath:     f.Env.SnapshotPath,
		Logger:           f.Logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return r, store, nil
}

func (f *Factory) NewPageClient() *page.Client {
	client := page.NewClient(page.Options{
		Timeout:        f.Env.HTTP.Timeout,
		UserAgent:      f.Env.HTTP.UserAgent,
		AcceptLanguage: f.Env.HTTP.AcceptLanguage,
		Attempts:       f.Env.HTTP.Attempts,
	})
	if f.HTTPClient != nil {
		client = client.WithHTTPClient(f.HTTPClient)
	}
	return client
}

// NewSite builds the listing and detail fetchers for one watched search.
func (f *Factory) NewSite(cfg config.SiteConfig) (runner.Site, error) {
	logger := f.Logger
	normalizer, err := identity.NewNormalizer(cfg.BaseURL, logger)
	if err != nil {
		return runner.Site{}, fmt.Errorf("site %q: %w", cfg.Name, err)
	}
	normalizer = normalizer.KeepParams(cfg.IdentityParams...)

	pattern := listing.DefaultPattern(cfg.BaseURL, cfg.AdPath)
	if cfg.LinkPattern != "" {
		pattern, err = regexp.Compile(cfg.LinkPattern)
		if err != nil {
			return runner.Site{}, fmt.Errorf("site %q: link_pattern: %w", cfg.Name, err)
		}
	}

	client := f.NewPageClient()
	listFetcher, err := listing.NewFetcher(listing.Options{
		Site:       cfg.Name,
		ListingURL: cfg.ListingURL,
		Strategies: listing.DefaultStrategies(cfg.ListingSelector, pattern),
		Normalizer: normalizer,
		Client:     client,
		Logger:     logger,
	})
	if err != nil {
		return runner.Site{}, fmt.Errorf("site %q: %w", cfg.Name, err)
	}
	detailFetcher, err := detail.NewFetcher(detail.Options{
		Site:       cfg.Name,
		Layers:     detail.DefaultLayers(selectors(cfg.Detail)),
		Normalizer: normalizer,
		Client:     client,
		Logger:     logger,
	})
	if err != nil {
		return runner.Site{}, fmt.Errorf("site %q: %w", cfg.Name, err)
	}
	return runner.Site{Name: cfg.Name, Listing: listFetcher, Detail: detailFetcher, Normalizer: normalizer}, nil
}

// selectors overlays the configured selectors on the defaults field by field.
func selectors(cfg config.DetailSelectors) detail.Selectors {
	out := detail.DefaultSelectors
	if len(cfg.Title) > 0 {
		out.Title = cfg.Title
	}
	if len(cfg.Price) > 0 {
		out.Price = cfg.Price
	}
	if len(cfg.Photo) > 0 {
		out.Photo = cfg.Photo
	}
	if len(cfg.Description) > 0 {
		out.Description = cfg.Description
	}
	return out
}

func (f *Factory) NewFilter(cfg config.FilterConfig) (core.Filter, error) {
	filters := filter.All{filter.NewKeywords(cfg.Keywords)}
	if strings.TrimSpace(cfg.Rule) != "" {
		rule, err := filter.NewRule(cfg.Rule, f.Logger)
		if err != nil {
			return nil, err
		}
		filters = append(filters, rule)
	}
	return filters, nil
}

// NewNotifier builds the configured channel. Missing credentials disable
// delivery instead of failing startup, so ads stay eligible until the
// channel is configured.
func (f *Factory) NewNotifier() (core.Notifier, error) {
	switch f.Env.NotifyChannel {
	case config.ChannelTelegram, "":
		tg := f.Env.Telegram
		if tg.Token == "" || tg.ChatID == "" {
			return f.disabled("TG_TOKEN or TG_CHAT is not set"), nil
		}
		return telegram.New(telegram.Options{
			Token:      tg.Token,
			ChatID:     tg.ChatID,
			APIBase:    tg.APIBase,
			HTTPClient: f.HTTPClient,
			Logger:     f.Logger,
		})
	case config.ChannelEmail:
		sender := f.EmailSender
		if sender == nil {
			if f.Env.SMTP.Host == "" || f.Env.Email.To == "" {
				return f.disabled("SMTP_HOST or EMAIL_TO is not set"), nil
			}
			smtpSender, err := smtp.NewSender(smtp.Config{
				Host:               f.Env.SMTP.Host,
				Port:               f.Env.SMTP.Port,
				Username:           f.Env.SMTP.User,
				Password:           f.Env.SMTP.Password,
				TLSMode:            f.Env.SMTP.TLSMode,
				InsecureSkipVerify: f.Env.SMTP.InsecureSkipVerify,
			})
			if err != nil {
				return nil, err
			}
			sender = smtpSender
		}
		from := f.Env.Email.From
		if from == "" {
			from = f.Env.SMTP.User
		}
		return email.NewNotifier(email.NotifierOptions{
			From:       from,
			To:         f.Env.Email.To,
			Subject:    f.Env.Email.Subject,
			Sender:     sender,
			HTTPClient: f.HTTPClient,
			Logger:     f.Logger,
		})
	default:
		return nil, fmt.Errorf("unknown notify channel %q (expected %s or %s)", f.Env.NotifyChannel, config.ChannelTelegram, config.ChannelEmail)
	}
}

func (f *Factory) disabled(reason string) outputs.Disabled {
	f.Logger.Warn("notifications disabled", "reason", reason)
	return outputs.Disabled{Reason: reason, Logger: f.Logger}
}

func (f *Factory) NewStore() (dedupe.Store, error) {
	seen := f.Env.Seen
	switch seen.Backend {
	case config.SeenStoreJSON, "":
		if seen.TTL > 0 {
			f.Logger.Warn("SEEN_TTL does not apply to the json store, ignoring", "ttl", seen.TTL)
		}
		return dedupe.NewJSONFileStore(seen.Path)
	case config.SeenStoreSQLite:
		return dedupe.NewSQLiteStore(seen.Path, "", seen.TTL)
	case config.SeenStoreBadger:
		return dedupe.NewBadgerStore(seen.Path, seen.TTL)
	default:
		return nil, fmt.Errorf("unknown seen store %q (expected %s, %s or %s)", seen.Backend, config.SeenStoreJSON, config.SeenStoreSQLite, config.SeenStoreBadger)
	}
}
