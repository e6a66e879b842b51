package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultKeywords apply when neither KEYWORDS nor the watchlist sets any.
var DefaultKeywords = []string{"sti"}

// Watchlist is the YAML document describing which classifieds searches to
// watch and how to read them.
type Watchlist struct {
	Filter  FilterConfig  `yaml:"filter"`
	Message MessageConfig `yaml:"message"`
	Sites   []SiteConfig  `yaml:"sites"`
}

type FilterConfig struct {
	// Keywords left out of the document fall back to DefaultKeywords; an
	// explicit empty list accepts every ad.
	Keywords []string `yaml:"keywords"`
	Rule     string   `yaml:"rule,omitempty"`
}

type MessageConfig struct {
	Template string `yaml:"template,omitempty"`
}

type SiteConfig struct {
	Name            string `yaml:"name"`
	ListingURL      string `yaml:"listing_url"`
	BaseURL         string `yaml:"base_url,omitempty"`
	AdPath          string `yaml:"ad_path,omitempty"`
	ListingSelector string `yaml:"listing_selector,omitempty"`
	// LinkPattern overrides the default pattern derived from BaseURL and
	// AdPath. A first capture group, when present, is taken as the link.
	LinkPattern string `yaml:"link_pattern,omitempty"`
	// IdentityParams are query parameters that identify an offer.
	IdentityParams []string        `yaml:"identity_params,omitempty"`
	Detail         DetailSelectors `yaml:"detail,omitempty"`
}

type DetailSelectors struct {
	Title       []string `yaml:"title,omitempty"`
	Price       []string `yaml:"price,omitempty"`
	Photo       []string `yaml:"photo,omitempty"`
	Description []string `yaml:"description,omitempty"`
}

// DefaultWatchlist watches Subaru Impreza STI offers on Otomoto and mobile.de.
func DefaultWatchlist() *Watchlist {
	w := &Watchlist{
		Sites: []SiteConfig{
			{
				Name: "otomoto",
				ListingURL: "https://www.otomoto.pl/osobowe/subaru/impreza/sti/?" +
					"search%5Bfilter_enum_generation%5D%5B0%5D=blobeye&" +
					"search%5Bfilter_enum_generation%5D%5B1%5D=hawkeye&" +
					"search%5Bfilter_enum_generation%5D%5B2%5D=gr&" +
					"search%5Bfilter_enum_generation%5D%5B3%5D=gv&" +
					"search%5Bfilter_enum_type%5D=limitowana-edition&" +
					"search%5Border%5D=created_at_first%3Adesc",
				BaseURL:         "https://www.otomoto.pl",
				AdPath:          "/oferta/",
				ListingSelector: "article[data-id] a[href*='/oferta/']",
			},
			{
				Name: "mobile.de",
				ListingURL: "https://suchen.mobile.de/fahrzeuge/search.html?" +
					"makeModelVariant1.makeId=20900&" +
					"makeModelVariant1.modelId=26&" +
					"usage=USED&" +
					"powerunit=PETROL&" +
					"transmission=MANUAL&" +
					"priceCurrency=EUR&" +
					"sortOption.sortBy=creationTime&" +
					"sortOption.sortOrder=DESC",
				BaseURL:         "https://suchen.mobile.de",
				AdPath:          "/fahrzeuge/details.html",
				ListingSelector: "a[href*='/fahrzeuge/details.html']",
				IdentityParams:  []string{"id"},
			},
		},
	}
	w.applyDefaults()
	return w
}

// LoadWatchlist reads, defaults and validates a watchlist file. Unknown keys
// are rejected so typos do not silently disable a site.
func LoadWatchlist(path string) (*Watchlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}
	return ParseWatchlist(data)
}

func ParseWatchlist(data []byte) (*Watchlist, error) {
	var w Watchlist
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&w); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("watchlist is empty")
		}
		return nil, fmt.Errorf("parse watchlist: %w", err)
	}
	w.applyDefaults()
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

// ApplyEnv lets environment overrides win over the document.
func (w *Watchlist) ApplyEnv(env EnvConfig) {
	if env.Keywords != nil {
		w.Filter.Keywords = env.Keywords
	}
	if strings.TrimSpace(env.FilterRule) != "" {
		w.Filter.Rule = env.FilterRule
	}
	if strings.TrimSpace(env.MessageTemplate) != "" {
		w.Message.Template = env.MessageTemplate
	}
}

func (w *Watchlist) applyDefaults() {
	if w.Filter.Keywords == nil {
		w.Filter.Keywords = append([]string(nil), DefaultKeywords...)
	}
	for i := range w.Sites {
		site := &w.Sites[i]
		site.Name = strings.TrimSpace(site.Name)
		site.ListingURL = strings.TrimSpace(site.ListingURL)
		site.BaseURL = strings.TrimRight(strings.TrimSpace(site.BaseURL), "/")
		if site.BaseURL == "" {
			if u, err := url.Parse(site.ListingURL); err == nil && u.Host != "" {
				site.BaseURL = u.Scheme + "://" + u.Host
			}
		}
	}
}

// Validate checks the document after defaults were applied.
func (w *Watchlist) Validate() error {
	if len(w.Sites) == 0 {
		return fmt.Errorf("at least one site is required")
	}
	names := make(map[string]struct{}, len(w.Sites))
	for i, site := range w.Sites {
		if site.Name == "" {
			return fmt.Errorf("site %d: name is required", i)
		}
		if _, dup := names[site.Name]; dup {
			return fmt.Errorf("site %q: duplicate name", site.Name)
		}
		names[site.Name] = struct{}{}

		if err := validateHTTPURL(site.ListingURL); err != nil {
			return fmt.Errorf("site %q: listing_url: %w", site.Name, err)
		}
		if err := validateHTTPURL(site.BaseURL); err != nil {
			return fmt.Errorf("site %q: base_url: %w", site.Name, err)
		}
		if site.LinkPattern != "" {
			if _, err := regexp.Compile(site.LinkPattern); err != nil {
				return fmt.Errorf("site %q: link_pattern: %w", site.Name, err)
			}
		}
	}
	return nil
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q must be an absolute http(s) url", raw)
	}
	return nil
}
