package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParseWatchlist(t *testing.T) {
	data := []byte(`
filter:
  keywords: [sti, wrx]
  rule: 'price != ""'
message:
  template: "{{.Title}}"
sites:
  - name: otomoto
    listing_url: https://www.otomoto.pl/osobowe/subaru/impreza/sti/
    ad_path: /oferta/
    listing_selector: "article[data-id] a"
    detail:
      price: ["[data-testid='ad-price']"]
  - name: mobile.de
    listing_url: https://suchen.mobile.de/fahrzeuge/search.html?makeModelVariant1.makeId=20900
    base_url: https://suchen.mobile.de/
    link_pattern: 'href="(https://suchen\.mobile\.de/fahrzeuge/details[^"]+)"'
    identity_params: [id]
`)
	w, err := ParseWatchlist(data)
	if err != nil {
		t.Fatalf("ParseWatchlist() error = %v", err)
	}
	if !reflect.DeepEqual(w.Filter.Keywords, []string{"sti", "wrx"}) || w.Filter.Rule != `price != ""` {
		t.Errorf("Filter = %+v", w.Filter)
	}
	if w.Message.Template != "{{.Title}}" {
		t.Errorf("Message = %+v", w.Message)
	}
	if len(w.Sites) != 2 {
		t.Fatalf("expected 2 sites, got %d", len(w.Sites))
	}
	if w.Sites[0].BaseURL != "https://www.otomoto.pl" {
		t.Errorf("derived BaseURL = %q", w.Sites[0].BaseURL)
	}
	if w.Sites[1].BaseURL != "https://suchen.mobile.de" {
		t.Errorf("trimmed BaseURL = %q", w.Sites[1].BaseURL)
	}
	if !reflect.DeepEqual(w.Sites[0].Detail.Price, []string{"[data-testid='ad-price']"}) {
		t.Errorf("Detail = %+v", w.Sites[0].Detail)
	}
	if !reflect.DeepEqual(w.Sites[1].IdentityParams, []string{"id"}) {
		t.Errorf("IdentityParams = %v", w.Sites[1].IdentityParams)
	}
}

func TestParseWatchlistKeywordDefaults(t *testing.T) {
	site := "sites:\n  - name: a\n    listing_url: https://a.example/list\n"

	w, err := ParseWatchlist([]byte(site))
	if err != nil {
		t.Fatalf("ParseWatchlist() error = %v", err)
	}
	if !reflect.DeepEqual(w.Filter.Keywords, DefaultKeywords) {
		t.Errorf("missing keywords should default, got %v", w.Filter.Keywords)
	}

	w, err = ParseWatchlist([]byte("filter:\n  keywords: []\n" + site))
	if err != nil {
		t.Fatalf("ParseWatchlist() error = %v", err)
	}
	if w.Filter.Keywords == nil || len(w.Filter.Keywords) != 0 {
		t.Errorf("explicit empty keywords should stay empty, got %#v", w.Filter.Keywords)
	}
}

func TestWatchlistValidate(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{name: "empty", yaml: "", want: "empty"},
		{name: "no sites", yaml: "sites: []", want: "at least one site"},
		{name: "missing name", yaml: "sites:\n  - listing_url: https://a/x\n", want: "name is required"},
		{name: "duplicate", yaml: "sites:\n  - {name: a, listing_url: 'https://a/x'}\n  - {name: a, listing_url: 'https://a/y'}\n", want: "duplicate"},
		{name: "relative listing", yaml: "sites:\n  - {name: a, listing_url: /x}\n", want: "listing_url"},
		{name: "ftp base", yaml: "sites:\n  - {name: a, listing_url: 'https://a/x', base_url: 'ftp://a'}\n", want: "base_url"},
		{name: "bad pattern", yaml: "sites:\n  - {name: a, listing_url: 'https://a/x', link_pattern: '('}\n", want: "link_pattern"},
		{name: "unknown key", yaml: "sites:\n  - {name: a, listing_url: 'https://a/x', selector: x}\n", want: "selector"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseWatchlist([]byte(tc.yaml))
			if err == nil {
				t.Fatalf("ParseWatchlist() error = nil, want %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("ParseWatchlist() error = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestDefaultWatchlistIsValid(t *testing.T) {
	w := DefaultWatchlist()
	if err := w.Validate(); err != nil {
		t.Fatalf("DefaultWatchlist().Validate() error = %v", err)
	}
	if len(w.Sites) != 2 || w.Sites[0].Name != "otomoto" || w.Sites[1].Name != "mobile.de" {
		t.Fatalf("unexpected default sites: %+v", w.Sites)
	}
}

func TestApplyEnv(t *testing.T) {
	w := DefaultWatchlist()
	w.ApplyEnv(EnvConfig{Keywords: []string{"wrx"}, FilterRule: "has_photo", MessageTemplate: "{{.URL}}"})
	if !reflect.DeepEqual(w.Filter.Keywords, []string{"wrx"}) || w.Filter.Rule != "has_photo" || w.Message.Template != "{{.URL}}" {
		t.Fatalf("ApplyEnv did not override: %+v %+v", w.Filter, w.Message)
	}

	w = DefaultWatchlist()
	w.ApplyEnv(EnvConfig{})
	if !reflect.DeepEqual(w.Filter.Keywords, DefaultKeywords) {
		t.Fatalf("unset env should keep watchlist keywords, got %v", w.Filter.Keywords)
	}
}

func TestLoadWatchlist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchlist.yaml")
	if err := os.WriteFile(path, []byte("sites:\n  - {name: a, listing_url: 'https://a.example/x'}\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	w, err := LoadWatchlist(path)
	if err != nil {
		t.Fatalf("LoadWatchlist() error = %v", err)
	}
	if w.Sites[0].BaseURL != "https://a.example" {
		t.Fatalf("BaseURL = %q", w.Sites[0].BaseURL)
	}
	if _, err := LoadWatchlist(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
