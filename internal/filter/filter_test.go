package filter

import (
	"io"
	"log/slog"
	"testing"

	"github.com/bakkerme/adhunter/internal/core"
)

func TestKeywordsIsRelevant(t *testing.T) {
	tests := []struct {
		name     string
		keywords []string
		record   core.AdRecord
		want     bool
	}{
		{name: "title match", keywords: []string{"sti"}, record: core.AdRecord{Title: "Subaru Impreza STI"}, want: true},
		{name: "description match", keywords: []string{"sti"}, record: core.AdRecord{Title: "Subaru", Description: "wersja sti, 2008"}, want: true},
		{name: "substring match", keywords: []string{"sti"}, record: core.AdRecord{Title: "Opel Astina"}, want: true},
		{name: "no match", keywords: []string{"sti"}, record: core.AdRecord{Title: "Subaru Forester"}, want: false},
		{name: "any keyword", keywords: []string{"wrx", "sti"}, record: core.AdRecord{Title: "Impreza WRX"}, want: true},
		{name: "keyword case folded", keywords: []string{" STI "}, record: core.AdRecord{Title: "impreza sti"}, want: true},
		{name: "empty set accepts", keywords: nil, record: core.AdRecord{Title: "anything"}, want: true},
		{name: "blank keywords accept", keywords: []string{"", "  "}, record: core.AdRecord{Title: "anything"}, want: true},
		{name: "placeholder title", keywords: []string{"sti"}, record: core.AdRecord{Title: core.MissingTitle}, want: false},
		{name: "placeholder title with description", keywords: []string{"sti"}, record: core.AdRecord{Title: core.MissingTitle, Description: "Impreza STI"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := tt.record
			if got := NewKeywords(tt.keywords).IsRelevant(&record); got != tt.want {
				t.Fatalf("IsRelevant() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKeywordsNilRecord(t *testing.T) {
	if NewKeywords(nil).IsRelevant(nil) {
		t.Fatalf("IsRelevant(nil) = true, want false")
	}
}

func TestRuleIsRelevant(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name   string
		rule   string
		record core.AdRecord
		want   bool
	}{
		{name: "price and title", rule: `price != "" && title.length > 3`, record: core.AdRecord{Title: "Impreza", Price: "1 PLN"}, want: true},
		{name: "missing price", rule: `price != "" && title.length > 3`, record: core.AdRecord{Title: "Impreza"}, want: false},
		{name: "site", rule: `site == "otomoto"`, record: core.AdRecord{Site: "mobile.de"}, want: false},
		{name: "photo", rule: `has_photo`, record: core.AdRecord{PhotoURL: "https://cdn/a.jpg"}, want: true},
		{name: "contains", rule: `description.value contains "bezwypadkowy"`, record: core.AdRecord{Description: "auto bezwypadkowy"}, want: true},
		{name: "placeholder title has no length", rule: `title.length > 0`, record: core.AdRecord{Title: core.MissingTitle}, want: false},
		{name: "either condition", rule: `price != "" || has_photo`, record: core.AdRecord{Price: "5"}, want: true},
		{name: "non bool keeps", rule: `title.length`, record: core.AdRecord{Title: "x"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := NewRule(tt.rule, logger)
			if err != nil {
				t.Fatalf("NewRule() error = %v", err)
			}
			record := tt.record
			if got := rule.IsRelevant(&record); got != tt.want {
				t.Fatalf("IsRelevant() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewRuleRejectsInvalid(t *testing.T) {
	for _, src := range []string{"", "price ===", "mileage < 100000"} {
		if _, err := NewRule(src, nil); err == nil {
			t.Errorf("NewRule(%q) error = nil, want error", src)
		}
	}
}

func TestNewRuleAcceptsRecordFields(t *testing.T) {
	for _, src := range []string{
		`price != ""`,
		`title.length > 3`,
		`site == "otomoto"`,
		`has_photo`,
		`url startsWith "https://"`,
		`photo != "" || description.length > 20`,
	} {
		if _, err := NewRule(src, nil); err != nil {
			t.Errorf("NewRule(%q) error = %v", src, err)
		}
	}
}

func TestAllRequiresEveryFilter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rule, err := NewRule(`price != ""`, logger)
	if err != nil {
		t.Fatalf("NewRule() error = %v", err)
	}
	f := All{NewKeywords([]string{"sti"}), rule}

	if !f.IsRelevant(&core.AdRecord{Title: "STI", Price: "10"}) {
		t.Errorf("expected record matching both filters to pass")
	}
	if f.IsRelevant(&core.AdRecord{Title: "STI"}) {
		t.Errorf("expected record failing the rule to be dropped")
	}
	if f.IsRelevant(&core.AdRecord{Title: "WRX", Price: "10"}) {
		t.Errorf("expected record failing keywords to be dropped")
	}
}
