// Package outputs formats ad notifications and holds the channel-independent
// notifiers.
package outputs

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/bakkerme/adhunter/internal/core"
)

// DefaultTemplate renders Telegram-flavoured HTML.
const DefaultTemplate = `🚗 <b>Nowe ogłoszenie</b>{{if .Site}} ({{.Site}}){{end}}
<b>{{.Title}}</b>
{{- if .Price}}
💰 {{.Price}}{{end}}
{{- if .Description}}

{{truncate 500 .Description}}{{end}}

{{.URL}}`

// Renderer turns an ad record into message text.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer(text string) (*Renderer, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultTemplate
	}
	tmpl, err := template.New("message").Funcs(template.FuncMap{
		"truncate": truncate,
	}).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse message template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

func (r *Renderer) Render(record *core.AdRecord) (string, error) {
	if record == nil {
		return "", fmt.Errorf("render message: nil record")
	}
	var b strings.Builder
	if err := r.tmpl.Execute(&b, record); err != nil {
		return "", fmt.Errorf("execute message template: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(n int, s string) string {
	s = strings.TrimSpace(s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "…"
}

// Disabled stands in when no channel is configured. Every delivery fails, so
// nothing is ever committed as notified.
type Disabled struct {
	Reason string
	Logger *slog.Logger
}

func (d Disabled) Deliver(ctx context.Context, message, photoURL string) bool {
	logger := d.Logger
	if logger == nil {
		logger = core.LoggerFromContext(ctx)
	}
	logger.Warn("notification channel disabled, message dropped",
		"cycle_id", core.CycleIDFromContext(ctx),
		"reason", d.Reason,
		"has_photo", photoURL != "",
		"length", len(message),
	)
	return false
}
