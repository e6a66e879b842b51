// Package telegram delivers notifications through the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultAPIBase = "https://api.telegram.org"
	defaultTimeout = 15 * time.Second
)

type Options struct {
	Token      string
	ChatID     string
	APIBase    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Notifier sends a photo with caption when a photo is available and falls
// back once to a plain text message.
type Notifier struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
	logger  *slog.Logger
}

func New(opts Options) (*Notifier, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if strings.TrimSpace(opts.ChatID) == "" {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	if opts.APIBase == "" {
		opts.APIBase = DefaultAPIBase
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Notifier{
		token:   strings.TrimSpace(opts.Token),
		chatID:  strings.TrimSpace(opts.ChatID),
		apiBase: strings.TrimRight(opts.APIBase, "/"),
		client:  opts.HTTPClient,
		logger:  opts.Logger,
	}, nil
}

func (n *Notifier) Deliver(ctx context.Context, message, photoURL string) bool {
	if photoURL != "" {
		err := n.call(ctx, "sendPhoto", url.Values{
			"chat_id":    {n.chatID},
			"photo":      {photoURL},
			"caption":    {message},
			"parse_mode": {"HTML"},
		})
		if err == nil {
			return true
		}
		n.logger.Warn("telegram photo delivery failed, falling back to text", "error", err)
	}

	err := n.call(ctx, "sendMessage", url.Values{
		"chat_id":                  {n.chatID},
		"text":                     {message},
		"parse_mode":               {"HTML"},
		"disable_web_page_preview": {"false"},
	})
	if err != nil {
		n.logger.Error("telegram delivery failed", "error", err)
		return false
	}
	return true
}

// call posts a form to the Bot API. Errors never include the request URL,
// which carries the bot token.
func (n *Notifier) call(ctx context.Context, method string, form url.Values) error {
	endpoint := n.apiBase + "/bot" + n.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%s: build request failed", method)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
