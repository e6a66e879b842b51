package email

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

const (
	DefaultSubject   = "Nowe ogłoszenie"
	maxPhotoBytes    = 10 << 20
	photoContentName = "photo"
)

type NotifierOptions struct {
	From       string
	To         string
	Subject    string
	Sender     Sender
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Notifier mails the rendered message. When a photo is given it is downloaded
// and embedded inline; any failure on that path falls back once to a text-only
// mail.
type Notifier struct {
	from      string
	to        string
	subject   string
	sender    Sender
	client    *http.Client
	logger    *slog.Logger
	converter goldmark.Markdown
}

func NewNotifier(opts NotifierOptions) (*Notifier, error) {
	if opts.Sender == nil {
		return nil, fmt.Errorf("email sender is required")
	}
	if strings.TrimSpace(opts.To) == "" {
		return nil, fmt.Errorf("email recipient is required")
	}
	if opts.Subject == "" {
		opts.Subject = DefaultSubject
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Notifier{
		from:      opts.From,
		to:        opts.To,
		subject:   opts.Subject,
		sender:    opts.Sender,
		client:    opts.HTTPClient,
		logger:    opts.Logger,
		converter: newMarkdownConverter(),
	}, nil
}

func (n *Notifier) Deliver(ctx context.Context, message, photoURL string) bool {
	body, err := n.renderBody(message)
	if err != nil {
		n.logger.Error("render email body failed", "error", err)
		return false
	}

	if photoURL != "" {
		err := n.sendWithPhoto(ctx, body, photoURL)
		if err == nil {
			return true
		}
		n.logger.Warn("email photo delivery failed, falling back to text", "error", err)
	}

	if err := n.sender.Send(ctx, n.message(body, nil)); err != nil {
		n.logger.Error("email delivery failed", "error", err)
		return false
	}
	return true
}

func (n *Notifier) sendWithPhoto(ctx context.Context, body, photoURL string) error {
	img, err := n.fetchPhoto(ctx, photoURL)
	if err != nil {
		return err
	}
	withPhoto := fmt.Sprintf(`<p><img src="cid:%s" alt="" style="max-width:100%%"></p>`, img.Name) + body
	return n.sender.Send(ctx, n.message(withPhoto, []Image{img}))
}

func (n *Notifier) message(body string, images []Image) Message {
	return Message{
		From:    n.from,
		To:      n.to,
		Subject: n.subject,
		Body:    body,
		Images:  images,
	}
}

func (n *Notifier) fetchPhoto(ctx context.Context, photoURL string) (Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photoURL, http.NoBody)
	if err != nil {
		return Image{}, fmt.Errorf("build photo request: %w", err)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("fetch photo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Image{}, fmt.Errorf("fetch photo: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("read photo: %w", err)
	}
	if len(data) > maxPhotoBytes {
		return Image{}, fmt.Errorf("photo exceeds %d bytes", maxPhotoBytes)
	}
	contentType := resp.Header.Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return Image{}, fmt.Errorf("photo has content type %q", contentType)
	}
	return Image{Name: photoName(contentType), ContentType: contentType, Data: data}, nil
}

func photoName(contentType string) string {
	ext := path.Base(contentType)
	if ext == "jpeg" {
		ext = "jpg"
	}
	return photoContentName + "." + ext
}

// renderBody turns the chat-formatted message into an HTML mail body. The
// message already carries escaped text and simple inline tags.
func (n *Notifier) renderBody(message string) (string, error) {
	var buf bytes.Buffer
	if err := n.converter.Convert([]byte(message), &buf); err != nil {
		return "", fmt.Errorf("convert message: %w", err)
	}
	return buf.String(), nil
}

func newMarkdownConverter() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.Linkify),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			gmhtml.WithUnsafe(),
		),
	)
}
