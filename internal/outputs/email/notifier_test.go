package email_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bakkerme/adhunter/internal/outputs/email"
	"github.com/bakkerme/adhunter/internal/outputs/email/mock"
)

// 1x1 transparent GIF.
var gifPixel = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\x00\x00\x00\xff\xff\xff!\xf9\x04\x01\x00\x00\x00\x00,\x00\x00\x00\x00\x01\x00\x01\x00\x00\x02\x02D\x01\x00;")

func newNotifier(t *testing.T, sender email.Sender) *email.Notifier {
	t.Helper()
	n, err := email.NewNotifier(email.NotifierOptions{
		From:   "bot@example.com",
		To:     "me@example.com",
		Sender: sender,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewNotifier() error = %v", err)
	}
	return n
}

func TestNotifierEmbedsPhoto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/gif")
		_, _ = w.Write(gifPixel)
	}))
	t.Cleanup(srv.Close)
	sender := &mock.Sender{}
	n := newNotifier(t, sender)

	if !n.Deliver(context.Background(), "🚗 <b>STI</b>\n129 900 PLN", srv.URL+"/p.gif") {
		t.Fatalf("Deliver() = false, want true")
	}
	if len(sender.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.Messages))
	}
	msg := sender.Messages[0]
	if msg.Subject != email.DefaultSubject || msg.To != "me@example.com" || msg.From != "bot@example.com" {
		t.Fatalf("unexpected envelope: %+v", msg)
	}
	if len(msg.Images) != 1 || msg.Images[0].ContentType != "image/gif" || msg.Images[0].Name != "photo.gif" {
		t.Fatalf("unexpected images: %+v", msg.Images)
	}
	if !strings.Contains(msg.Body, `src="cid:photo.gif"`) {
		t.Fatalf("body does not reference the inline photo: %s", msg.Body)
	}
	if !strings.Contains(msg.Body, "<b>STI</b><br>") {
		t.Fatalf("expected inline tags and hard wraps to survive: %s", msg.Body)
	}
}

func TestNotifierBrokenPhotoFallsBackToText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	sender := &mock.Sender{}
	n := newNotifier(t, sender)

	if !n.Deliver(context.Background(), "hello", srv.URL+"/missing.jpg") {
		t.Fatalf("Deliver() = false, want true")
	}
	if len(sender.Messages) != 1 || len(sender.Messages[0].Images) != 0 {
		t.Fatalf("expected one text-only message, got %+v", sender.Messages)
	}
}

func TestNotifierRejectedPhotoMailFallsBackToText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/gif")
		_, _ = w.Write(gifPixel)
	}))
	t.Cleanup(srv.Close)
	sender := &mock.Sender{RejectImages: true}
	n := newNotifier(t, sender)

	if !n.Deliver(context.Background(), "hello", srv.URL+"/p.gif") {
		t.Fatalf("Deliver() = false, want true")
	}
	if sender.Attempts != 2 || len(sender.Messages) != 1 || len(sender.Messages[0].Images) != 0 {
		t.Fatalf("expected photo attempt then text-only send, attempts=%d messages=%+v", sender.Attempts, sender.Messages)
	}
}

func TestNotifierSendFailure(t *testing.T) {
	sender := &mock.Sender{Err: errors.New("smtp down")}
	n := newNotifier(t, sender)

	if n.Deliver(context.Background(), "hello", "") {
		t.Fatalf("Deliver() = true, want false")
	}
	if sender.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", sender.Attempts)
	}
}

func TestNewNotifierValidates(t *testing.T) {
	if _, err := email.NewNotifier(email.NotifierOptions{To: "x@example.com"}); err == nil {
		t.Fatalf("expected missing sender error")
	}
	if _, err := email.NewNotifier(email.NotifierOptions{Sender: &mock.Sender{}}); err == nil {
		t.Fatalf("expected missing recipient error")
	}
}
