package smtp

import (
	"strings"
	"testing"

	"github.com/bakkerme/adhunter/internal/outputs/email"
)

func TestIsLocalDevSMTPHost(t *testing.T) {
	cases := []struct {
		host string
		want bool
	}{
		{"localhost", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"mailpit", true},
		{"smtp.example.com", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := isLocalDevSMTPHost(tc.host); got != tc.want {
			t.Fatalf("isLocalDevSMTPHost(%q)=%v want %v", tc.host, got, tc.want)
		}
	}
}

func TestNewSenderResolvesTLSMode(t *testing.T) {
	cases := []struct {
		mode    string
		port    int
		want    TLSMode
		wantErr bool
	}{
		{mode: "", port: 465, want: TLSModeImplicit},
		{mode: "auto", port: 587, want: TLSModeStartTLS},
		{mode: "off", port: 25, want: TLSModeDisabled},
		{mode: "START_TLS", port: 25, want: TLSModeStartTLS},
		{mode: "smtps", port: 465, wantErr: true},
	}
	for _, tc := range cases {
		s, err := NewSender(Config{Host: "smtp.example.com", Port: tc.port, TLSMode: tc.mode})
		if tc.wantErr {
			if err == nil {
				t.Fatalf("NewSender(mode=%q) expected error", tc.mode)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NewSender(mode=%q) error = %v", tc.mode, err)
		}
		if s.mode != tc.want {
			t.Fatalf("mode(%q)=%q want %q", tc.mode, s.mode, tc.want)
		}
	}
}

func TestNewSenderValidates(t *testing.T) {
	if _, err := NewSender(Config{Port: 25}); err == nil {
		t.Fatalf("expected missing host error")
	}
	if _, err := NewSender(Config{Host: "smtp.example.com"}); err == nil {
		t.Fatalf("expected invalid port error")
	}
}

func TestBuildMsgEmbedsImages(t *testing.T) {
	m, err := buildMsg(email.Message{
		From:    "bot@example.com",
		To:      "me@example.com",
		Subject: "New ad",
		Body:    `<img src="cid:photo.jpg"><p>STI</p>`,
		Images:  []email.Image{{Name: "photo.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}},
	})
	if err != nil {
		t.Fatalf("buildMsg() error = %v", err)
	}
	if got := m.GetEmbeds(); len(got) != 1 || got[0].Name != "photo.jpg" {
		t.Fatalf("embeds = %+v", got)
	}
	if to, err := m.GetRecipients(); err != nil || len(to) != 1 || strings.Trim(to[0], "<>") != "me@example.com" {
		t.Fatalf("recipients = %v, %v", to, err)
	}

	if _, err := buildMsg(email.Message{From: "not an address", To: "me@example.com"}); err == nil {
		t.Fatalf("expected invalid from error")
	}
}
