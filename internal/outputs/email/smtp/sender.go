// Package smtp sends notification mails through an SMTP relay.
package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"

	mail "github.com/wneessen/go-mail"

	"github.com/bakkerme/adhunter/internal/outputs/email"
)

// TLSMode determines how the SMTP client should negotiate TLS.
type TLSMode string

const (
	// TLSModeAuto uses implicit TLS on 465 and STARTTLS otherwise.
	TLSModeAuto     TLSMode = "auto"
	TLSModeDisabled TLSMode = "disabled"
	TLSModeStartTLS TLSMode = "starttls"
	// TLSModeImplicit is SMTPS, typically on port 465.
	TLSModeImplicit TLSMode = "implicit"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// TLSMode is optional; empty means TLSModeAuto.
	TLSMode            string
	InsecureSkipVerify bool
}

type Sender struct {
	cfg  Config
	mode TLSMode
}

// NewSender validates cfg and resolves the TLS mode so misconfiguration is
// reported at startup rather than on the first ad.
func NewSender(cfg Config) (*Sender, error) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("smtp port must be positive")
	}
	mode, err := resolveTLSMode(cfg.TLSMode, cfg.Port)
	if err != nil {
		return nil, err
	}
	return &Sender{cfg: cfg, mode: mode}, nil
}

func (s *Sender) Send(ctx context.Context, message email.Message) error {
	if message.From == "" {
		message.From = s.cfg.Username
	}
	m, err := buildMsg(message)
	if err != nil {
		return err
	}

	auth := s.cfg.Username != ""
	err = s.dialAndSend(ctx, m, auth)
	// Local sinks such as mailpit reject AUTH; credentials shared with a
	// real relay should not break delivery to them.
	if err != nil && auth && isAuthUnsupported(err) && isLocalDevSMTPHost(s.cfg.Host) {
		if retryErr := s.dialAndSend(ctx, m, false); retryErr == nil {
			return nil
		}
	}
	return err
}

func buildMsg(message email.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(message.From); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", message.From, err)
	}
	if err := m.ToFromString(message.To); err != nil {
		return nil, fmt.Errorf("invalid to address(es) %q: %w", message.To, err)
	}
	if err := m.EnvelopeFrom(message.From); err != nil {
		return nil, fmt.Errorf("invalid envelope from address %q: %w", message.From, err)
	}
	m.Subject(message.Subject)
	m.SetBodyString(mail.TypeTextHTML, message.Body)
	for _, img := range message.Images {
		err := m.EmbedReader(img.Name, bytes.NewReader(img.Data), mail.WithFileContentType(mail.ContentType(img.ContentType)))
		if err != nil {
			return nil, fmt.Errorf("embed image %q: %w", img.Name, err)
		}
	}
	return m, nil
}

func (s *Sender) dialAndSend(ctx context.Context, m *mail.Msg, auth bool) error {
	client, err := mail.NewClient(s.cfg.Host, s.clientOptions(auth)...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (s *Sender) clientOptions(auth bool) []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSConfig(&tls.Config{
			ServerName:         s.cfg.Host,
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: s.cfg.InsecureSkipVerify,
		}),
	}
	switch s.mode {
	case TLSModeDisabled:
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	case TLSModeImplicit:
		opts = append(opts, mail.WithSSL())
	default:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}
	if auth {
		opts = append(opts,
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		)
	}
	return opts
}

func resolveTLSMode(raw string, port int) (TLSMode, error) {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "", string(TLSModeAuto):
		if port == 465 {
			return TLSModeImplicit, nil
		}
		return TLSModeStartTLS, nil
	case "disabled", "off", "none":
		return TLSModeDisabled, nil
	case "starttls", "start_tls":
		return TLSModeStartTLS, nil
	case "implicit", "smtptls", "smtp_tls":
		return TLSModeImplicit, nil
	default:
		return "", fmt.Errorf("invalid smtp tls mode %q (expected auto, disabled, starttls or implicit)", raw)
	}
}

func isAuthUnsupported(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "server does not support SMTP AUTH") ||
		strings.Contains(msg, "SMTP Auth autodiscover was not able to detect a supported authentication mechanism")
}

func isLocalDevSMTPHost(host string) bool {
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "localhost" || host == "mailpit" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
