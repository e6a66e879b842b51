package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	SeenStoreJSON   = "json"
	SeenStoreSQLite = "sqlite"
	SeenStoreBadger = "badger"

	ChannelTelegram = "telegram"
	ChannelEmail    = "email"
)

type EnvConfig struct {
	WatchlistPath string
	RunOnce       bool
	Port          int
	// Keywords is nil when KEYWORDS is unset so the watchlist value applies.
	Keywords        []string
	FilterRule      string
	MessageTemplate string
	NotifyChannel   string
	// SnapshotPath, when set, receives a JSON report of the last cycle.
	SnapshotPath string
	Telegram     TelegramEnvConfig
	Email        EmailEnvConfig
	SMTP         SMTPEnvConfig
	Seen         SeenEnvConfig
	Poll         PollEnvConfig
	HTTP         HTTPEnvConfig
	Log          LogEnvConfig
	OTel         OTelEnvConfig
}

type TelegramEnvConfig struct {
	Token   string
	ChatID  string
	APIBase string
}

type EmailEnvConfig struct {
	To      string
	From    string
	Subject string
}

type SMTPEnvConfig struct {
	Host               string
	Port               int
	User               string
	Password           string
	TLSMode            string
	InsecureSkipVerify bool
}

type SeenEnvConfig struct {
	Backend string // "json", "sqlite" or "badger"
	Path    string
	TTL     time.Duration
}

type PollEnvConfig struct {
	Interval         time.Duration
	RecoveryInterval time.Duration
	Schedule         string
}

type HTTPEnvConfig struct {
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
	Attempts       int
}

type LogEnvConfig struct {
	Level  string
	Format string
}

type OTelEnvConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	Protocol    string // "grpc" or "http/protobuf"
	Headers     map[string]string
	Insecure    bool
	SampleRatio float64
}

func LoadEnv() EnvConfig {
	otlpEndpoint := strings.TrimSpace(envString("OTEL_EXPORTER_OTLP_ENDPOINT", ""))

	seenBackend := strings.ToLower(envString("SEEN_STORE", SeenStoreJSON))
	defaultSeenPath := "data/seen_ads.json"
	switch seenBackend {
	case SeenStoreSQLite:
		defaultSeenPath = "data/seen_ads.db"
	case SeenStoreBadger:
		defaultSeenPath = "data/seen_ads.badger"
	}

	return EnvConfig{
		WatchlistPath:   envString("WATCHLIST_CONFIG", ""),
		RunOnce:         envBool("RUN_ONCE", false),
		Port:            envInt("PORT", 10000),
		Keywords:        envList("KEYWORDS"),
		FilterRule:      envString("FILTER_RULE", ""),
		MessageTemplate: os.Getenv("MESSAGE_TEMPLATE"),
		NotifyChannel:   strings.ToLower(envString("NOTIFY_CHANNEL", ChannelTelegram)),
		SnapshotPath:    envString("CYCLE_SNAPSHOT_PATH", ""),
		Telegram: TelegramEnvConfig{
			Token:   envString("TG_TOKEN", ""),
			ChatID:  envString("TG_CHAT", ""),
			APIBase: envString("TELEGRAM_API_BASE", "https://api.telegram.org"),
		},
		Email: EmailEnvConfig{
			To:      envString("EMAIL_TO", ""),
			From:    envString("EMAIL_FROM", ""),
			Subject: envString("EMAIL_SUBJECT", "Nowe ogłoszenie"),
		},
		SMTP: SMTPEnvConfig{
			Host:               envString("SMTP_HOST", ""),
			Port:               envInt("SMTP_PORT", 587),
			User:               envString("SMTP_USER", ""),
			Password:           envString("SMTP_PASSWORD", ""),
			TLSMode:            envString("SMTP_TLS_MODE", ""),
			InsecureSkipVerify: envBool("SMTP_INSECURE_SKIP_VERIFY", false),
		},
		Seen: SeenEnvConfig{
			Backend: seenBackend,
			Path:    envString("SEEN_STORE_PATH", defaultSeenPath),
			TTL:     envDuration("SEEN_TTL", 0),
		},
		Poll: PollEnvConfig{
			Interval:         envDuration("POLL_INTERVAL", 10*time.Minute),
			RecoveryInterval: envDuration("RECOVERY_INTERVAL", time.Minute),
			Schedule:         envString("POLL_SCHEDULE", ""),
		},
		HTTP: HTTPEnvConfig{
			Timeout:        envDuration("HTTP_TIMEOUT", 15*time.Second),
			UserAgent:      envString("HTTP_USER_AGENT", ""),
			AcceptLanguage: envString("HTTP_ACCEPT_LANGUAGE", ""),
			Attempts:       envInt("FETCH_ATTEMPTS", 1),
		},
		Log: LogEnvConfig{
			Level:  strings.ToLower(envString("LOG_LEVEL", "info")),
			Format: strings.ToLower(envString("LOG_FORMAT", "text")),
		},
		OTel: OTelEnvConfig{
			Enabled:     envBool("OTEL_ENABLED", false),
			ServiceName: strings.TrimSpace(envString("OTEL_SERVICE_NAME", "adhunter")),
			Endpoint:    otlpEndpoint,
			Protocol:    strings.ToLower(strings.TrimSpace(envString("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			Headers:     parseHeaders(envString("OTEL_EXPORTER_OTLP_HEADERS", "")),
			Insecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE", defaultInsecure(otlpEndpoint)),
			SampleRatio: clamp01(envFloat("OTEL_TRACES_SAMPLE_RATIO", 1.0)),
		},
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := parseDurationExtended(v)
	if err != nil {
		return fallback
	}
	return d
}

// envList splits a comma-separated variable. It returns nil when the variable
// is unset and an empty, non-nil slice when it is set but blank.
func envList(key string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func parseHeaders(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func defaultInsecure(endpoint string) bool {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return true
	}
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return u.Scheme == "http"
	}
	return strings.HasPrefix(endpoint, "localhost:") ||
		strings.HasPrefix(endpoint, "127.0.0.1:") ||
		strings.HasPrefix(endpoint, "0.0.0.0:")
}
