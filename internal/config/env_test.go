package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadEnvDefaults(t *testing.T) {
	for _, key := range []string{"KEYWORDS", "SEEN_STORE", "SEEN_STORE_PATH", "POLL_INTERVAL", "PORT", "NOTIFY_CHANNEL", "FETCH_ATTEMPTS"} {
		t.Setenv(key, "")
	}

	env := LoadEnv()
	if env.Port != 10000 {
		t.Errorf("Port = %d", env.Port)
	}
	if env.Seen.Backend != SeenStoreJSON || env.Seen.Path != "data/seen_ads.json" || env.Seen.TTL != 0 {
		t.Errorf("Seen = %+v", env.Seen)
	}
	if env.Poll.Interval != 10*time.Minute || env.Poll.RecoveryInterval != time.Minute {
		t.Errorf("Poll = %+v", env.Poll)
	}
	if env.HTTP.Timeout != 15*time.Second || env.HTTP.Attempts != 1 {
		t.Errorf("HTTP = %+v", env.HTTP)
	}
	if env.NotifyChannel != ChannelTelegram {
		t.Errorf("NotifyChannel = %q", env.NotifyChannel)
	}
	if env.Email.Subject != "Nowe ogłoszenie" {
		t.Errorf("Email.Subject = %q", env.Email.Subject)
	}
	if env.Telegram.APIBase != "https://api.telegram.org" {
		t.Errorf("Telegram.APIBase = %q", env.Telegram.APIBase)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SEEN_STORE", "SQLite")
	t.Setenv("SEEN_STORE_PATH", "")
	t.Setenv("SEEN_TTL", "2w")
	t.Setenv("POLL_INTERVAL", "1d")
	t.Setenv("RECOVERY_INTERVAL", "not-a-duration")
	t.Setenv("RUN_ONCE", "yes")
	t.Setenv("TG_TOKEN", " abc ")

	env := LoadEnv()
	if env.Seen.Backend != SeenStoreSQLite || env.Seen.Path != "data/seen_ads.db" {
		t.Errorf("Seen = %+v", env.Seen)
	}
	if env.Seen.TTL != 14*24*time.Hour {
		t.Errorf("Seen.TTL = %v", env.Seen.TTL)
	}
	if env.Poll.Interval != 24*time.Hour {
		t.Errorf("Poll.Interval = %v", env.Poll.Interval)
	}
	if env.Poll.RecoveryInterval != time.Minute {
		t.Errorf("invalid RECOVERY_INTERVAL should fall back, got %v", env.Poll.RecoveryInterval)
	}
	if !env.RunOnce {
		t.Errorf("RunOnce = false")
	}
	if env.Telegram.Token != "abc" {
		t.Errorf("Telegram.Token = %q", env.Telegram.Token)
	}
}

func TestEnvList(t *testing.T) {
	t.Setenv("KEYWORDS", " sti, wrx ,,")
	if got := envList("KEYWORDS"); !reflect.DeepEqual(got, []string{"sti", "wrx"}) {
		t.Fatalf("envList() = %v", got)
	}
	t.Setenv("KEYWORDS", "")
	if got := envList("KEYWORDS"); got == nil || len(got) != 0 {
		t.Fatalf("envList() of blank var = %#v, want empty non-nil", got)
	}
	if got := envList("ADHUNTER_UNSET_LIST"); got != nil {
		t.Fatalf("envList() of unset var = %#v, want nil", got)
	}
}

func TestParseHeaders(t *testing.T) {
	got := parseHeaders("a=1, b = 2 ,bad, c=")
	want := map[string]string{"a": "1", "b": "2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("parseHeaders() = %v, want %v", got, want)
	}
}
