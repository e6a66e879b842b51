package identity

import (
	"testing"

	"github.com/bakkerme/adhunter/internal/core"
)

func newTestNormalizer(t *testing.T, base string) *Normalizer {
	t.Helper()
	n, err := NewNormalizer(base, nil)
	if err != nil {
		t.Fatalf("NewNormalizer(%q) error = %v", base, err)
	}
	return n
}

func TestNormalize(t *testing.T) {
	n := newTestNormalizer(t, "https://www.otomoto.pl")

	cases := []struct {
		in   string
		want core.IdentityKey
	}{
		{"https://www.otomoto.pl/oferta/subaru-sti-ID6Gx1.html?utm=1#gallery", "https://www.otomoto.pl/oferta/subaru-sti-ID6Gx1.html"},
		{"/oferta/subaru-sti-ID6Gx1.html?s=b", "https://www.otomoto.pl/oferta/subaru-sti-ID6Gx1.html"},
		{"  HTTPS://WWW.Otomoto.PL/oferta/x  ", "https://www.otomoto.pl/oferta/x"},
		{"//www.otomoto.pl/oferta/y", "https://www.otomoto.pl/oferta/y"},
		{"https://www.otomoto.pl", "https://www.otomoto.pl/"},
		{"javascript:void(0)", "javascript:void(0)"},
		{"http://[::1", "http://[::1"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := n.Normalize(core.AdReference(tc.in)); got != tc.want {
			t.Fatalf("Normalize(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeCollapsesQueryVariants(t *testing.T) {
	n := newTestNormalizer(t, "https://site")
	a := n.Normalize("https://site/x/1?s=a")
	b := n.Normalize("https://site/x/1?s=b")
	if a != b {
		t.Fatalf("expected same identity, got %q and %q", a, b)
	}
}

func TestNormalizeWithoutBaseKeepsOpaqueIDs(t *testing.T) {
	n := newTestNormalizer(t, "")
	if got := n.Normalize(" 6123456789 "); got != "6123456789" {
		t.Fatalf("Normalize(opaque id)=%q, want %q", got, "6123456789")
	}
	if got := n.Normalize("https://suchen.mobile.de/fahrzeuge/details.html?id=42"); got != "https://suchen.mobile.de/fahrzeuge/details.html" {
		t.Fatalf("Normalize(absolute)=%q", got)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := newTestNormalizer(t, "https://www.otomoto.pl/osobowe/")
	inputs := []string{
		"https://www.otomoto.pl/oferta/a b?x=1",
		"../oferta/relative?x=2",
		"oferta/plain",
		"https://user:pw@Example.com:8080/a%2Fb?q#f",
		"mailto:someone@example.com",
		"http://[::1",
		"\x7fbad",
		"?only=query",
		"#only-fragment",
		"https://example.com/%zz",
		"ftp://files.example.com/pub",
	}
	for _, in := range inputs {
		once := n.Normalize(core.AdReference(in))
		twice := n.Normalize(core.AdReference(once))
		if once != twice {
			t.Fatalf("normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func FuzzNormalizeIdempotent(f *testing.F) {
	for _, seed := range []string{"https://site/x/1?s=a", "/oferta/1", "http://[::1", "id-123", "//host/p#f"} {
		f.Add(seed)
	}
	n, err := NewNormalizer("https://site", nil)
	if err != nil {
		f.Fatalf("NewNormalizer error = %v", err)
	}
	f.Fuzz(func(t *testing.T, in string) {
		once := n.Normalize(core.AdReference(in))
		if twice := n.Normalize(core.AdReference(once)); twice != once {
			t.Fatalf("normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	})
}

func TestURLKeepsQuery(t *testing.T) {
	n := newTestNormalizer(t, "https://suchen.mobile.de")
	got, err := n.URL("/fahrzeuge/details.html?id=42#top")
	if err != nil {
		t.Fatalf("URL() error = %v", err)
	}
	if got != "https://suchen.mobile.de/fahrzeuge/details.html?id=42" {
		t.Fatalf("URL()=%q", got)
	}
}

func TestNewNormalizerRejectsRelativeBase(t *testing.T) {
	if _, err := NewNormalizer("/relative", nil); err == nil {
		t.Fatalf("expected error for relative base url")
	}
}

func TestNormalizeKeepsIdentityParams(t *testing.T) {
	n := newTestNormalizer(t, "https://suchen.mobile.de").KeepParams("id", " ")

	a := n.Normalize("/fahrzeuge/details.html?id=42&action=topOfPage&searchId=abc")
	b := n.Normalize("https://suchen.mobile.de/fahrzeuge/details.html?searchId=xyz&id=42")
	c := n.Normalize("https://suchen.mobile.de/fahrzeuge/details.html?id=43")
	if a != "https://suchen.mobile.de/fahrzeuge/details.html?id=42" {
		t.Fatalf("Normalize()=%q", a)
	}
	if a != b {
		t.Fatalf("expected same identity, got %q and %q", a, b)
	}
	if a == c {
		t.Fatalf("expected different ads to keep distinct identities")
	}
	if again := n.Normalize(core.AdReference(a)); again != a {
		t.Fatalf("Normalize not idempotent: %q -> %q", a, again)
	}
}
