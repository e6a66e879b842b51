// Package identity canonicalizes ad references into stable deduplication keys.
package identity

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/bakkerme/adhunter/internal/core"
)

// Normalizer resolves ad references against a site origin and strips the parts
// of a URL that do not identify the ad (query string and fragment).
type Normalizer struct {
	base   *url.URL
	params map[string]struct{}
	logger *slog.Logger
}

// NewNormalizer creates a normalizer for references discovered on baseURL.
// An empty baseURL yields a normalizer that leaves scheme-less references
// untouched, which suits providers that hand out opaque ids.
func NewNormalizer(baseURL string, logger *slog.Logger) (*Normalizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Normalizer{logger: logger}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return n, nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	n.base = base
	return n, nil
}

// KeepParams marks query parameters that are part of an ad's identity, for
// sites that address offers as details.html?id=123. All other parameters are
// still dropped.
func (n *Normalizer) KeepParams(names ...string) *Normalizer {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if n.params == nil {
			n.params = make(map[string]struct{})
		}
		n.params[name] = struct{}{}
	}
	return n
}

// Normalize returns the identity key for ref. It never fails: references that
// cannot be parsed are returned unchanged (trimmed) as a degraded identity.
func (n *Normalizer) Normalize(ref core.AdReference) core.IdentityKey {
	raw := strings.TrimSpace(string(ref))
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		n.degraded(raw, err.Error())
		return core.IdentityKey(raw)
	}
	if u.Scheme == "" && u.Host == "" {
		if n.base == nil {
			return core.IdentityKey(raw)
		}
		u = n.base.ResolveReference(u)
	} else if u.Scheme == "" {
		// Protocol-relative reference ("//host/path").
		scheme := "https"
		if n.base != nil {
			scheme = n.base.Scheme
		}
		u.Scheme = scheme
	}
	if u.Opaque != "" || u.Host == "" {
		n.degraded(raw, "not a hierarchical url")
		return core.IdentityKey(raw)
	}

	canonical := url.URL{
		Scheme:  strings.ToLower(u.Scheme),
		Host:    strings.ToLower(u.Host),
		Path:    u.Path,
		RawPath: u.RawPath,
	}
	if canonical.Path == "" {
		canonical.Path = "/"
	}
	if len(n.params) > 0 {
		canonical.RawQuery = n.identityQuery(u.Query())
	}
	return core.IdentityKey(canonical.String())
}

// URL resolves ref against the base origin and returns an absolute URL suitable
// for fetching. Unlike Normalize it keeps the query string.
func (n *Normalizer) URL(ref core.AdReference) (string, error) {
	raw := strings.TrimSpace(string(ref))
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse reference %q: %w", raw, err)
	}
	if n.base != nil {
		u = n.base.ResolveReference(u)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("reference %q does not resolve to an absolute url", raw)
	}
	u.Fragment = ""
	return u.String(), nil
}

func (n *Normalizer) identityQuery(query url.Values) string {
	kept := url.Values{}
	for name, values := range query {
		if _, ok := n.params[name]; ok {
			kept[name] = values
		}
	}
	return kept.Encode()
}

func (n *Normalizer) degraded(raw, reason string) {
	n.logger.Warn("using degraded ad identity", "reference", raw, "reason", reason)
}
