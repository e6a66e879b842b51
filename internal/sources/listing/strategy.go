package listing

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/bakkerme/adhunter/internal/core"
	"github.com/bakkerme/adhunter/internal/sources/page"
)

// Strategy extracts ad references from a listing page. Strategies are tried in
// order and the first one that returns anything wins.
type Strategy interface {
	Name() string
	Extract(p *page.Page) []core.AdReference
}

// StructuralStrategy selects anchor-like elements marked as listing entries.
type StructuralStrategy struct {
	Selector string
}

func (s StructuralStrategy) Name() string { return "structural" }

func (s StructuralStrategy) Extract(p *page.Page) []core.AdReference {
	if strings.TrimSpace(s.Selector) == "" {
		return nil
	}
	doc, err := p.Document()
	if err != nil {
		return nil
	}
	var refs []core.AdReference
	doc.Find(s.Selector).Each(func(_ int, sel *goquery.Selection) {
		href := firstAttr(sel, "href", "data-href")
		if !usableHref(href) {
			return
		}
		refs = append(refs, core.AdReference(href))
	})
	return refs
}

// PatternStrategy scans the raw body for substrings shaped like ad links. It
// covers pages where the structural markup is missing, e.g. client-rendered
// listings that only ship their data as inline JSON.
type PatternStrategy struct {
	Pattern *regexp.Regexp
}

func (s PatternStrategy) Name() string { return "pattern" }

func (s PatternStrategy) Extract(p *page.Page) []core.AdReference {
	if s.Pattern == nil {
		return nil
	}
	var refs []core.AdReference
	for _, match := range s.Pattern.FindAllSubmatch(p.Body, -1) {
		raw := match[0]
		if len(match) > 1 && len(match[1]) > 0 {
			raw = match[1]
		}
		href := html.UnescapeString(string(raw))
		if !usableHref(href) {
			continue
		}
		refs = append(refs, core.AdReference(href))
	}
	return refs
}

// FeedStrategy reads item links when the listing endpoint serves RSS or Atom.
type FeedStrategy struct{}

func (FeedStrategy) Name() string { return "feed" }

func (FeedStrategy) Extract(p *page.Page) []core.AdReference {
	if !looksLikeFeed(p) {
		return nil
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(p.Body))
	if err != nil {
		return nil
	}
	refs := make([]core.AdReference, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := item.Link
		if link == "" && len(item.Links) > 0 {
			link = item.Links[0]
		}
		if !usableHref(link) {
			continue
		}
		refs = append(refs, core.AdReference(strings.TrimSpace(link)))
	}
	return refs
}

// DefaultPattern builds the fallback pattern for a site: any absolute or
// root-relative link containing adPath. It returns nil when adPath is empty.
func DefaultPattern(baseURL, adPath string) *regexp.Regexp {
	adPath = strings.TrimSpace(adPath)
	if adPath == "" {
		return nil
	}
	origin := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	expr := regexp.QuoteMeta(adPath) + `[^"'\s<>\\]+`
	if origin != "" {
		expr = `(?:` + regexp.QuoteMeta(origin) + `)?` + expr
	}
	return regexp.MustCompile(expr)
}

// DefaultStrategies returns the standard chain: structural, pattern, feed.
func DefaultStrategies(selector string, pattern *regexp.Regexp) []Strategy {
	return []Strategy{
		StructuralStrategy{Selector: selector},
		PatternStrategy{Pattern: pattern},
		FeedStrategy{},
	}
}

func looksLikeFeed(p *page.Page) bool {
	ct := strings.ToLower(p.ContentType)
	if strings.Contains(ct, "rss") || strings.Contains(ct, "atom") {
		return true
	}
	head := p.Body
	if len(head) > 512 {
		head = head[:512]
	}
	lower := bytes.ToLower(head)
	return bytes.Contains(lower, []byte("<rss")) || bytes.Contains(lower, []byte("<feed"))
}

func firstAttr(sel *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := sel.Attr(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func usableHref(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	lower := strings.ToLower(href)
	return !strings.HasPrefix(lower, "javascript:") && !strings.HasPrefix(lower, "mailto:")
}
