package detail

import (
	"encoding/json"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/PuerkitoBio/goquery"
)

// Fields holds whatever a layer managed to read. Empty means "not found".
type Fields struct {
	Title       string
	Price       string
	Photo       string
	Description string
}

// merge fills the empty fields of f from other.
func (f *Fields) merge(other Fields) {
	if f.Title == "" {
		f.Title = other.Title
	}
	if f.Price == "" {
		f.Price = other.Price
	}
	if f.Photo == "" {
		f.Photo = other.Photo
	}
	if f.Description == "" {
		f.Description = other.Description
	}
}

func (f Fields) complete() bool {
	return f.Title != "" && f.Price != "" && f.Photo != "" && f.Description != ""
}

// Layer reads ad fields from a parsed detail page. Layers are consulted in
// order and each field keeps the first non-empty value.
type Layer interface {
	Name() string
	Extract(doc *goquery.Document) Fields
}

// Selectors lists CSS selectors per field for the structural layer. The first
// selector that yields a non-empty value wins.
type Selectors struct {
	Title       []string `yaml:"title"`
	Price       []string `yaml:"price"`
	Photo       []string `yaml:"photo"`
	Description []string `yaml:"description"`
}

// DefaultSelectors cover the common markup on Otomoto and mobile.de offers.
var DefaultSelectors = Selectors{
	Title:       []string{"h1.offer-title", "[data-testid='ad-title']", "h1[data-testid]"},
	Price:       []string{"[data-testid='ad-price']", ".offer-price__number", "[data-testid='prime-price']", ".price"},
	Photo:       []string{"[data-testid='photo-gallery'] img", ".photo-item img", "img.gallery-image"},
	Description: []string{"[data-testid='content-description-section']", ".offer-description__description", "[data-testid='ad-description']"},
}

// StructuralLayer reads fields from the site's own markup.
type StructuralLayer struct {
	Selectors Selectors
}

func (StructuralLayer) Name() string { return "structural" }

func (l StructuralLayer) Extract(doc *goquery.Document) Fields {
	var f Fields
	for _, sel := range l.Selectors.Title {
		if f.Title = collapse(doc.Find(sel).First().Text()); f.Title != "" {
			break
		}
	}
	for _, sel := range l.Selectors.Price {
		if f.Price = collapse(doc.Find(sel).First().Text()); f.Price != "" {
			break
		}
	}
	for _, sel := range l.Selectors.Photo {
		node := doc.Find(sel).First()
		if f.Photo = firstAttr(node, "src", "data-src", "content", "href"); f.Photo != "" {
			break
		}
	}
	for _, sel := range l.Selectors.Description {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if f.Description = describe(node); f.Description != "" {
			break
		}
	}
	return f
}

// MetadataLayer reads OpenGraph and product meta tags.
type MetadataLayer struct{}

func (MetadataLayer) Name() string { return "metadata" }

func (MetadataLayer) Extract(doc *goquery.Document) Fields {
	f := Fields{
		Title:       meta(doc, "og:title"),
		Photo:       meta(doc, "og:image", "og:image:url", "twitter:image"),
		Description: meta(doc, "og:description", "description"),
	}
	if amount := meta(doc, "product:price:amount"); amount != "" {
		f.Price = joinPrice(amount, meta(doc, "product:price:currency"))
	} else if amount := meta(doc, "og:price:amount"); amount != "" {
		f.Price = joinPrice(amount, meta(doc, "og:price:currency"))
	}
	return f
}

// StructuredDataLayer reads schema.org JSON-LD blocks.
type StructuredDataLayer struct{}

func (StructuredDataLayer) Name() string { return "structured-data" }

func (StructuredDataLayer) Extract(doc *goquery.Document) Fields {
	var f Fields
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		dec := json.NewDecoder(strings.NewReader(s.Text()))
		dec.UseNumber()
		var data any
		if err := dec.Decode(&data); err != nil {
			return true
		}
		for _, node := range flattenLD(data) {
			f.merge(ldFields(node))
		}
		return !f.complete()
	})
	return f
}

// HeadingLayer is the last resort for the title: first h1, then <title>.
type HeadingLayer struct{}

func (HeadingLayer) Name() string { return "heading" }

func (HeadingLayer) Extract(doc *goquery.Document) Fields {
	title := collapse(doc.Find("h1").First().Text())
	if title == "" {
		title = collapse(doc.Find("title").First().Text())
	}
	return Fields{Title: title}
}

// DefaultLayers returns the standard chain: structural, metadata, structured
// data, heading.
func DefaultLayers(selectors Selectors) []Layer {
	return []Layer{
		StructuralLayer{Selectors: selectors},
		MetadataLayer{},
		StructuredDataLayer{},
		HeadingLayer{},
	}
}

func meta(doc *goquery.Document, names ...string) string {
	for _, name := range names {
		for _, attr := range []string{"property", "name", "itemprop"} {
			v, ok := doc.Find(`meta[` + attr + `="` + name + `"]`).First().Attr("content")
			if ok {
				if v = strings.TrimSpace(v); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

func flattenLD(v any) []map[string]any {
	switch t := v.(type) {
	case []any:
		var out []map[string]any
		for _, item := range t {
			out = append(out, flattenLD(item)...)
		}
		return out
	case map[string]any:
		out := []map[string]any{t}
		if graph, ok := t["@graph"]; ok {
			out = append(out, flattenLD(graph)...)
		}
		return out
	default:
		return nil
	}
}

func ldFields(node map[string]any) Fields {
	f := Fields{
		Title:       collapse(ldString(node["name"])),
		Description: strings.TrimSpace(ldString(node["description"])),
		Photo:       ldImage(node["image"]),
	}
	offers := node["offers"]
	if list, ok := offers.([]any); ok && len(list) > 0 {
		offers = list[0]
	}
	if offer, ok := offers.(map[string]any); ok {
		price := ldString(offer["price"])
		if price == "" {
			if spec, ok := offer["priceSpecification"].(map[string]any); ok {
				price = ldString(spec["price"])
			}
		}
		if price != "" {
			f.Price = joinPrice(price, ldString(offer["priceCurrency"]))
		}
	}
	return f
}

func ldString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func ldImage(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		for _, item := range t {
			if s := ldImage(item); s != "" {
				return s
			}
		}
	case map[string]any:
		if s := ldString(t["url"]); s != "" {
			return s
		}
		return ldString(t["contentUrl"])
	}
	return ""
}

func joinPrice(amount, currency string) string {
	amount = strings.TrimSpace(amount)
	currency = strings.TrimSpace(currency)
	if currency == "" {
		return amount
	}
	return amount + " " + currency
}

func describe(node *goquery.Selection) string {
	raw, err := node.Html()
	if err != nil || strings.TrimSpace(raw) == "" {
		return strings.TrimSpace(node.Text())
	}
	md, err := htmlToMarkdown(raw)
	if err != nil {
		return strings.TrimSpace(node.Text())
	}
	return md
}

func htmlToMarkdown(html string) (string, error) {
	if !strings.Contains(html, "<") {
		return strings.TrimSpace(html), nil
	}
	conv := converter.NewConverter(
		converter.WithEscapeMode("smart"),
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
	md, err := conv.ConvertString(html)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}

func firstAttr(sel *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := sel.Attr(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
