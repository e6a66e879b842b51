// Package filter decides whether an extracted ad is worth a notification.
package filter

import (
	"strings"

	"github.com/bakkerme/adhunter/internal/core"
)

// Keywords accepts a record when any keyword occurs, case-insensitively, in
// its title or description. The missing-title placeholder never matches. An
// empty keyword set accepts everything.
type Keywords struct {
	keywords []string
}

func NewKeywords(keywords []string) *Keywords {
	k := &Keywords{}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			k.keywords = append(k.keywords, kw)
		}
	}
	return k
}

func (k *Keywords) IsRelevant(record *core.AdRecord) bool {
	if record == nil {
		return false
	}
	if len(k.keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(record.ExtractedTitle() + "\n" + record.Description)
	for _, kw := range k.keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// All accepts a record only when every filter does.
type All []core.Filter

func (a All) IsRelevant(record *core.AdRecord) bool {
	for _, f := range a {
		if !f.IsRelevant(record) {
			return false
		}
	}
	return true
}
