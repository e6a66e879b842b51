package filter

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/bakkerme/adhunter/internal/core"
)

// Rule evaluates an expr-lang expression against a record, e.g.
//
//	price != "" && title.length > 3
//
// Records for which evaluation fails are kept.
type Rule struct {
	source  string
	program *vm.Program
	logger  *slog.Logger
}

func NewRule(source string, logger *slog.Logger) (*Rule, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("filter rule expression is required")
	}
	program, err := expr.Compile(source, expr.Env(ruleEnv(&core.AdRecord{})))
	if err != nil {
		return nil, fmt.Errorf("compile filter rule: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rule{source: source, program: program, logger: logger}, nil
}

func (r *Rule) IsRelevant(record *core.AdRecord) bool {
	if record == nil {
		return false
	}
	result, err := expr.Run(r.program, ruleEnv(record))
	if err != nil {
		r.logger.Warn("filter rule failed, keeping ad", "rule", r.source, "identity", record.Identity, "error", err)
		return true
	}
	matched, ok := result.(bool)
	if !ok {
		r.logger.Warn("filter rule did not return bool, keeping ad", "rule", r.source, "identity", record.Identity, "result", result)
		return true
	}
	return matched
}

func ruleEnv(record *core.AdRecord) map[string]interface{} {
	title := record.ExtractedTitle()
	return map[string]interface{}{
		"title": map[string]interface{}{
			"value":  title,
			"length": len([]rune(title)),
		},
		"description": map[string]interface{}{
			"value":  record.Description,
			"length": len([]rune(record.Description)),
		},
		"price":     record.Price,
		"url":       record.URL,
		"photo":     record.PhotoURL,
		"has_photo": record.HasPhoto(),
		"site":      record.Site,
	}
}
