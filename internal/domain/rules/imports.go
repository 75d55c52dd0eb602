package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/abdidvp/lintfix/internal/domain"
)

var importLine = regexp.MustCompile(`^\s*import\s+(static\s+)?([\w.*]+)(\s+as\s+\w+)?\s*;?\s*$`)

func importRules() []*domain.RuleDefinition {
	return []*domain.RuleDefinition{
		{
			Name:                  "DuplicateImport",
			Scope:                 domain.ScopeFile,
			Repeatable:            true,
			Range:                 wholeLine,
			TriggersAgainAfterFix: []string{"ConsecutiveBlankLines"},
			Fix: &domain.Fix{
				Kind: domain.FixFunction,
				File: removeDuplicateImport,
			},
		},
		{
			Name:       "UnnecessaryGroovyImport",
			Scope:      domain.ScopeFile,
			Repeatable: true,
			Range:      wholeLine,
			Variables: []domain.VariableExtractor{
				{Name: "IMPORT", Pattern: regexp.MustCompile(`The ([\w.*]+) import`), Type: domain.VarString},
			},
			TriggersAgainAfterFix: []string{"ConsecutiveBlankLines"},
			Fix: &domain.Fix{
				Kind: domain.FixFunction,
				File: removeImport("IMPORT"),
			},
		},
		{
			Name:       "UnusedImport",
			Scope:      domain.ScopeFile,
			Repeatable: true,
			Range:      varRange("CLASS"),
			Variables: []domain.VariableExtractor{
				{Name: "CLASS", Pattern: regexp.MustCompile(`The \[([\w.*]+)\] import`), Type: domain.VarString},
			},
			TriggersAgainAfterFix: []string{"ConsecutiveBlankLines"},
			Fix: &domain.Fix{
				Kind: domain.FixFunction,
				File: removeImport("CLASS"),
			},
		},
	}
}

// removeDuplicateImport drops the import at lineNb when the same import
// appears on an earlier line. Without a line it drops every repeat.
func removeDuplicateImport(lines []string, lineNb int, _ domain.Vars) ([]string, error) {
	seen := make(map[string]bool)
	out := make([]string, 0, len(lines))
	for i, l := range lines {
		m := importLine.FindStringSubmatch(l)
		if m == nil {
			out = append(out, l)
			continue
		}
		key := strings.Join(strings.Fields(strings.TrimSuffix(strings.TrimSpace(l), ";")), " ")
		if seen[key] && (lineNb == 0 || lineNb == i+1) {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	return out, nil
}

// removeImport removes the import line at lineNb when it imports the value of
// the named variable, or the first such import in the file otherwise.
func removeImport(varName string) domain.FileFixFunc {
	return func(lines []string, lineNb int, vars domain.Vars) ([]string, error) {
		target := vars.String(varName)
		matches := func(l string) bool {
			m := importLine.FindStringSubmatch(l)
			return m != nil && (target == "" || m[2] == target)
		}

		idx := -1
		if lineNb >= 1 && lineNb <= len(lines) && matches(lines[lineNb-1]) {
			idx = lineNb - 1
		} else if target != "" {
			for i, l := range lines {
				if matches(l) {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			return lines, fmt.Errorf("no import of %q found", target)
		}
		out := make([]string, 0, len(lines)-1)
		out = append(out, lines[:idx]...)
		return append(out, lines[idx+1:]...), nil
	}
}
