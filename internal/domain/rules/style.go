package rules

import (
	"regexp"
	"strings"

	"github.com/abdidvp/lintfix/internal/domain"
)

var forHeader = regexp.MustCompile(`\bfor\s*\(`)

func styleRules() []*domain.RuleDefinition {
	return []*domain.RuleDefinition{
		{
			Name:     "UnnecessarySemicolon",
			Range:    regexRange(regexp.MustCompile(`;\s*$`)),
			Triggers: []string{"TrailingWhitespace"},
			Fix: &domain.Fix{
				Kind: domain.FixFunction,
				Line: dropTrailingSemicolons,
			},
		},
		{
			Name: "UnnecessaryGString",
			Variables: []domain.VariableExtractor{
				{Name: "STRING", Pattern: regexp.MustCompile(`The String '(.*)' can be wrapped`), Type: domain.VarString},
			},
			Range: varRange("STRING"),
			Fix: &domain.Fix{
				Kind:   domain.FixTemplate,
				Before: `"{{STRING}}"`,
				After:  `'{{STRING}}'`,
			},
		},
	}
}

// dropTrailingSemicolons removes semicolons ending a statement. Whitespace
// in front of them is left for TrailingWhitespace.
func dropTrailingSemicolons(line string, _ domain.Vars) (string, error) {
	if forHeader.MatchString(line) {
		return line, nil
	}
	trimmed := strings.TrimRight(line, " \t")
	if !strings.HasSuffix(trimmed, ";") {
		return line, nil
	}
	return strings.TrimRight(trimmed, ";"), nil
}
