package rules

import (
	"regexp"
	"strings"

	"github.com/abdidvp/lintfix/internal/domain"
)

func spacingRules() []*domain.RuleDefinition {
	return []*domain.RuleDefinition{
		spaceAfterKeyword("SpaceAfterIf", "if"),
		spaceAfterKeyword("SpaceAfterFor", "for"),
		spaceAfterKeyword("SpaceAfterWhile", "while"),
		spaceAfterKeyword("SpaceAfterSwitch", "switch"),
		spaceAfterKeyword("SpaceAfterCatch", "catch"),
		{
			Name:  "SpaceAfterComma",
			Range: regexRange(regexp.MustCompile(`,\S`)),
			Fix: &domain.Fix{
				Kind:   domain.FixTemplate,
				Before: `,([^\s,])`,
				After:  `, ${1}`,
			},
		},
		{
			Name:  "SpaceBeforeOpeningBrace",
			Range: regexRange(regexp.MustCompile(`[^\s$]\{`)),
			Fix: &domain.Fix{
				Kind: domain.FixFunction,
				Line: spaceBeforeBrace,
			},
		},
	}
}

// spaceAfterKeyword builds a rule inserting exactly one space between a
// keyword and its opening parenthesis. The brace after the condition is
// checked alongside.
func spaceAfterKeyword(name, keyword string) *domain.RuleDefinition {
	return &domain.RuleDefinition{
		Name:     name,
		Range:    regexRange(regexp.MustCompile(`\b` + keyword + `\s*\(`)),
		Triggers: []string{"SpaceBeforeOpeningBrace"},
		Fix: &domain.Fix{
			Kind:   domain.FixTemplate,
			Before: `\b` + keyword + `(?:\(|\s{2,}\()`,
			After:  keyword + ` (`,
		},
	}
}

// spaceBeforeBrace adds a space before "{" unless it opens a GString
// interpolation or already follows whitespace or another brace.
func spaceBeforeBrace(line string, _ domain.Vars) (string, error) {
	var b strings.Builder
	inString := byte(0)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inString != 0:
			if c == '\\' && i+1 < len(line) {
				b.WriteByte(c)
				i++
				c = line[i]
			} else if c == inString {
				inString = 0
			}
		case c == '"' || c == '\'':
			inString = c
		case c == '{' && i > 0:
			prev := line[i-1]
			if prev != ' ' && prev != '\t' && prev != '$' && prev != '{' && prev != '(' {
				b.WriteByte(' ')
			}
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}
