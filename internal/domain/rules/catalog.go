package rules

import (
	"regexp"

	"github.com/abdidvp/lintfix/internal/domain"
)

// Catalog returns fresh copies of every built-in rule definition.
func Catalog() []*domain.RuleDefinition {
	var defs []*domain.RuleDefinition
	defs = append(defs, spacingRules()...)
	defs = append(defs, whitespaceRules()...)
	defs = append(defs, importRules()...)
	defs = append(defs, styleRules()...)
	defs = append(defs, reportOnlyRules()...)
	return defs
}

// reportOnlyRules have no fix; they exist so their violations get a
// precise range.
func reportOnlyRules() []*domain.RuleDefinition {
	return []*domain.RuleDefinition{
		{Name: "LineLength", Range: wholeLine},
		{Name: "CatchException", Range: regexRange(regexp.MustCompile(`catch\s*\(\s*Exception\b[^)]*\)`))},
		{Name: "EmptyMethod", Range: wholeLine},
		{Name: "MethodSize", Range: wholeLine},
		{
			Name: "VariableName",
			Variables: []domain.VariableExtractor{
				{Name: "NAME", Pattern: regexp.MustCompile(`Variable named (\S+) in`), Type: domain.VarString},
			},
			Range: varRange("NAME"),
		},
	}
}
