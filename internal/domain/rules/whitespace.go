package rules

import (
	"errors"
	"regexp"
	"strings"

	"github.com/abdidvp/lintfix/internal/domain"
)

const tabWidth = 4

func whitespaceRules() []*domain.RuleDefinition {
	return []*domain.RuleDefinition{
		{
			Name:  "TrailingWhitespace",
			Range: trailingRange,
			Fix: &domain.Fix{
				Kind: domain.FixFunction,
				Line: func(line string, _ domain.Vars) (string, error) {
					return strings.TrimRight(line, " \t"), nil
				},
			},
		},
		{
			Name:  "NoTabCharacter",
			Scope: domain.ScopeFile,
			Fix: &domain.Fix{
				Kind: domain.FixFunction,
				File: replaceTabs,
			},
		},
		{
			Name:  "Indentation",
			Range: leadingRange,
			Variables: []domain.VariableExtractor{
				{Name: "EXPECTED", Pattern: regexp.MustCompile(`Expected column (\d+)`), Type: domain.VarNumber},
				{Name: "FOUND", Pattern: regexp.MustCompile(`but was (\d+)`), Type: domain.VarNumber},
			},
			FixesSameErrorOnSameLine: true,
			Fix: &domain.Fix{
				Kind: domain.FixFunction,
				Line: reindent,
			},
		},
		{
			Name:  "ConsecutiveBlankLines",
			Scope: domain.ScopeFile,
			Fix: &domain.Fix{
				Kind: domain.FixFunction,
				File: collapseBlankLines,
			},
		},
		{
			Name:  "FileEndsWithoutNewline",
			Scope: domain.ScopeFile,
			Fix: &domain.Fix{
				Kind: domain.FixFunction,
				File: func(lines []string, _ int, _ domain.Vars) ([]string, error) {
					if len(lines) == 0 || lines[len(lines)-1] == "" {
						return lines, nil
					}
					return append(append([]string(nil), lines...), ""), nil
				},
			},
		},
		{
			Name:  "BlankLineBeforePackage",
			Scope: domain.ScopeFile,
			Fix: &domain.Fix{
				Kind: domain.FixFunction,
				File: func(lines []string, _ int, _ domain.Vars) ([]string, error) {
					i := 0
					for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
						i++
					}
					if i == 0 || i == len(lines) || !strings.HasPrefix(strings.TrimSpace(lines[i]), "package ") {
						return lines, nil
					}
					return append([]string(nil), lines[i:]...), nil
				},
			},
		},
	}
}

func reindent(line string, vars domain.Vars) (string, error) {
	expected, ok := vars.Int("EXPECTED")
	if !ok || expected < 1 {
		return line, errors.New("missing expected column")
	}
	trimmed := strings.TrimLeft(line, " \t")
	if trimmed == "" {
		return line, nil
	}
	return strings.Repeat(" ", expected-1) + trimmed, nil
}

func replaceTabs(lines []string, _ int, _ domain.Vars) ([]string, error) {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.ReplaceAll(l, "\t", strings.Repeat(" ", tabWidth))
	}
	return out, nil
}

// collapseBlankLines reduces every run of blank lines to one. The whole file
// is normalized whichever run was reported. The empty element after a final
// newline is not part of any run.
func collapseBlankLines(lines []string, _ int, _ domain.Vars) ([]string, error) {
	body := lines
	tail := []string(nil)
	if n := len(lines); n > 0 && lines[n-1] == "" {
		body, tail = lines[:n-1], lines[n-1:]
	}

	blank := func(i int) bool { return strings.TrimSpace(body[i]) == "" }

	out := make([]string, 0, len(lines))
	for i := 0; i < len(body); i++ {
		if !blank(i) {
			out = append(out, body[i])
			continue
		}
		j := i
		for j+1 < len(body) && blank(j+1) {
			j++
		}
		if j > i {
			out = append(out, "")
		} else {
			out = append(out, body[i])
		}
		i = j
	}
	return append(out, tail...), nil
}
