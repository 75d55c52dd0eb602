package rules

import (
	"regexp"
	"strings"

	"github.com/abdidvp/lintfix/internal/domain"
)

// LineRange spans a line from its first non-blank character to its end.
func LineRange(lines []string, lineNb int) *domain.Range {
	line, ok := lineAt(lines, lineNb)
	if !ok {
		return nil
	}
	start := len(line) - len(strings.TrimLeft(line, " \t"))
	return &domain.Range{
		Start: domain.Position{Line: lineNb, Character: start},
		End:   domain.Position{Line: lineNb, Character: len(line)},
	}
}

// wholeLine is the RangeFunc form of LineRange.
func wholeLine(lines []string, lineNb int, _ domain.Vars) *domain.Range {
	return LineRange(lines, lineNb)
}

// regexRange returns a RangeFunc covering the first match of re on the
// violation line, falling back to the whole line.
func regexRange(re *regexp.Regexp) domain.RangeFunc {
	return func(lines []string, lineNb int, _ domain.Vars) *domain.Range {
		line, ok := lineAt(lines, lineNb)
		if !ok {
			return nil
		}
		loc := re.FindStringIndex(line)
		if loc == nil {
			return LineRange(lines, lineNb)
		}
		return &domain.Range{
			Start: domain.Position{Line: lineNb, Character: loc[0]},
			End:   domain.Position{Line: lineNb, Character: loc[1]},
		}
	}
}

// varRange covers the first occurrence of the named variable's value.
func varRange(name string) domain.RangeFunc {
	return func(lines []string, lineNb int, vars domain.Vars) *domain.Range {
		line, ok := lineAt(lines, lineNb)
		if !ok {
			return nil
		}
		text := vars.String(name)
		idx := -1
		if text != "" {
			idx = strings.Index(line, text)
		}
		if idx < 0 {
			return LineRange(lines, lineNb)
		}
		return &domain.Range{
			Start: domain.Position{Line: lineNb, Character: idx},
			End:   domain.Position{Line: lineNb, Character: idx + len(text)},
		}
	}
}

// trailingRange covers the whitespace at the end of the line.
func trailingRange(lines []string, lineNb int, _ domain.Vars) *domain.Range {
	line, ok := lineAt(lines, lineNb)
	if !ok {
		return nil
	}
	trimmed := strings.TrimRight(line, " \t")
	return &domain.Range{
		Start: domain.Position{Line: lineNb, Character: len(trimmed)},
		End:   domain.Position{Line: lineNb, Character: len(line)},
	}
}

// leadingRange covers the indentation of the line.
func leadingRange(lines []string, lineNb int, _ domain.Vars) *domain.Range {
	line, ok := lineAt(lines, lineNb)
	if !ok {
		return nil
	}
	return &domain.Range{
		Start: domain.Position{Line: lineNb, Character: 0},
		End:   domain.Position{Line: lineNb, Character: len(line) - len(strings.TrimLeft(line, " \t"))},
	}
}

func lineAt(lines []string, lineNb int) (string, bool) {
	if lineNb < 1 || lineNb > len(lines) {
		return "", false
	}
	return lines[lineNb-1], true
}
