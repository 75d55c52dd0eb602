package fixer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/abdidvp/lintfix/internal/domain"
)

// applyLine runs a line-scoped fix. Panics raised by the fix are returned
// as errors.
func applyLine(fix *domain.Fix, line string, vars domain.Vars) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = line, fmt.Errorf("fix panicked: %v", r)
		}
	}()

	switch fix.Kind {
	case domain.FixTemplate:
		return applyTemplate(fix, line, vars)
	case domain.FixFunction:
		if fix.Line == nil {
			return line, fmt.Errorf("line fix function missing")
		}
		return fix.Line(line, vars)
	default:
		return line, fmt.Errorf("unknown fix kind %q", fix.Kind)
	}
}

// applyFile runs a file-scoped fix on a copy of lines.
func applyFile(fix *domain.Fix, lines []string, lineNb int, vars domain.Vars) (out []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = lines, fmt.Errorf("fix panicked: %v", r)
		}
	}()

	if fix.Kind != domain.FixFunction || fix.File == nil {
		return lines, fmt.Errorf("file fix function missing")
	}
	in := append([]string(nil), lines...)
	return fix.File(in, lineNb, vars)
}

func applyTemplate(fix *domain.Fix, line string, vars domain.Vars) (string, error) {
	before, err := substitute(fix.Before, vars, regexp.QuoteMeta)
	if err != nil {
		return line, err
	}
	re, err := regexp.Compile(before)
	if err != nil {
		return line, fmt.Errorf("compiling template: %w", err)
	}
	after, err := substitute(fix.After, vars, func(s string) string {
		return strings.ReplaceAll(s, "$", "$$")
	})
	if err != nil {
		return line, err
	}
	return re.ReplaceAllString(line, after), nil
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
