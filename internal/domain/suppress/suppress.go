// Package suppress removes violations silenced by inline comment
// directives:
//
//	// lintfix-disable Rule, Other
//	// lintfix-enable Rule, Other
//	x = 1 // lintfix-disable-line Rule
//	// lintfix-disable-next-line Rule
//
// A directive without a rule list (or listing "all") applies to every rule.
package suppress

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/abdidvp/lintfix/internal/domain"
)

// Longer keywords first: "disable" would otherwise swallow "disable-line".
var directive = regexp.MustCompile(`lintfix-(disable-next-line|disable-line|disable|enable)\b(.*)`)

var ruleName = regexp.MustCompile(`^\w+$`)

// RuleSet is the set of rules a directive names. Nil means all rules.
type RuleSet map[string]bool

func parseRuleSet(raw string) RuleSet {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, "*/"); i >= 0 {
		raw = raw[:i]
	}
	set := RuleSet{}
	for _, f := range strings.FieldsFunc(raw, func(r rune) bool { return strings.ContainsRune(", \t[]", r) }) {
		if !ruleName.MatchString(f) {
			break
		}
		if strings.EqualFold(f, "all") {
			return nil
		}
		set[strings.ToLower(f)] = true
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// Matches reports whether the set covers rule.
func (s RuleSet) Matches(rule string) bool {
	return s == nil || s[strings.ToLower(rule)]
}

// Equal compares two sets case-insensitively, ignoring order.
func (s RuleSet) Equal(o RuleSet) bool {
	if s == nil || o == nil {
		return s == nil && o == nil
	}
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if !o[k] {
			return false
		}
	}
	return true
}

func (s RuleSet) String() string {
	if s == nil {
		return "all"
	}
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// Block is a disabled span, both ends inclusive and 1-based.
type Block struct {
	Start, End int
	Rules      RuleSet
}

// Directives are the suppressions found in one file.
type Directives struct {
	Blocks   []Block
	SameLine map[int][]RuleSet
	NextLine map[int][]RuleSet
}

// Filter scans sources for directives and drops suppressed violations.
type Filter struct {
	logger *slog.Logger
}

// New creates a Filter. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{logger: logger}
}

// Scan collects the directives of a file in one pass over its lines.
func (f *Filter) Scan(file string, lines []string) Directives {
	d := Directives{SameLine: map[int][]RuleSet{}, NextLine: map[int][]RuleSet{}}

	type enable struct {
		line  int
		rules RuleSet
	}
	var opens []Block
	var enables []enable

	for i, l := range lines {
		lineNb := i + 1
		m := directive.FindStringSubmatchIndex(l)
		if m == nil || !inComment(l[:m[0]]) {
			continue
		}
		rules := parseRuleSet(l[m[4]:m[5]])
		switch l[m[2]:m[3]] {
		case "disable":
			opens = append(opens, Block{Start: lineNb, Rules: rules})
		case "enable":
			enables = append(enables, enable{line: lineNb, rules: rules})
		case "disable-line":
			d.SameLine[lineNb] = append(d.SameLine[lineNb], rules)
		case "disable-next-line":
			d.NextLine[lineNb] = append(d.NextLine[lineNb], rules)
		}
	}

	for _, b := range opens {
		b.End = -1
		for _, e := range enables {
			if e.line >= b.Start && e.rules.Equal(b.Rules) {
				b.End = e.line
				break
			}
		}
		if b.End < 0 {
			b.End = len(lines)
			f.logger.Warn("disable directive never re-enabled",
				"file", file,
				"line", b.Start,
				"rules", b.Rules.String())
		}
		d.Blocks = append(d.Blocks, b)
	}
	return d
}

// Suppressed reports whether a violation of rule on line is silenced.
func (d Directives) Suppressed(rule string, line int) bool {
	for _, b := range d.Blocks {
		if line >= b.Start && line <= b.End && b.Rules.Matches(rule) {
			return true
		}
	}
	for _, s := range d.SameLine[line] {
		if s.Matches(rule) {
			return true
		}
	}
	for _, s := range d.NextLine[line-1] {
		if s.Matches(rule) {
			return true
		}
	}
	return false
}

// Apply returns the violations of a file that are not suppressed.
func (f *Filter) Apply(file string, lines []string, violations []*domain.Violation) []*domain.Violation {
	d := f.Scan(file, lines)
	if len(d.Blocks) == 0 && len(d.SameLine) == 0 && len(d.NextLine) == 0 {
		return violations
	}
	kept := make([]*domain.Violation, 0, len(violations))
	for _, v := range violations {
		if !d.Suppressed(v.Rule, v.Line) {
			kept = append(kept, v)
		}
	}
	return kept
}

func inComment(prefix string) bool {
	if strings.Contains(prefix, "//") || strings.Contains(prefix, "/*") {
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(prefix), "*")
}
