package fixer_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdidvp/lintfix/internal/domain"
	"github.com/abdidvp/lintfix/internal/domain/fixer"
	"github.com/abdidvp/lintfix/internal/domain/rules"
)

func split(src string) []string {
	lines, _ := fixer.SplitLines(src)
	return lines
}

func join(lines []string) string {
	return fixer.JoinLines(lines, "\n")
}

func fixedCount(vs []*domain.Violation) int {
	n := 0
	for _, v := range vs {
		if v.Fixed {
			n++
		}
	}
	return n
}

func TestFixFile_SpaceAfterIf(t *testing.T) {
	f := fixer.New(rules.Default(), nil)
	violations := []*domain.Violation{
		{ID: 0, Line: 1, Rule: "SpaceAfterIf", Severity: domain.SeverityInfo,
			Message: "The if keyword within class None is not followed by a single space"},
	}

	out := f.FixFile(fixer.FileTask{
		Key:        domain.SourceKey,
		Lines:      split("if(true) {\n    x = 1\n}\n"),
		Violations: violations,
	})

	assert.Equal(t, "if (true) {\n    x = 1\n}\n", join(out.Lines))
	assert.Equal(t, 1, fixedCount(violations))
	assert.True(t, violations[0].Fixed)
}

func TestFixFile_DuplicateImport(t *testing.T) {
	f := fixer.New(rules.Default(), nil)
	violations := []*domain.Violation{
		{ID: 7, Line: 2, Rule: "DuplicateImport", Message: "Duplicate import statement a.B"},
	}

	out := f.FixFile(fixer.FileTask{
		Lines:      split("import a.B\nimport a.B\n"),
		Violations: violations,
		Filter:     domain.NewRuleFilter([]string{"DuplicateImport"}),
	})

	assert.Equal(t, "import a.B\n", join(out.Lines))
	assert.True(t, violations[0].Fixed)
	assert.Equal(t, 1, out.FixedCount)
	assert.Equal(t, []string{"ConsecutiveBlankLines"}, out.AgainRules)
}

func TestFixFile_TwoDuplicateImportsAreBothRemoved(t *testing.T) {
	f := fixer.New(rules.Default(), nil)
	violations := []*domain.Violation{
		{ID: 1, Line: 2, Rule: "DuplicateImport"},
		{ID: 2, Line: 4, Rule: "DuplicateImport"},
	}

	out := f.FixFile(fixer.FileTask{
		Lines:      split("import a.B\nimport a.B\nimport c.D\nimport c.D\nclass X {}\n"),
		Violations: violations,
		Filter:     domain.NewRuleFilter([]string{"DuplicateImport"}),
	})

	assert.Equal(t, "import a.B\nimport c.D\nclass X {}\n", join(out.Lines))
	assert.Equal(t, 2, fixedCount(violations))
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, 3, out.Attempts[1].Line, "second entry shifted up by the first removal")
}

// orderedCatalog builds a registry whose fix order places names at
// priorities 1..n in the given order.
func orderedCatalog(t *testing.T, defs ...*domain.RuleDefinition) *rules.Registry {
	t.Helper()
	var b strings.Builder
	b.WriteString("fix_order:\n")
	for _, d := range defs {
		fmt.Fprintf(&b, "  - %s\n", d.Name)
	}
	r, err := rules.LoadFrom([]byte(b.String()), defs)
	require.NoError(t, err)
	return r
}

func lineRule(name string, fn domain.LineFixFunc) *domain.RuleDefinition {
	return &domain.RuleDefinition{Name: name, Fix: &domain.Fix{Kind: domain.FixFunction, Line: fn}}
}

func filler(name string) *domain.RuleDefinition {
	return lineRule(name, func(l string, _ domain.Vars) (string, error) { return l, nil })
}

// insertAbove inserts a marker line before the reported line.
func insertAbove(name string) *domain.RuleDefinition {
	return &domain.RuleDefinition{
		Name:       name,
		Scope:      domain.ScopeFile,
		Repeatable: true,
		Fix: &domain.Fix{Kind: domain.FixFunction, File: func(lines []string, lineNb int, _ domain.Vars) ([]string, error) {
			out := append([]string(nil), lines[:lineNb-1]...)
			out = append(out, "// inserted")
			return append(out, lines[lineNb-1:]...), nil
		}},
	}
}

func TestFixFile_PriorityOrdering(t *testing.T) {
	var seen []string
	a := insertAbove("A")
	b := lineRule("B", func(l string, _ domain.Vars) (string, error) {
		seen = append(seen, l)
		return l + "!", nil
	})

	// A gets priority 2, B priority 9.
	defs := []*domain.RuleDefinition{filler("First"), a}
	for i := 0; i < 6; i++ {
		defs = append(defs, filler(fmt.Sprintf("Mid%d", i)))
	}
	defs = append(defs, b)
	cat := orderedCatalog(t, defs...)

	pa, _ := cat.PriorityOf("A")
	pb, _ := cat.PriorityOf("B")
	require.Equal(t, 2, pa)
	require.Equal(t, 9, pb)

	// B is listed first and sits below A's insertion point.
	violations := []*domain.Violation{
		{ID: 0, Line: 2, Rule: "B"},
		{ID: 1, Line: 1, Rule: "A"},
	}
	out := fixer.New(cat, nil).FixFile(fixer.FileTask{
		Lines:      []string{"first", "target"},
		Violations: violations,
	})

	assert.Equal(t, []string{"// inserted", "first", "target!"}, out.Lines)
	assert.Equal(t, []string{"target"}, seen, "B must see the line A shifted")
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, "A", out.Attempts[0].Rule)
	assert.Equal(t, "B", out.Attempts[1].Rule)
}

func TestFixFile_RangeRemapping(t *testing.T) {
	mark := func(l string, _ domain.Vars) (string, error) { return l + ";", nil }
	cat := orderedCatalog(t, insertAbove("Insert"), lineRule("Above", mark), lineRule("Below", mark))

	rng := func(line int) *domain.Range {
		return &domain.Range{Start: domain.Position{Line: line, Character: 0}, End: domain.Position{Line: line, Character: 3}}
	}
	violations := []*domain.Violation{
		{ID: 0, Line: 2, Rule: "Insert"},
		{ID: 1, Line: 1, Rule: "Above", Range: rng(1)},
		{ID: 3, Line: 3, Rule: "Below", Range: rng(3)},
	}

	out := fixer.New(cat, nil).FixFile(fixer.FileTask{
		Lines:      []string{"one", "two", "three"},
		Violations: violations,
	})

	byID := make(map[string]fixer.Attempt)
	for _, a := range out.Attempts {
		byID[a.EntryID] = a
	}
	assert.Equal(t, 1, byID["1"].Line, "line <= N unchanged")
	assert.Equal(t, 1, byID["1"].Range.Start.Line)
	assert.Equal(t, 4, byID["3"].Line, "line > N shifted by one")
	assert.Equal(t, 4, byID["3"].Range.Start.Line)
	assert.Equal(t, 4, byID["3"].Range.End.Line)

	assert.Equal(t, []string{"one;", "// inserted", "two", "three;"}, out.Lines)
	assert.Equal(t, 3, violations[2].Line, "violations keep their reported line")
	assert.Equal(t, 3, violations[2].Range.Start.Line)
}

func TestFixFile_NoShiftWithoutLineCountChange(t *testing.T) {
	upper := &domain.RuleDefinition{
		Name:  "Upper",
		Scope: domain.ScopeFile,
		Fix: &domain.Fix{Kind: domain.FixFunction, File: func(lines []string, _ int, _ domain.Vars) ([]string, error) {
			out := make([]string, len(lines))
			for i, l := range lines {
				out[i] = strings.ToUpper(l)
			}
			return out, nil
		}},
	}
	cat := orderedCatalog(t, upper, lineRule("Tail", func(l string, _ domain.Vars) (string, error) { return l + ".", nil }))

	out := fixer.New(cat, nil).FixFile(fixer.FileTask{
		Lines:      []string{"a", "b"},
		Violations: []*domain.Violation{{ID: 0, Line: 1, Rule: "Upper"}, {ID: 1, Line: 2, Rule: "Tail"}},
	})
	assert.Equal(t, []string{"A", "B."}, out.Lines)
	assert.Equal(t, 2, out.Attempts[1].Line)
}

func TestFixFile_PanicIsContained(t *testing.T) {
	boom := lineRule("Boom", func(string, domain.Vars) (string, error) { panic("kaboom") })
	fails := lineRule("Fails", func(l string, _ domain.Vars) (string, error) { return "", fmt.Errorf("nope") })
	ok := lineRule("Ok", func(l string, _ domain.Vars) (string, error) { return l + "!", nil })
	cat := orderedCatalog(t, boom, fails, ok)

	violations := []*domain.Violation{
		{ID: 0, Line: 1, Rule: "Boom"},
		{ID: 1, Line: 1, Rule: "Fails"},
		{ID: 2, Line: 1, Rule: "Ok"},
	}
	out := fixer.New(cat, nil).FixFile(fixer.FileTask{Lines: []string{"x"}, Violations: violations})

	assert.False(t, violations[0].Fixed)
	assert.False(t, violations[1].Fixed)
	assert.True(t, violations[2].Fixed)
	assert.Equal(t, []string{"x!"}, out.Lines)
	require.Error(t, out.Attempts[0].Err)
	assert.Contains(t, out.Attempts[0].Err.Error(), "kaboom")
}

func TestFixFile_TriggerExtendsFilter(t *testing.T) {
	f := fixer.New(rules.Default(), nil)
	violations := []*domain.Violation{{ID: 3, Line: 1, Rule: "UnnecessarySemicolon"}}
	task := fixer.FileTask{
		Lines:      []string{"x = 1 ;"},
		Violations: violations,
		Filter:     domain.NewRuleFilter([]string{"UnnecessarySemicolon"}),
	}

	entries, filter := f.Select(task)
	require.Len(t, entries, 2)
	assert.Equal(t, "UnnecessarySemicolon", entries[0].Rule)
	assert.Equal(t, "3_triggered", entries[1].ID)
	assert.True(t, filter.Allows("TrailingWhitespace"))
	assert.False(t, task.Filter.Allows("TrailingWhitespace"), "caller's filter is not mutated")

	out := f.FixFile(task)
	assert.Equal(t, []string{"x = 1"}, out.Lines)
	assert.True(t, violations[0].Fixed)
}

func TestFixFile_ReportedViolationTakesOverTrigger(t *testing.T) {
	f := fixer.New(rules.Default(), nil)
	violations := []*domain.Violation{
		{ID: 1, Line: 1, Rule: "UnnecessarySemicolon"},
		{ID: 2, Line: 1, Rule: "TrailingWhitespace"},
	}
	entries, _ := f.Select(fixer.FileTask{Lines: []string{"y = 2 ;"}, Violations: violations, Filter: domain.NewRuleFilter([]string{"UnnecessarySemicolon", "TrailingWhitespace"})})
	require.Len(t, entries, 2)

	out := f.FixFile(fixer.FileTask{Lines: []string{"y = 2 ;"}, Violations: violations, Filter: domain.NewRuleFilter([]string{"UnnecessarySemicolon", "TrailingWhitespace"})})
	assert.Equal(t, []string{"y = 2"}, out.Lines)
	assert.Equal(t, 2, fixedCount(violations))
}

func TestFixFile_FilterExcludesRule(t *testing.T) {
	f := fixer.New(rules.Default(), nil)
	violations := []*domain.Violation{{ID: 0, Line: 1, Rule: "SpaceAfterIf"}}
	out := f.FixFile(fixer.FileTask{
		Lines:      []string{"if(a) {"},
		Violations: violations,
		Filter:     domain.NewRuleFilter([]string{"TrailingWhitespace"}),
	})
	assert.Equal(t, []string{"if(a) {"}, out.Lines)
	assert.False(t, violations[0].Fixed)

	out = f.FixFile(fixer.FileTask{
		Lines:       []string{"if(a) {"},
		Violations:  violations,
		Filter:      domain.NewRuleFilter([]string{"TrailingWhitespace"}),
		TriggerTest: true,
	})
	assert.Equal(t, []string{"if (a) {"}, out.Lines)
	assert.True(t, violations[0].Fixed)
}

func TestSelect_FormatRules(t *testing.T) {
	f := fixer.New(rules.Default(), nil)
	filter := domain.NewRuleFilter([]string{"SpaceAfterIf"})

	entries, _ := f.Select(fixer.FileTask{Lines: []string{"x"}, Filter: filter})
	assert.Empty(t, entries, "explicit filter without format mode adds nothing")

	entries, ext := f.Select(fixer.FileTask{Lines: []string{"x"}, Filter: filter, Format: true})
	var names []string
	for _, e := range entries {
		names = append(names, e.Rule)
	}
	assert.Equal(t, []string{"NoTabCharacter", "ConsecutiveBlankLines", "FileEndsWithoutNewline"}, names)
	assert.True(t, ext.Allows("FileEndsWithoutNewline"))

	entries, _ = f.Select(fixer.FileTask{Lines: []string{"x"}})
	assert.Len(t, entries, 3, "no filter at all runs format rules")
}

func TestFormat_AddsFinalNewlineAndCollapsesBlankLines(t *testing.T) {
	f := fixer.New(rules.Default(), nil)
	out := f.FixFile(fixer.FileTask{
		Lines:  split("class A {\n\n\n\tdef x\n}"),
		Format: true,
	})
	assert.Equal(t, "class A {\n\n    def x\n}\n", join(out.Lines))
	assert.Equal(t, 3, out.FixedCount)
}

func TestSelect_FileScopeAddedOnce(t *testing.T) {
	f := fixer.New(rules.Default(), nil)
	entries, _ := f.Select(fixer.FileTask{
		Lines: split("a\n\n\n\nb\n\n\nc\n"),
		Violations: []*domain.Violation{
			{ID: 0, Line: 3, Rule: "ConsecutiveBlankLines"},
			{ID: 1, Line: 7, Rule: "ConsecutiveBlankLines"},
		},
		Filter: domain.NewRuleFilter([]string{"ConsecutiveBlankLines"}),
	})
	require.Len(t, entries, 1)
	assert.Equal(t, "0", entries[0].ID)
	require.Len(t, entries[0].Covered, 1)
	assert.Equal(t, 7, entries[0].Covered[0].Line)
}

func TestFixFile_FileScopeRuleFixesEveryReportedRun(t *testing.T) {
	f := fixer.New(rules.Default(), nil)
	violations := []*domain.Violation{
		{ID: 0, Line: 3, Rule: "ConsecutiveBlankLines"},
		{ID: 1, Line: 7, Rule: "ConsecutiveBlankLines"},
	}

	out := f.FixFile(fixer.FileTask{
		Lines:      split("a\n\n\nb\nc\n\n\nd\n"),
		Violations: violations,
		Filter:     domain.NewRuleFilter([]string{"ConsecutiveBlankLines"}),
	})

	assert.Equal(t, "a\n\nb\nc\n\nd\n", join(out.Lines))
	assert.True(t, violations[0].Fixed)
	assert.True(t, violations[1].Fixed)
}

func TestFormat_ReportedFileRuleStillNormalizesWholeFile(t *testing.T) {
	f := fixer.New(rules.Default(), nil)
	violations := []*domain.Violation{
		{ID: 0, Line: 3, Rule: "ConsecutiveBlankLines"},
	}

	out := f.FixFile(fixer.FileTask{
		Lines:      split("a\n\n\nb\nc\n\n\n\nd\n"),
		Violations: violations,
		Format:     true,
	})

	assert.Equal(t, "a\n\nb\nc\n\nd\n", join(out.Lines))
	assert.True(t, violations[0].Fixed)
}

func TestFixFile_SingleBlankLinesUntouched(t *testing.T) {
	f := fixer.New(rules.Default(), nil)
	violations := []*domain.Violation{{ID: 0, Line: 2, Rule: "ConsecutiveBlankLines"}}

	out := f.FixFile(fixer.FileTask{
		Lines:      split("a\n  \nb\n"),
		Violations: violations,
		Filter:     domain.NewRuleFilter([]string{"ConsecutiveBlankLines"}),
	})

	assert.Equal(t, "a\n  \nb\n", join(out.Lines))
	assert.False(t, violations[0].Fixed)
}

func TestFixFile_FixesSameErrorOnSameLine(t *testing.T) {
	f := fixer.New(rules.Default(), nil)
	msg := "The statement on line 2 in class A is at the incorrect indent level: Expected column 5 but was 2"
	violations := []*domain.Violation{
		{ID: 0, Line: 2, Rule: "Indentation", Message: msg},
		{ID: 1, Line: 2, Rule: "Indentation", Message: msg},
	}
	out := f.FixFile(fixer.FileTask{
		Lines:      []string{"class A {", " def x = 1", "}"},
		Violations: violations,
		Filter:     domain.NewRuleFilter([]string{"Indentation"}),
	})
	assert.Equal(t, "    def x = 1", out.Lines[1])
	assert.True(t, violations[0].Fixed)
	assert.True(t, violations[1].Fixed, "resolved as a side effect of the first fix")
}

func TestFixFile_TemplateWithVariables(t *testing.T) {
	f := fixer.New(rules.Default(), nil)
	violations := []*domain.Violation{{
		ID: 0, Line: 1, Rule: "UnnecessaryGString",
		Message: "The String 'hello $1' can be wrapped in single quotes instead of double quotes",
	}}
	out := f.FixFile(fixer.FileTask{
		Lines:      []string{`def s = "hello $1"`},
		Violations: violations,
		Filter:     domain.NewRuleFilter([]string{"UnnecessaryGString"}),
	})
	assert.Equal(t, []string{`def s = 'hello $1'`}, out.Lines)
	assert.True(t, violations[0].Fixed)
}

func TestFixFile_LineOutOfRangeIsNotFixed(t *testing.T) {
	f := fixer.New(rules.Default(), nil)
	violations := []*domain.Violation{{ID: 0, Line: 9, Rule: "TrailingWhitespace"}}
	out := f.FixFile(fixer.FileTask{Lines: []string{"a "}, Violations: violations, Filter: domain.NewRuleFilter([]string{"TrailingWhitespace"})})
	assert.False(t, violations[0].Fixed)
	assert.Error(t, out.Attempts[0].Err)
}

func sampleViolations() []*domain.Violation {
	return []*domain.Violation{
		{ID: 0, Line: 1, Rule: "UnusedImport", Message: "The [java.util.List] import is never referenced"},
		{ID: 1, Line: 3, Rule: "SpaceAfterIf"},
		{ID: 2, Line: 4, Rule: "UnnecessarySemicolon"},
		{ID: 3, Line: 4, Rule: "TrailingWhitespace"},
		{ID: 4, Line: 5, Rule: "SpaceAfterComma"},
	}
}

const sample = "import java.util.List\nclass A {\n  if(a){\n    b = 1 ; \n    f(a,b)\n  }\n}\n"

func TestFixFile_FixedImpliesObservableChange(t *testing.T) {
	f := fixer.New(rules.Default(), nil)
	original := split(sample)
	violations := sampleViolations()
	out := f.FixFile(fixer.FileTask{Lines: original, Violations: violations})

	updated := join(out.Lines)
	require.NotEqual(t, sample, updated)
	for _, v := range violations {
		if !v.Fixed {
			continue
		}
		origTail := strings.Join(original[v.Line-1:], "\n")
		assert.False(t, strings.HasSuffix(updated, origTail), "rule %s claims a fix without a change at or after line %d", v.Rule, v.Line)
	}
	assert.Equal(t, 5, fixedCount(violations))
	assert.Equal(t, "class A {\n  if (a) {\n    b = 1\n    f(a, b)\n  }\n}\n", updated)
}

func TestFixFile_Idempotent(t *testing.T) {
	f := fixer.New(rules.Default(), nil)
	filter := domain.NewRuleFilter([]string{"SpaceAfterIf", "UnnecessarySemicolon", "TrailingWhitespace", "SpaceAfterComma"})

	first := f.FixFile(fixer.FileTask{Lines: split(sample), Violations: sampleViolations(), Filter: filter})
	require.Positive(t, first.FixedCount)

	again := sampleViolations()
	second := f.FixFile(fixer.FileTask{Lines: first.Lines, Violations: again, Filter: filter})
	assert.Equal(t, first.Lines, second.Lines)
	for _, v := range again {
		if v.Rule != "UnusedImport" {
			assert.False(t, v.Fixed, "rule %s oscillates", v.Rule)
		}
	}
}
