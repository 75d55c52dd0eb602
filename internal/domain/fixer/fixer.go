// Package fixer applies rule fixes to the lines of one file.
//
// Entries are applied strictly in priority order because a fix can move the
// lines later entries point at. After every fix that changes the line count,
// the lines of the entries still pending are remapped before the next one
// runs.
package fixer

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/abdidvp/lintfix/internal/domain"
)

// Entry is one fix attempt derived from a violation (or from a trigger or
// format rule). It lives only for the duration of a file pass.
type Entry struct {
	ID        string
	Rule      string
	Line      int
	Message   string
	Range     *domain.Range
	Def       *domain.RuleDefinition
	Violation *domain.Violation
	// Covered are further violations of a once-per-file rule that this
	// entry's fix resolves along with its own.
	Covered []*domain.Violation
}

// FileTask is the input of one file pass.
type FileTask struct {
	Key        string
	Lines      []string
	Violations []*domain.Violation
	Filter     domain.RuleFilter
	// Format adds the always-run formatting rules.
	Format bool
	// TriggerTest bypasses the rule filter during selection.
	TriggerTest bool
	// FileRules adds one file-level entry per named rule, used by cascade
	// passes that have no fresh violations to work from.
	FileRules []string
}

// Attempt records the outcome of one entry.
type Attempt struct {
	EntryID string
	Rule    string
	Line    int
	Range   *domain.Range
	Fixed   bool
	Err     error
}

// FileOutcome is the result of one file pass.
type FileOutcome struct {
	Key        string
	Lines      []string
	FixedCount int
	// AgainRules are the rules that succeeded fixes asked to re-run.
	AgainRules []string
	Attempts   []Attempt
}

// Changed reports whether any fix succeeded.
func (o *FileOutcome) Changed() bool {
	return o.FixedCount > 0
}

// Fixer applies fixes using the rule catalog.
type Fixer struct {
	catalog domain.RuleCatalog
	logger  *slog.Logger
}

// New creates a Fixer. A nil logger uses slog.Default().
func New(catalog domain.RuleCatalog, logger *slog.Logger) *Fixer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fixer{catalog: catalog, logger: logger}
}

// Select builds the priority-ordered entries of a task and returns the rule
// filter extended with triggered rules.
func (f *Fixer) Select(task FileTask) ([]*Entry, domain.RuleFilter) {
	filter := task.Filter.Clone()
	s := selection{once: make(map[string]*Entry), lines: make(map[string]*Entry)}

	for _, v := range task.Violations {
		def, ok := f.fixable(v.Rule)
		if !ok {
			continue
		}
		if !task.TriggerTest && !task.Filter.Allows(v.Rule) {
			continue
		}
		s.add(&Entry{
			ID:        strconv.Itoa(v.ID),
			Rule:      v.Rule,
			Line:      v.Line,
			Message:   v.Message,
			Range:     copyRange(v.Range),
			Def:       def,
			Violation: v,
		})
		for _, t := range def.Triggers {
			tdef, ok := f.fixable(t)
			if !ok {
				continue
			}
			s.add(&Entry{
				ID:    strconv.Itoa(v.ID) + "_triggered",
				Rule:  t,
				Line:  v.Line,
				Range: copyRange(v.Range),
				Def:   tdef,
			})
			if filter.Active() {
				filter[t] = true
			}
		}
	}

	for _, name := range task.FileRules {
		if def, ok := f.fixable(name); ok && def.EffectiveScope() == domain.ScopeFile {
			s.add(&Entry{ID: "again_" + name, Rule: name, Def: def})
		}
	}

	if task.Format || !task.Filter.Active() {
		for _, name := range f.catalog.AlwaysRunRules() {
			if def, ok := f.fixable(name); ok {
				s.add(&Entry{ID: "format_" + name, Rule: name, Def: def})
				if filter.Active() {
					filter[name] = true
				}
			}
		}
	}

	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].Def.Priority < s.entries[j].Def.Priority
	})
	return s.entries, filter
}

type selection struct {
	entries []*Entry
	once    map[string]*Entry
	lines   map[string]*Entry
}

func (s *selection) add(e *Entry) {
	lineScoped := e.Def.EffectiveScope() == domain.ScopeLine
	key := lineKey(e.Rule, e.Line)
	// A line-scope entry already queued for the same rule and line absorbs
	// the new one; a reported violation takes over a triggered entry.
	if prev, ok := s.lines[key]; ok && lineScoped {
		if prev.Violation == nil && e.Violation != nil {
			prev.ID, prev.Message, prev.Violation = e.ID, e.Message, e.Violation
			return
		}
		if e.Violation == nil {
			return
		}
	}
	if (!lineScoped && !e.Def.Repeatable) || e.Def.Unitary {
		if prev, ok := s.once[e.Rule]; ok {
			if e.Violation != nil {
				if prev.Violation == nil {
					prev.ID, prev.Line, prev.Message, prev.Violation = e.ID, e.Line, e.Message, e.Violation
					prev.Range = e.Range
				} else {
					prev.Covered = append(prev.Covered, e.Violation)
				}
			}
			return
		}
		s.once[e.Rule] = e
	}
	if lineScoped {
		if _, ok := s.lines[key]; !ok {
			s.lines[key] = e
		}
	}
	s.entries = append(s.entries, e)
}

// FixFile applies every selected entry to the task's lines in order.
func (f *Fixer) FixFile(task FileTask) *FileOutcome {
	entries, filter := f.Select(task)
	lines := append([]string(nil), task.Lines...)
	out := &FileOutcome{Key: task.Key}

	succeeded := make(map[string]bool)
	again := make(map[string]bool)

	for i, e := range entries {
		if !task.TriggerTest && !filter.Allows(e.Rule) {
			continue
		}
		attempt := Attempt{EntryID: e.ID, Rule: e.Rule, Line: e.Line, Range: copyRange(e.Range)}
		vars := ExtractVars(e.Def, e.Message)

		if e.Def.EffectiveScope() == domain.ScopeFile {
			updated, err := applyFile(e.Def.Fix, lines, e.Line, vars)
			attempt.Err = err
			if err == nil && !equalLines(updated, lines) {
				attempt.Fixed = true
				delta := len(updated) - len(lines)
				lines = updated
				if delta != 0 {
					remap(entries[i+1:], e.Line, delta)
				}
			}
		} else {
			if e.Line < 1 || e.Line > len(lines) {
				attempt.Err = fmt.Errorf("line %d out of range (%d lines)", e.Line, len(lines))
			} else {
				updated, err := applyLine(e.Def.Fix, lines[e.Line-1], vars)
				attempt.Err = err
				if err == nil && updated != lines[e.Line-1] {
					lines[e.Line-1] = updated
					attempt.Fixed = true
				}
			}
		}

		if attempt.Err != nil {
			f.logger.Warn("fix failed",
				"rule", e.Rule,
				"file", task.Key,
				"line", e.Line,
				"error", attempt.Err)
		}

		key := lineKey(e.Rule, e.Line)
		if attempt.Fixed {
			succeeded[key] = true
		} else if e.Def.FixesSameErrorOnSameLine && succeeded[key] {
			attempt.Fixed = true
		}

		if attempt.Fixed {
			if e.Violation != nil {
				e.Violation.Fixed = true
			}
			for _, v := range e.Covered {
				v.Fixed = true
			}
			out.FixedCount++
			for _, r := range e.Def.TriggersAgainAfterFix {
				again[r] = true
			}
		}
		out.Attempts = append(out.Attempts, attempt)
	}

	out.Lines = lines
	for r := range again {
		out.AgainRules = append(out.AgainRules, r)
	}
	sort.Strings(out.AgainRules)
	return out
}

// remap shifts pending entries below an edited line by delta lines.
func remap(pending []*Entry, editedLine, delta int) {
	for _, p := range pending {
		if p.Line > editedLine {
			p.Line += delta
			if p.Range != nil {
				p.Range.Shift(delta)
			}
		}
	}
}

func (f *Fixer) fixable(rule string) (*domain.RuleDefinition, bool) {
	def, ok := f.catalog.Get(rule)
	if !ok || !def.Fixable() {
		return nil, false
	}
	if _, err := f.catalog.PriorityOf(rule); err != nil {
		f.logger.Error("fixable rule without priority", "rule", rule, "error", err)
		return nil, false
	}
	return def, true
}

func lineKey(rule string, line int) string {
	return rule + ":" + strconv.Itoa(line)
}

func copyRange(r *domain.Range) *domain.Range {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
