package domain

import "sort"

// SourceKey identifies the single in-memory source of a lint run that was
// started from text rather than from files on disk.
const SourceKey = "0"

// Severity is the normalized severity of a violation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityUnknown Severity = "unknown"
)

// Rank orders severities from most to least severe. Unknown sorts last.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	default:
		return 3
	}
}

// AtLeast reports whether s is as severe as threshold.
func (s Severity) AtLeast(threshold Severity) bool {
	return s.Rank() <= threshold.Rank()
}

// Position is a zero-based character offset on a one-based line.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Before reports whether p comes strictly before o in document order.
func (p Position) Before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Character < o.Character
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Valid reports whether the range starts at or before its end.
func (r Range) Valid() bool {
	return !r.End.Before(r.Start)
}

// Shift moves both ends of the range by delta lines.
func (r *Range) Shift(delta int) {
	r.Start.Line += delta
	r.End.Line += delta
}

// Violation is one issue reported by the analysis engine, after
// normalization. The fixer is the only component that mutates it.
type Violation struct {
	ID       int      `json:"id"`
	Line     int      `json:"line"`
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"msg"`
	Range    *Range   `json:"range,omitempty"`
	Fixed    bool     `json:"fixed,omitempty"`
	Fixable  bool     `json:"fixable,omitempty"`
}

// FileErrors holds the violations of one file and, after a fix pass, its
// rewritten source.
type FileErrors struct {
	Errors        []*Violation `json:"errors"`
	UpdatedSource *string      `json:"updatedSource,omitempty"`
}

// FixedCount returns the number of violations marked fixed.
func (f *FileErrors) FixedCount() int {
	n := 0
	for _, v := range f.Errors {
		if v.Fixed {
			n++
		}
	}
	return n
}

// Summary aggregates counts over a whole lint run.
type Summary struct {
	TotalFound     int              `json:"totalFoundNumber"`
	TotalFixed     int              `json:"totalFixedNumber"`
	TotalRemaining int              `json:"totalRemainingNumber"`
	Found          map[Severity]int `json:"found"`
	Fixed          map[Severity]int `json:"fixed"`
	Remaining      map[Severity]int `json:"remaining"`
}

// LintResult is the per-file outcome of a lint (and optional fix) run.
type LintResult struct {
	Files       map[string]*FileErrors `json:"files"`
	Order       []string               `json:"-"`
	ParseErrors map[string][]string    `json:"parseErrors,omitempty"`
	Summary     Summary                `json:"summary"`
}

// NewLintResult returns an empty result ready for AddFile.
func NewLintResult() *LintResult {
	return &LintResult{Files: make(map[string]*FileErrors)}
}

// AddFile registers a file, keeping first-insertion order.
func (r *LintResult) AddFile(key string) *FileErrors {
	if fe, ok := r.Files[key]; ok {
		return fe
	}
	fe := &FileErrors{}
	r.Files[key] = fe
	r.Order = append(r.Order, key)
	return fe
}

// Keys returns the file keys in insertion order. Keys present in Files but
// missing from Order are appended sorted.
func (r *LintResult) Keys() []string {
	seen := make(map[string]bool, len(r.Order))
	keys := make([]string, 0, len(r.Files))
	for _, k := range r.Order {
		if _, ok := r.Files[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range r.Files {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// Violations returns every violation of the run in file order.
func (r *LintResult) Violations() []*Violation {
	var all []*Violation
	for _, k := range r.Keys() {
		all = append(all, r.Files[k].Errors...)
	}
	return all
}

// Summarize recomputes Summary from the current file entries.
func (r *LintResult) Summarize() {
	s := Summary{
		Found:     make(map[Severity]int),
		Fixed:     make(map[Severity]int),
		Remaining: make(map[Severity]int),
	}
	for _, v := range r.Violations() {
		s.TotalFound++
		s.Found[v.Severity]++
		if v.Fixed {
			s.TotalFixed++
			s.Fixed[v.Severity]++
		} else {
			s.TotalRemaining++
			s.Remaining[v.Severity]++
		}
	}
	r.Summary = s
}

// HasRemainingAtLeast reports whether an unfixed violation at or above the
// threshold severity remains.
func (r *LintResult) HasRemainingAtLeast(threshold Severity) bool {
	for _, v := range r.Violations() {
		if !v.Fixed && v.Severity.AtLeast(threshold) {
			return true
		}
	}
	return false
}
