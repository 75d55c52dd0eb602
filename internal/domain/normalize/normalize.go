// Package normalize turns raw engine responses into the violation model:
// ids, severities, ranges and the fixable flag.
package normalize

import (
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/abdidvp/lintfix/internal/domain"
	"github.com/abdidvp/lintfix/internal/domain/fixer"
	"github.com/abdidvp/lintfix/internal/domain/rules"
)

// ParseErrorRule is the rule name given to engine parse errors.
const ParseErrorRule = "ParseError"

var parseErrorLine = regexp.MustCompile(`@ line (\d+)`)

// SeverityFor maps an engine priority to a severity.
func SeverityFor(priority int) domain.Severity {
	switch priority {
	case 1:
		return domain.SeverityError
	case 2:
		return domain.SeverityWarning
	case 3:
		return domain.SeverityInfo
	default:
		return domain.SeverityUnknown
	}
}

// Options tell the normalizer how to name files and where to read their
// lines. Both are optional.
type Options struct {
	// Key maps an engine path to a result key. Identity when nil.
	Key func(path string) string
	// Lines returns the current lines of a result key, nil when unknown.
	Lines func(key string) []string
}

// Normalizer assigns ids that stay unique across every response it
// handles, so a re-lint can be merged with the first pass. It is safe for
// concurrent use.
type Normalizer struct {
	catalog domain.RuleCatalog

	mu   sync.Mutex
	next int
}

// New returns a Normalizer backed by the rule catalog.
func New(catalog domain.RuleCatalog) *Normalizer {
	return &Normalizer{catalog: catalog}
}

// Normalize converts a successful engine response into a LintResult.
func (n *Normalizer) Normalize(resp *domain.EngineResponse, opts Options) *domain.LintResult {
	keyOf := opts.Key
	if keyOf == nil {
		keyOf = func(p string) string { return p }
	}
	linesOf := opts.Lines
	if linesOf == nil {
		linesOf = func(string) []string { return nil }
	}

	res := domain.NewLintResult()
	for _, p := range resp.FileList {
		res.AddFile(keyOf(p))
	}

	cache := make(map[string][]string)
	lines := func(key string) []string {
		l, ok := cache[key]
		if !ok {
			l = linesOf(key)
			cache[key] = l
		}
		return l
	}

	for _, f := range resp.Files {
		key := keyOf(f.Path)
		fe := res.AddFile(key)
		for _, ev := range f.Violations {
			fe.Errors = append(fe.Errors, n.violation(ev, lines(key)))
		}
	}

	if len(resp.ParseErrors) > 0 {
		res.ParseErrors = make(map[string][]string, len(resp.ParseErrors))
		for _, p := range sortedKeys(resp.ParseErrors) {
			key := keyOf(p)
			msgs := resp.ParseErrors[p]
			res.ParseErrors[key] = append(res.ParseErrors[key], msgs...)
			fe := res.AddFile(key)
			for _, msg := range msgs {
				fe.Errors = append(fe.Errors, n.parseError(msg))
			}
		}
	}
	return res
}

func (n *Normalizer) violation(ev domain.EngineViolation, lines []string) *domain.Violation {
	v := &domain.Violation{
		ID:       n.nextID(),
		Line:     ev.Line,
		Rule:     ev.Rule,
		Severity: SeverityFor(ev.Priority),
		Message:  ev.Message,
	}
	if v.Line < 0 {
		v.Line = 0
	}

	def, ok := n.catalog.Get(ev.Rule)
	if ok {
		v.Fixable = def.Fixable()
	}
	if v.Line == 0 || len(lines) == 0 {
		return v
	}

	var r *domain.Range
	if ok && def.Range != nil {
		r = def.Range(lines, v.Line, fixer.ExtractVars(def, ev.Message))
	}
	if r == nil {
		r = rules.LineRange(lines, v.Line)
	}
	if r != nil && r.Valid() {
		v.Range = r
	}
	return v
}

func (n *Normalizer) parseError(msg string) *domain.Violation {
	v := &domain.Violation{
		ID:       n.nextID(),
		Rule:     ParseErrorRule,
		Severity: domain.SeverityUnknown,
		Message:  msg,
	}
	if m := parseErrorLine.FindStringSubmatch(msg); m != nil {
		v.Line, _ = strconv.Atoi(m[1])
	}
	return v
}

func (n *Normalizer) nextID() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.next
	n.next++
	return id
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
