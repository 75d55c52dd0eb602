package domain

import "regexp"

// Scope says whether a rule's fix rewrites one line or the whole file.
type Scope string

const (
	ScopeLine Scope = "line"
	ScopeFile Scope = "file"
)

// FixKind discriminates the fix strategies a rule may carry.
type FixKind string

const (
	FixTemplate FixKind = "template"
	FixFunction FixKind = "function"
)

// VarType is the coercion applied to an extracted variable.
type VarType string

const (
	VarString VarType = "string"
	VarNumber VarType = "number"
	VarArray  VarType = "array"
)

// Vars holds variables extracted from a violation message. Values are
// string, int or []string depending on the extractor's VarType.
type Vars map[string]any

// String returns the named variable as a string, or "" when absent.
func (v Vars) String(name string) string {
	s, _ := v[name].(string)
	return s
}

// Int returns the named variable as an int and whether it was present.
func (v Vars) Int(name string) (int, bool) {
	n, ok := v[name].(int)
	return n, ok
}

// Strings returns the named variable as a string slice.
func (v Vars) Strings(name string) []string {
	s, _ := v[name].([]string)
	return s
}

// LineFixFunc rewrites a single source line.
type LineFixFunc func(line string, vars Vars) (string, error)

// FileFixFunc rewrites the whole file. lineNb is the 1-based line the
// violation was reported on, 0 when the violation is file scoped.
type FileFixFunc func(lines []string, lineNb int, vars Vars) ([]string, error)

// RangeFunc computes the source range of a violation. It returns nil when no
// sensible range exists.
type RangeFunc func(lines []string, lineNb int, vars Vars) *Range

// Fix is the deterministic rewrite attached to a rule. Kind selects which of
// the remaining fields is used: Before/After for templates, Line or File for
// functions.
type Fix struct {
	Kind   FixKind
	Before string
	After  string
	Line   LineFixFunc
	File   FileFixFunc
}

// VariableExtractor pulls a named value out of a violation message.
type VariableExtractor struct {
	Name    string
	Pattern *regexp.Regexp
	// Group selects the capture group; zero means the first non-empty one.
	Group int
	Type  VarType
}

// RuleDefinition is the static description of one rule. Definitions are
// shared read-only for the life of the process.
type RuleDefinition struct {
	Name                     string
	Scope                    Scope
	Priority                 int
	Fix                      *Fix
	Range                    RangeFunc
	Variables                []VariableExtractor
	Triggers                 []string
	TriggersAgainAfterFix    []string
	Unitary                  bool
	FixesSameErrorOnSameLine bool
	// Repeatable lets a file-scope rule be applied once per reported
	// violation instead of once per file.
	Repeatable bool
}

// EffectiveScope returns the rule scope, defaulting to line.
func (d *RuleDefinition) EffectiveScope() Scope {
	if d.Scope == "" {
		return ScopeLine
	}
	return d.Scope
}

// Fixable reports whether the rule carries a fix.
func (d *RuleDefinition) Fixable() bool {
	return d.Fix != nil
}

// RuleCatalog is read access to the rule registry.
type RuleCatalog interface {
	Get(name string) (*RuleDefinition, bool)
	PriorityOf(name string) (int, error)
	AlwaysRunRules() []string
	Names() []string
}
