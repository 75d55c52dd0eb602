package domain

// DefaultMaxFixPasses bounds the cascade of "fix again" passes.
const DefaultMaxFixPasses = 3

// FixOptions controls a fix run.
type FixOptions struct {
	// Rules restricts fixing to the named rules. Empty means every rule.
	Rules []string `json:"rules,omitempty"`
	// Format also runs the always-run formatting rules on every file.
	Format bool `json:"format"`
	// Persist writes updated sources back to their files.
	Persist bool `json:"persist"`
	// ReLint runs the engine again on the fixed sources.
	ReLint bool `json:"relint"`
	// TriggerTest bypasses the rule filter during selection.
	TriggerTest bool `json:"-"`
	MaxPasses   int  `json:"max_passes,omitempty"`
}

// EffectiveMaxPasses returns MaxPasses or the default when unset.
func (o FixOptions) EffectiveMaxPasses() int {
	if o.MaxPasses <= 0 {
		return DefaultMaxFixPasses
	}
	return o.MaxPasses
}

// RuleFilter is a set of rule names a fix pass is restricted to. A nil
// filter allows every rule.
type RuleFilter map[string]bool

// NewRuleFilter builds a filter from names; no names yields nil.
func NewRuleFilter(names []string) RuleFilter {
	if len(names) == 0 {
		return nil
	}
	f := make(RuleFilter, len(names))
	for _, n := range names {
		f[n] = true
	}
	return f
}

// Allows reports whether the filter admits the rule.
func (f RuleFilter) Allows(rule string) bool {
	return f == nil || f[rule]
}

// Active reports whether the filter restricts anything.
func (f RuleFilter) Active() bool {
	return f != nil
}

// Clone copies the filter so a file pass can extend it privately.
func (f RuleFilter) Clone() RuleFilter {
	if f == nil {
		return nil
	}
	c := make(RuleFilter, len(f))
	for k, v := range f {
		c[k] = v
	}
	return c
}
