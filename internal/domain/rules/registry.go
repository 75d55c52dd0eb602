// Package rules holds the rule registry and the catalogue of concrete rules.
package rules

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/abdidvp/lintfix/internal/domain"
)

//go:embed fix_order.yaml
var fixOrderYAML []byte

type fixOrderFile struct {
	FixOrder    []string `yaml:"fix_order"`
	FormatRules []string `yaml:"format_rules"`
}

// Registry is the loaded, validated rule catalogue. It implements
// domain.RuleCatalog and is safe for concurrent reads.
type Registry struct {
	defs      map[string]*domain.RuleDefinition
	priority  map[string]int
	alwaysRun []string
	names     []string
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry built from the embedded fix
// order and the built-in catalogue. It panics if the catalogue is
// inconsistent.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = MustLoad()
	})
	return defaultRegistry
}

// MustLoad is Load that panics on a configuration error.
func MustLoad() *Registry {
	r, err := Load()
	if err != nil {
		panic(err)
	}
	return r
}

// Load builds a registry from the embedded fix order and built-in rules.
func Load() (*Registry, error) {
	return LoadFrom(fixOrderYAML, Catalog())
}

// LoadFrom builds a registry from a fix-order document and definitions.
// Every definition carrying a fix must appear in fix_order.
func LoadFrom(fixOrder []byte, defs []*domain.RuleDefinition) (*Registry, error) {
	var order fixOrderFile
	if err := yaml.Unmarshal(fixOrder, &order); err != nil {
		return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("parsing fix order: %v", err)}
	}

	r := &Registry{
		defs:     make(map[string]*domain.RuleDefinition, len(defs)),
		priority: make(map[string]int, len(order.FixOrder)),
	}

	for _, d := range defs {
		if d.Name == "" {
			return nil, &domain.ConfigurationError{Reason: "rule definition without a name"}
		}
		if _, dup := r.defs[d.Name]; dup {
			return nil, &domain.ConfigurationError{Rule: d.Name, Reason: "defined twice"}
		}
		r.defs[d.Name] = d
	}

	for i, name := range order.FixOrder {
		if _, ok := r.defs[name]; !ok {
			return nil, &domain.ConfigurationError{Rule: name, Reason: "listed in fix_order but not defined"}
		}
		if _, dup := r.priority[name]; dup {
			return nil, &domain.ConfigurationError{Rule: name, Reason: "listed twice in fix_order"}
		}
		r.priority[name] = i + 1
	}

	for name, d := range r.defs {
		p, ok := r.priority[name]
		if d.Fixable() && !ok {
			return nil, &domain.ConfigurationError{Rule: name, Reason: "declares a fix but has no priority in fix_order"}
		}
		if err := validateDefinition(d); err != nil {
			return nil, err
		}
		// Definitions are copied so the caller's slice stays untouched.
		cp := *d
		cp.Priority = p
		r.defs[name] = &cp
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)

	for _, name := range order.FormatRules {
		d, ok := r.defs[name]
		if !ok || !d.Fixable() {
			return nil, &domain.ConfigurationError{Rule: name, Reason: "format rule must be a defined fixable rule"}
		}
		if d.EffectiveScope() != domain.ScopeFile {
			return nil, &domain.ConfigurationError{Rule: name, Reason: "format rule must be file scoped"}
		}
		r.alwaysRun = append(r.alwaysRun, name)
	}

	for _, d := range r.defs {
		for _, t := range append(append([]string(nil), d.Triggers...), d.TriggersAgainAfterFix...) {
			if _, ok := r.defs[t]; !ok {
				return nil, &domain.ConfigurationError{Rule: d.Name, Reason: fmt.Sprintf("triggers unknown rule %q", t)}
			}
		}
	}

	return r, nil
}

func validateDefinition(d *domain.RuleDefinition) error {
	if d.Fix == nil {
		return nil
	}
	switch d.Fix.Kind {
	case domain.FixTemplate:
		if d.EffectiveScope() != domain.ScopeLine {
			return &domain.ConfigurationError{Rule: d.Name, Reason: "template fixes are line scoped"}
		}
		if d.Fix.Before == "" {
			return &domain.ConfigurationError{Rule: d.Name, Reason: "template fix without a before pattern"}
		}
	case domain.FixFunction:
		if d.EffectiveScope() == domain.ScopeFile && d.Fix.File == nil {
			return &domain.ConfigurationError{Rule: d.Name, Reason: "file scoped function fix without a file function"}
		}
		if d.EffectiveScope() == domain.ScopeLine && d.Fix.Line == nil {
			return &domain.ConfigurationError{Rule: d.Name, Reason: "line scoped function fix without a line function"}
		}
	default:
		return &domain.ConfigurationError{Rule: d.Name, Reason: fmt.Sprintf("unknown fix kind %q", d.Fix.Kind)}
	}
	return nil
}

// Get returns the definition of the named rule.
func (r *Registry) Get(name string) (*domain.RuleDefinition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// PriorityOf returns the fix priority of a rule. Lower runs first.
func (r *Registry) PriorityOf(name string) (int, error) {
	d, ok := r.defs[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrRuleNotFound, name)
	}
	p, ok := r.priority[name]
	if !ok {
		if d.Fixable() {
			return 0, &domain.ConfigurationError{Rule: name, Reason: "declares a fix but has no priority"}
		}
		return 0, fmt.Errorf("rule %s is not fixable", name)
	}
	return p, nil
}

// AlwaysRunRules returns the formatting rules run on every file in format
// mode, in fix order.
func (r *Registry) AlwaysRunRules() []string {
	return append([]string(nil), r.alwaysRun...)
}

// Names returns every rule name, sorted.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Suggest returns known rule names close to an unknown one, best first.
func (r *Registry) Suggest(name string) []string {
	matches := fuzzy.Find(name, r.names)
	out := make([]string, 0, 3)
	for i, m := range matches {
		if i == 3 {
			break
		}
		out = append(out, m.Str)
	}
	return out
}
