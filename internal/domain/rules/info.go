package rules

import (
	"sort"

	"github.com/abdidvp/lintfix/internal/domain"
)

// Info is the public description of one rule.
type Info struct {
	Name     string       `json:"name"`
	Scope    domain.Scope `json:"scope"`
	Fixable  bool         `json:"fixable"`
	Priority int          `json:"priority,omitempty"`
	Format   bool         `json:"format,omitempty"`
	Triggers []string     `json:"triggers,omitempty"`
}

// Describe lists the catalogue, fixable rules first in fix order, then the
// report-only rules by name.
func Describe(c domain.RuleCatalog) []Info {
	always := make(map[string]bool)
	for _, n := range c.AlwaysRunRules() {
		always[n] = true
	}

	infos := make([]Info, 0, len(c.Names()))
	for _, name := range c.Names() {
		def, _ := c.Get(name)
		info := Info{
			Name:     name,
			Scope:    def.EffectiveScope(),
			Fixable:  def.Fixable(),
			Format:   always[name],
			Triggers: def.Triggers,
		}
		if p, err := c.PriorityOf(name); err == nil {
			info.Priority = p
		}
		infos = append(infos, info)
	}

	sort.SliceStable(infos, func(i, j int) bool {
		a, b := infos[i], infos[j]
		if a.Fixable != b.Fixable {
			return a.Fixable
		}
		if a.Fixable && a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.Name < b.Name
	})
	return infos
}
