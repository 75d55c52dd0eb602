package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/abdidvp/lintfix/internal/domain"
)

var (
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	hintStyle          = lipgloss.NewStyle().Foreground(dim).Italic(true)
)

// RenderRules lists the rule catalogue: fixable rules in fix order first,
// then rules that are only reported.
func RenderRules(catalog domain.RuleCatalog) string {
	type row struct {
		name     string
		priority int
		scope    domain.Scope
	}
	var fixable, reportOnly []row
	for _, name := range catalog.Names() {
		def, _ := catalog.Get(name)
		if p, err := catalog.PriorityOf(name); err == nil {
			fixable = append(fixable, row{name, p, def.EffectiveScope()})
			continue
		}
		reportOnly = append(reportOnly, row{name: name, scope: def.EffectiveScope()})
	}
	for i := 1; i < len(fixable); i++ {
		for j := i; j > 0 && fixable[j].priority < fixable[j-1].priority; j-- {
			fixable[j], fixable[j-1] = fixable[j-1], fixable[j]
		}
	}

	always := make(map[string]bool)
	for _, n := range catalog.AlwaysRunRules() {
		always[n] = true
	}

	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %s %s\n", sectionHeaderStyle.Render("Fixable"), dimStyle.Render(fmt.Sprintf("(%d)", len(fixable))))
	for _, r := range fixable {
		line := fmt.Sprintf("    %s %s  %s  %s",
			dimStyle.Render(fmt.Sprintf("%3d", r.priority)),
			titleStyle.Render(padRight(r.name, 28)),
			faintStyle.Render(padRight(string(r.scope), 5)),
			dimStyle.Render(Title(r.name)))
		if always[r.name] {
			line += "  " + passStyle.Render("format")
		}
		b.WriteString(line + "\n")
	}

	if len(reportOnly) > 0 {
		b.WriteString("\n")
		fmt.Fprintf(&b, "  %s %s\n", sectionHeaderStyle.Render("Report only"), dimStyle.Render(fmt.Sprintf("(%d)", len(reportOnly))))
		for _, r := range reportOnly {
			fmt.Fprintf(&b, "        %s  %s\n", titleStyle.Render(padRight(r.name, 28)), dimStyle.Render(Title(r.name)))
		}
	}

	b.WriteString("\n")
	b.WriteString("  " + hintStyle.Render("Rules marked format run on every file with lintfix format."))
	b.WriteString("\n")
	return b.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
