package tui

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/camelcase"

	"github.com/abdidvp/lintfix/internal/domain"
)

// ── Warm palette ──
var (
	accent  = lipgloss.Color("#D97706") // amber
	fg      = lipgloss.Color("#E8E6E3") // warm light gray
	dim     = lipgloss.Color("#6B7280") // muted gray
	faint   = lipgloss.Color("#3F3F46") // very dim
	success = lipgloss.Color("#22C55E") // green
	danger  = lipgloss.Color("#EF4444") // red
	warning = lipgloss.Color("#F59E0B") // amber-yellow
	info    = lipgloss.Color("#8B949E") // soft blue-gray
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Align(lipgloss.Center)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 4).
			Align(lipgloss.Center).
			Width(68)

	dimStyle      = lipgloss.NewStyle().Foreground(dim)
	faintStyle    = lipgloss.NewStyle().Foreground(faint)
	passStyle     = lipgloss.NewStyle().Foreground(success)
	errorTagStyle = lipgloss.NewStyle().Foreground(danger).Bold(true)
	warnTagStyle  = lipgloss.NewStyle().Foreground(warning).Bold(true)
	infoTagStyle  = lipgloss.NewStyle().Foreground(info)
	fileStyle     = lipgloss.NewStyle().Bold(true).Foreground(fg)
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(fg)
	separatorLine = faintStyle.Render(strings.Repeat("─", 64))
)

// Title turns a rule name into words: "SpaceAfterIf" becomes
// "Space After If".
func Title(rule string) string {
	return strings.Join(camelcase.Split(rule), " ")
}

// RenderLintResult formats a lint run for the terminal. File keys are shown
// relative to baseDir when they live under it.
func RenderLintResult(res *domain.LintResult, baseDir string) string {
	var b strings.Builder
	s := res.Summary

	// ── Header ──
	title := headerStyle.Render("lintfix")
	counts := dimStyle.Render(fmt.Sprintf("%d files  ·  ", len(res.Files))) +
		countLabel(s.TotalFound, "found", fg) + dimStyle.Render("  ·  ") +
		countLabel(s.TotalFixed, "fixed", success) + dimStyle.Render("  ·  ") +
		countLabel(s.TotalRemaining, "remaining", remainingColor(s))
	b.WriteString(boxStyle.Render(title + "\n\n" + counts))
	b.WriteString("\n\n")

	// ── Files ──
	printed := 0
	for _, key := range res.Keys() {
		fe := res.Files[key]
		if len(fe.Errors) == 0 {
			continue
		}
		if printed > 0 {
			b.WriteString("\n")
		}
		renderFile(&b, displayPath(key, baseDir), fe)
		printed++
	}

	// ── Parse errors ──
	if len(res.ParseErrors) > 0 {
		b.WriteString("\n  " + separatorLine + "\n\n")
		b.WriteString("  " + titleStyle.Render("Parse errors") + "\n\n")
		keys := make([]string, 0, len(res.ParseErrors))
		for k := range res.ParseErrors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "    %s\n", fileStyle.Render(displayPath(k, baseDir)))
			for _, msg := range res.ParseErrors[k] {
				fmt.Fprintf(&b, "      %s\n", dimStyle.Render(msg))
			}
		}
	}

	if s.TotalRemaining == 0 {
		if printed > 0 {
			b.WriteString("\n")
		}
		b.WriteString("  " + passStyle.Render("No remaining violations.") + "\n")
	}

	b.WriteString("\n")
	return b.String()
}

func renderFile(b *strings.Builder, path string, fe *domain.FileErrors) {
	fixed := fe.FixedCount()
	header := "  " + fileStyle.Render(path)
	if fixed > 0 {
		header += "  " + passStyle.Render(fmt.Sprintf("%d fixed", fixed))
	}
	b.WriteString(header + "\n")

	violations := append([]*domain.Violation(nil), fe.Errors...)
	sort.SliceStable(violations, func(i, j int) bool {
		if violations[i].Line != violations[j].Line {
			return violations[i].Line < violations[j].Line
		}
		return violations[i].ID < violations[j].ID
	})

	for _, v := range violations {
		loc := dimStyle.Render(fmt.Sprintf("%5d", v.Line))
		if v.Fixed {
			fmt.Fprintf(b, "  %s %s  %s  %s\n", loc, passStyle.Render("fixed"), faintStyle.Render(Title(v.Rule)), faintStyle.Render(v.Message))
			continue
		}
		fmt.Fprintf(b, "  %s %s  %s  %s\n", loc, severityTag(v.Severity), titleStyle.Render(Title(v.Rule)), dimStyle.Render(v.Message))
	}
}

func severityTag(s domain.Severity) string {
	switch s {
	case domain.SeverityError:
		return errorTagStyle.Render("error")
	case domain.SeverityWarning:
		return warnTagStyle.Render("warn ")
	case domain.SeverityInfo:
		return infoTagStyle.Render("info ")
	default:
		return faintStyle.Render("?    ")
	}
}

func countLabel(n int, label string, color lipgloss.Color) string {
	return lipgloss.NewStyle().Bold(true).Foreground(color).Render(fmt.Sprintf("%d %s", n, label))
}

func remainingColor(s domain.Summary) lipgloss.Color {
	switch {
	case s.Remaining[domain.SeverityError] > 0:
		return danger
	case s.TotalRemaining > 0:
		return warning
	default:
		return success
	}
}

func displayPath(key, baseDir string) string {
	if key == domain.SourceKey {
		return "<source>"
	}
	if baseDir == "" || !filepath.IsAbs(key) {
		return key
	}
	rel, err := filepath.Rel(baseDir, key)
	if err != nil || strings.HasPrefix(rel, "..") {
		return key
	}
	return filepath.ToSlash(rel)
}
