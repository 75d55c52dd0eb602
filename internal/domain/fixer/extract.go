package fixer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/abdidvp/lintfix/internal/domain"
)

var unescaper = strings.NewReplacer(`\\`, `\`, `\'`, `'`, `\"`, `"`, `\$`, `$`)

// ExtractVars pulls the rule's declared variables out of a violation
// message. Extractors that do not match are left out.
func ExtractVars(def *domain.RuleDefinition, message string) domain.Vars {
	vars := make(domain.Vars, len(def.Variables))
	for _, x := range def.Variables {
		if x.Pattern == nil {
			continue
		}
		m := x.Pattern.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		raw := m[0]
		switch {
		case x.Group > 0 && x.Group < len(m):
			raw = m[x.Group]
		case x.Group > 0:
			continue
		case len(m) > 1:
			raw = m[1]
		}
		raw = unescaper.Replace(raw)

		switch x.Type {
		case domain.VarNumber:
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				continue
			}
			vars[x.Name] = n
		case domain.VarArray:
			vars[x.Name] = splitList(raw)
		default:
			vars[x.Name] = raw
		}
	}
	return vars
}

func splitList(raw string) []string {
	raw = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(raw), "["), "]")
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var placeholder = regexp.MustCompile(`\{\{(\w+)\}\}`)

// substitute replaces {{NAME}} placeholders with variable values passed
// through escape. Unknown placeholders are an error.
func substitute(tmpl string, vars domain.Vars, escape func(string) string) (string, error) {
	var missing string
	out := placeholder.ReplaceAllStringFunc(tmpl, func(ph string) string {
		name := placeholder.FindStringSubmatch(ph)[1]
		v, ok := vars[name]
		if !ok {
			missing = name
			return ph
		}
		return escape(formatVar(v))
	})
	if missing != "" {
		return "", fmt.Errorf("template variable %s not extracted", missing)
	}
	return out, nil
}

func formatVar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case []string:
		return strings.Join(t, ", ")
	default:
		return fmt.Sprint(t)
	}
}
