// Package template renders unit templates by substituting ${NAME} placeholders.
package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/calebsnider/deckhand/internal/vars"
)

// placeholderPattern matches ${NAME} placeholders with env-style names.
var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// UnboundError reports placeholders with no matching binding.
// A template referencing any unbound variable never renders partially: an
// unit with a literal ${NAME} left in it must not reach the service manager.
type UnboundError struct {
	// Names holds the missing variable names, sorted and deduplicated.
	Names []string
}

func (e *UnboundError) Error() string {
	return fmt.Sprintf("unbound variables: ${%s}", strings.Join(e.Names, "}, ${"))
}

// Render substitutes every ${NAME} occurrence in text with its bound value.
// Substitution is a single textual pass: values are inserted verbatim with
// no recursive expansion or escaping. Returns an UnboundError naming every
// placeholder that has no binding.
func Render(text string, bindings vars.Bindings) (string, error) {
	missing := make(map[string]bool)

	result := placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]

		value, ok := bindings.Lookup(name)
		if !ok {
			missing[name] = true
			return match
		}
		return value
	})

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", &UnboundError{Names: names}
	}

	return result, nil
}

// References returns the sorted set of variable names a template refers to.
func References(text string) []string {
	seen := make(map[string]bool)
	for _, match := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		seen[match[1]] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
