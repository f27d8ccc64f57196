// Package vars loads the flat key=value bindings that drive template rendering.
package vars

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Load errors.
var (
	// ErrConfigMissing indicates the bindings file does not exist.
	ErrConfigMissing = errors.New("bindings file not found")

	// ErrConfigMalformed indicates the bindings file could not be parsed
	// as flat key=value pairs.
	ErrConfigMalformed = errors.New("bindings file malformed")
)

// keyPattern matches environment-variable style names.
var keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Bindings maps variable names to string values. Bindings are loaded once
// at startup and treated as immutable for the duration of a run; merge
// operations return a new map rather than mutating the receiver.
type Bindings map[string]string

// Load reads a flat key=value file and returns its bindings.
// Lines may be blank, comments starting with #, or KEY=value pairs with an
// optional "export " prefix. Values may be wrapped in single or double
// quotes. Load is all-or-nothing: any unparseable line fails the whole file.
func Load(path string) (Bindings, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigMissing, path)
		}
		return nil, fmt.Errorf("open bindings file: %w", err)
	}
	defer f.Close()

	bindings := make(Bindings)
	scanner := bufio.NewScanner(f)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("%w: %s:%d: expected KEY=value, got %q", ErrConfigMalformed, path, lineNo, line)
		}

		key = strings.TrimSpace(key)
		if !keyPattern.MatchString(key) {
			return nil, fmt.Errorf("%w: %s:%d: invalid variable name %q", ErrConfigMalformed, path, lineNo, key)
		}

		bindings[key] = unquote(strings.TrimSpace(value))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read bindings file: %w", err)
	}

	return bindings, nil
}

// Merge returns a new Bindings with overlay values layered over the base.
// Overlay keys win on conflict; neither input is mutated.
func (b Bindings) Merge(overlay Bindings) Bindings {
	merged := make(Bindings, len(b)+len(overlay))
	for k, v := range b {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

// Lookup returns the value bound to name.
func (b Bindings) Lookup(name string) (string, bool) {
	v, ok := b[name]
	return v, ok
}

// PortKey returns the binding name that holds a service's published port,
// following the <NAME>_PORT convention (e.g. "jellyfin" -> "JELLYFIN_PORT").
func PortKey(service string) string {
	return strings.ToUpper(service) + "_PORT"
}

// unquote strips one matching pair of surrounding quotes, shell-style.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
