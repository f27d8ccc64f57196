package vars

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromYAML loads a values overlay file and flattens it into bindings.
// Nested keys are joined with underscores and uppercased, so
// {jellyfin: {port: 8096}} becomes JELLYFIN_PORT=8096. Scalars are
// stringified; lists are rejected since bindings are flat values.
func FromYAML(path string) (Bindings, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigMissing, path)
		}
		return nil, fmt.Errorf("read values file: %w", err)
	}

	var values map[string]any
	if err := yaml.Unmarshal(content, &values); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigMalformed, path, err)
	}

	bindings := make(Bindings)
	if err := flatten("", values, bindings); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigMalformed, path, err)
	}
	return bindings, nil
}

// flatten walks a parsed YAML map and writes uppercased underscore-joined
// keys into out.
func flatten(prefix string, values map[string]any, out Bindings) error {
	for k, v := range values {
		key := strings.ToUpper(k)
		if prefix != "" {
			key = prefix + "_" + key
		}

		switch val := v.(type) {
		case map[string]any:
			if err := flatten(key, val, out); err != nil {
				return err
			}
		case []any:
			return fmt.Errorf("key %s: lists are not supported in values overlays", key)
		case nil:
			out[key] = ""
		default:
			out[key] = toString(val)
		}
	}
	return nil
}

// toString converts a scalar value to its string representation.
func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int, int8, int16, int32, int64:
		return fmt.Sprintf("%d", val)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case bool:
		return fmt.Sprintf("%t", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
