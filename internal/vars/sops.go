package vars

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// FromSOPS decrypts a SOPS-encrypted YAML file by shelling out to the sops
// binary and flattens the result into bindings, using the same key scheme
// as FromYAML.
func FromSOPS(ctx context.Context, file string) (Bindings, error) {
	cmd := exec.CommandContext(ctx, "sops", "--input-type", "yaml", "--output-type", "json", "-d", file)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("sops decrypt failed for %s: %w: %s", file, err, stderr.String())
	}

	var values map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &values); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigMalformed, file, err)
	}

	bindings := make(Bindings)
	if err := flatten("", values, bindings); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigMalformed, file, err)
	}
	return bindings, nil
}
