// Package preflight provides pre-flight validation for required binaries.
package preflight

import (
	"os/exec"
)

// BinaryCheck represents a required binary and its purpose.
type BinaryCheck struct {
	Name        string
	Required    bool   // false = warning only
	InstallHint string
}

// requiredBinaries defines binaries that must be present for deckhand to function.
var requiredBinaries = []BinaryCheck{
	{
		Name:        "systemctl",
		Required:    true,
		InstallHint: "deckhand drives systemd; it needs a host with systemctl on PATH",
	},
}

// optionalBinaries defines binaries that enhance deckhand but are not strictly required.
var optionalBinaries = []BinaryCheck{
	{
		Name:        "sops",
		Required:    false,
		InstallHint: "Install sops for encrypted binding overlays: brew install sops",
	},
	{
		Name:        "podman",
		Required:    false,
		InstallHint: "Install podman to run .container quadlet units: https://podman.io/docs/installation",
	},
}

// CheckRequiredBinaries returns missing required binaries.
func CheckRequiredBinaries() []BinaryCheck {
	var missing []BinaryCheck
	for _, bin := range requiredBinaries {
		if _, err := exec.LookPath(bin.Name); err != nil {
			missing = append(missing, bin)
		}
	}
	return missing
}

// CheckOptionalBinaries returns missing optional binaries.
func CheckOptionalBinaries() []BinaryCheck {
	var missing []BinaryCheck
	for _, bin := range optionalBinaries {
		if _, err := exec.LookPath(bin.Name); err != nil {
			missing = append(missing, bin)
		}
	}
	return missing
}

// CheckAll performs all pre-flight checks. Errors are missing required
// binaries, warnings are missing optional ones.
func CheckAll() (warnings []string, errors []string) {
	for _, bin := range CheckRequiredBinaries() {
		errors = append(errors, bin.Name+": "+bin.InstallHint)
	}
	for _, bin := range CheckOptionalBinaries() {
		warnings = append(warnings, bin.Name+": "+bin.InstallHint)
	}
	return warnings, errors
}

// IsBinaryAvailable checks if a specific binary is available in PATH.
func IsBinaryAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
