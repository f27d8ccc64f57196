package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	expected := []string{"deploy", "status", "render", "validate", "orphans", "doctor", "history", "update"}

	registered := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}

	for _, name := range expected {
		assert.True(t, registered[name], "command %s not registered", name)
	}
}

func TestDeployFlags(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"deploy"})
	require.NoError(t, err)

	assert.NotNil(t, cmd.Flags().Lookup("dry-run"))
	assert.NotNil(t, cmd.Flags().Lookup("values"))
	assert.NotNil(t, cmd.Flags().Lookup("secrets"))
	assert.NotNil(t, cmd.Flags().Lookup("user"))
}

func TestVersionTemplate(t *testing.T) {
	assert.Equal(t, "0.3.1", rootCmd.Version)
}
