package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command with args and the given config file contents
func run(t *testing.T, configContent string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")

	path := filepath.Join(t.TempDir(), "modelkit.yml")
	require.NoError(t, os.WriteFile(path, []byte(configContent), 0644))

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", path, "--no-color"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	assert.Equal(t, "modelkit", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, expected := range []string{"version", "describe", "conventions", "materialize"} {
		assert.Contains(t, names, expected)
	}

	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("no-color"))
}

func TestVersionCommand(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	Version = "1.0.0-test"
	GitCommit = "abc123"
	BuildDate = "2025-01-01"
	GoVersion = "go1.23"

	var stdout bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	// An invalid config path proves version does not load configuration
	cmd.SetArgs([]string{"--config", "/nonexistent/modelkit.yml", "version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), "modelkit version: 1.0.0-test")
	assert.Contains(t, stdout.String(), "Git commit: abc123")
	assert.Contains(t, stdout.String(), "Go version: go1.23")
}

func TestInvalidConfig(t *testing.T) {
	_, stderr, err := run(t, "log:\n  level: loud\n", "conventions")

	require.Error(t, err)
	assert.Contains(t, stderr, "CONFIGURATION ERROR")
}

func TestConventionsCommand(t *testing.T) {
	tests := []struct {
		name     string
		config   string
		order    []string
		excluded string
		disabled bool
	}{
		{
			name:  "default order",
			order: []string{"keyless", "key_attribute", "concurrency_check", "value_generation", "discriminator"},
		},
		{
			name:     "disabled convention",
			config:   "conventions:\n  disabled: [discriminator]\n",
			order:    []string{"keyless", "key_attribute", "concurrency_check", "value_generation"},
			excluded: "entity_type_removed",
			disabled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := run(t, tt.config, "conventions")
			require.NoError(t, err)

			last := -1
			for _, name := range tt.order {
				idx := bytes.Index([]byte(stdout), []byte(name+" "))
				require.GreaterOrEqual(t, idx, 0, "missing %s in:\n%s", name, stdout)
				assert.Greater(t, idx, last, "%s out of order", name)
				last = idx
			}
			assert.Contains(t, stdout, "property_added")
			if tt.excluded != "" {
				assert.NotContains(t, stdout, tt.excluded)
			}
			if tt.disabled {
				assert.Contains(t, stdout, "disabled: discriminator")
			}
		})
	}
}
