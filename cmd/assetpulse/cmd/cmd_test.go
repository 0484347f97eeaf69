package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmetric/assetpulse/internal/core"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	expected := []string{"serve", "status", "runs", "assets", "doctor", "init", "version"}
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range expected {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestPersistentFlagsRegistered(t *testing.T) {
	for _, flag := range []string{"config", "log-level", "log-format", "quiet"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), "missing flag %s", flag)
	}
}

func TestInitWritesConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	require.NoError(t, runInit(nil, nil))

	data, err := os.ReadFile(".assetpulse.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "storage:")

	info, err := os.Stat(".assetpulse")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestInitRefusesOverwrite(t *testing.T) {
	t.Chdir(t.TempDir())

	require.NoError(t, runInit(nil, nil))
	err := runInit(nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
}

func TestLoadProducers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "producers.yaml")
	content := `producers:
  - asset_key: warehouse/users
    step_keys: [build_users]
  - asset_key: warehouse/orders
    step_keys: [build_orders, backfill_orders]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	producers, err := loadProducers(path)
	require.NoError(t, err)
	require.Len(t, producers, 2)
	assert.Equal(t, core.AssetKey("warehouse/users"), producers[0].Key)
	assert.Equal(t, []core.StepKey{"build_orders", "backfill_orders"}, producers[1].StepKeys)
}

func TestLoadProducersRejectsEmptyKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "producers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("producers:\n  - step_keys: [a]\n"), 0o644))

	_, err := loadProducers(path)
	require.Error(t, err)
}

func TestRunsFilterFromFlags(t *testing.T) {
	runsStatus = "started, canceling"
	runsJob = "nightly"
	t.Cleanup(func() { runsStatus, runsJob = "", "" })

	filter, err := runsFilterFromFlags()
	require.NoError(t, err)
	assert.Equal(t, "nightly", filter.JobName)
	assert.Equal(t, []core.RunStatus{core.RunStatusStarted, core.RunStatusCanceling}, filter.Statuses)
}

func TestRunsFilterRejectsUnknownStatus(t *testing.T) {
	runsStatus = "bogus"
	t.Cleanup(func() { runsStatus = "" })

	_, err := runsFilterFromFlags()
	require.Error(t, err)
}
