package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/X1-Harness/pkg/accounts"
	"github.com/fortiblox/X1-Harness/pkg/svm"
	"github.com/fortiblox/X1-Harness/pkg/svm/instruction"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, uint64(svm.CUDefault), cfg.ComputeUnitLimit)
	assert.Equal(t, accounts.DefaultRent().LamportsPerByteYear, cfg.Rent.LamportsPerByteYear)

	policy, err := instruction.PolicyFromNames(cfg.Errors.InstructionKinds)
	require.NoError(t, err)
	assert.Equal(t, instruction.DefaultPolicy().InstructionKinds(), policy.InstructionKinds())
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "harness.yaml", `
compute_unit_limit: 5000
rent:
  lamports_per_byte_year: 1000
errors:
  instruction_kinds: [PrivilegeEscalation]
log:
  level: debug
  format: json
fixtures:
  backend: badger
  path: ""
  compress: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(5000), cfg.ComputeUnitLimit)
	assert.Equal(t, uint64(1000), cfg.Rent.LamportsPerByteYear)
	assert.Equal(t, accounts.DefaultRent().ExemptionThreshold, cfg.Rent.ExemptionThreshold)
	assert.Equal(t, []string{"PrivilegeEscalation"}, cfg.Errors.InstructionKinds)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
	assert.Equal(t, FixtureConfig{Backend: BackendBadger}, cfg.Fixtures)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "harness.toml", "compute_unit_limit = 5000\n")
	t.Setenv("X1H_COMPUTE_UNIT_LIMIT", "7000")
	t.Setenv("X1H_RENT_EXEMPTION_THRESHOLD", "1.5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(7000), cfg.ComputeUnitLimit)
	assert.Equal(t, 1.5, cfg.Rent.ExemptionThreshold)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeConfig(t, "bad.yaml", "compute_unit_limit: 0\n")
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero compute limit", func(c *Config) { c.ComputeUnitLimit = 0 }},
		{"compute limit above max", func(c *Config) { c.ComputeUnitLimit = svm.CUMax + 1 }},
		{"cache size", func(c *Config) { c.ProgramCacheSize = 0 }},
		{"negative threshold", func(c *Config) { c.Rent.ExemptionThreshold = -1 }},
		{"unknown kind", func(c *Config) { c.Errors.InstructionKinds = []string{"Nope"} }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"bolt without path", func(c *Config) { c.Fixtures.Path = "" }},
		{"backend", func(c *Config) { c.Fixtures.Backend = "sqlite" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrConfigInvalid)
		})
	}
}

func TestApplyLog(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "warn"
	require.NoError(t, cfg.ApplyLog())
	t.Cleanup(func() { _ = Default().ApplyLog() })
}
