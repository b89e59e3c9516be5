package usecase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuiltinProfiles(t *testing.T) {
	relaxed := RelaxedProfile()
	require.NoError(t, relaxed.validate())
	require.Equal(t, 3, relaxed.MinConditions)
	require.Empty(t, relaxed.AvoidHours)

	strict := StrictProfile()
	require.NoError(t, strict.validate())
	require.Equal(t, 4, strict.MinConditions)
	require.True(t, strict.StrictVolume)
	require.Equal(t, []int{3, 4, 5, 6}, strict.AvoidHours)
	require.Equal(t, 30.0, strict.RSIOversold)
}

func TestLoadProfilesMissingFile(t *testing.T) {
	profiles, err := LoadProfiles(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Contains(t, profiles, "crypto_relaxed")
	require.Contains(t, profiles, "crypto_strict")
}

func TestLoadProfilesOverride(t *testing.T) {
	content := `
aggressive:
  rsi_period: 14
  rsi_oversold: 45
  rsi_overbought: 55
  ema_fast: 9
  ema_slow: 21
  macd_fast: 12
  macd_slow: 26
  macd_signal: 9
  bb_period: 20
  bb_std_dev: 2
  volume_period: 20
  volume_multiplier: 0.8
  min_conditions: 2
  stop_loss_pct: 1.5
  take_profit_pct: 2.5
`
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	profiles, err := LoadProfiles(path)
	require.NoError(t, err)

	p, ok := profiles["aggressive"]
	require.True(t, ok)
	require.Equal(t, "aggressive", p.Name) // name defaults to the map key
	require.Equal(t, 2, p.MinConditions)
	require.Equal(t, 45.0, p.RSIOversold)

	// Built-ins survive alongside the file contents.
	require.Contains(t, profiles, "crypto_relaxed")
}

func TestLoadProfilesRejectsInvalid(t *testing.T) {
	content := `
broken:
  rsi_period: 14
  ema_fast: 9
  ema_slow: 21
  min_conditions: 9
  stop_loss_pct: 2
  take_profit_pct: 3
`
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadProfiles(path)
	require.Error(t, err)
}
