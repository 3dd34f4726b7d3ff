package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tick_trader/internal/models"
)

func writeCoins(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coins.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCoinParams_VariantDefaultsApplied(t *testing.T) {
	path := writeCoins(t, `
coins:
  - symbol: ETHUSDT
    strategy_variant: selective
  - symbol: DOGEUSDT
    strategy_variant: aggressive
    leverage: 5
    excluded: true
`)

	set, err := LoadCoinParams(path)
	require.NoError(t, err)
	require.Len(t, set, 2)

	eth := set["ETHUSDT"]
	assert.Equal(t, models.VariantSelective, eth.Variant)
	assert.Equal(t, 0.0008, eth.HybridVolThresholdPct)
	assert.Equal(t, 0.0030, eth.ATRVolThresholdPct)
	assert.Equal(t, 0.48, eth.BBBandMin)
	assert.Equal(t, 0.52, eth.BBBandMax)
	assert.Equal(t, 300, eth.CooldownSeconds)
	assert.Equal(t, 10, eth.Leverage)
	assert.Equal(t, 2.0, eth.HardStopATRMultiplier)
	assert.Equal(t, 0.01, eth.MinLossFloorPct)

	doge := set["DOGEUSDT"]
	assert.Equal(t, 180, doge.CooldownSeconds)
	assert.Equal(t, 5, doge.Leverage, "explicit value beats the variant default")
	assert.True(t, doge.Excluded)

	assert.Equal(t, []string{"ETHUSDT"}, set.Symbols(), "excluded symbols are not traded")
}

func TestLoadCoinParams_ExplicitThresholdsKept(t *testing.T) {
	path := writeCoins(t, `
coins:
  - symbol: ETHUSDT
    strategy_variant: conservative
    hybrid_vol_threshold_pct: 0.0006
    atr_vol_threshold_pct: 0.0020
    bb_band_min: 0.45
    bb_band_max: 0.55
`)

	set, err := LoadCoinParams(path)
	require.NoError(t, err)

	eth := set["ETHUSDT"]
	assert.Equal(t, 0.0006, eth.HybridVolThresholdPct)
	assert.Equal(t, 0.0020, eth.ATRVolThresholdPct)
	assert.Equal(t, 0.45, eth.BBBandMin)
	assert.Equal(t, 0.55, eth.BBBandMax)
}

func TestLoadCoinParams_InvalidBandWindow(t *testing.T) {
	path := writeCoins(t, `
coins:
  - symbol: ETHUSDT
    strategy_variant: selective
    bb_band_min: 0.6
    bb_band_max: 0.4
`)
	_, err := LoadCoinParams(path)
	require.Error(t, err)
}

func TestLoadCoinParams_DuplicateSymbol(t *testing.T) {
	path := writeCoins(t, `
coins:
  - symbol: ETHUSDT
    strategy_variant: selective
  - symbol: ETHUSDT
    strategy_variant: aggressive
`)
	_, err := LoadCoinParams(path)
	require.Error(t, err)
}

func TestLoadCoinParams_UnknownVariant(t *testing.T) {
	path := writeCoins(t, `
coins:
  - symbol: ETHUSDT
    strategy_variant: yolo
`)
	_, err := LoadCoinParams(path)
	require.Error(t, err)
}

func TestLoadCoinParams_MissingFile(t *testing.T) {
	_, err := LoadCoinParams(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestCoinParamsValidate_Invariants(t *testing.T) {
	base := models.CoinParams{Symbol: "ETHUSDT", Variant: models.VariantConservative}.ApplyVariantDefaults()
	require.NoError(t, base.Validate())

	broken := base
	broken.HardStopATRMultiplier = 0.5
	assert.Error(t, broken.Validate())

	broken = base
	broken.MinLossFloorPct = 0
	assert.Error(t, broken.Validate())

	broken = base
	broken.PositionSizeFraction = 1.5
	assert.Error(t, broken.Validate())

	broken = base
	broken.Leverage = 0
	assert.Error(t, broken.Validate())
}
