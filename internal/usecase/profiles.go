package usecase

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StrategyProfile bundles the tunable parameters of the signal analyzer.
type StrategyProfile struct {
	Name             string  `yaml:"name"`
	RSIPeriod        int     `yaml:"rsi_period"`
	RSIOversold      float64 `yaml:"rsi_oversold"`
	RSIOverbought    float64 `yaml:"rsi_overbought"`
	EMAFast          int     `yaml:"ema_fast"`
	EMASlow          int     `yaml:"ema_slow"`
	MACDFast         int     `yaml:"macd_fast"`
	MACDSlow         int     `yaml:"macd_slow"`
	MACDSignal       int     `yaml:"macd_signal"`
	BBPeriod         int     `yaml:"bb_period"`
	BBStdDev         float64 `yaml:"bb_std_dev"`
	VolumePeriod     int     `yaml:"volume_period"`
	VolumeMultiplier float64 `yaml:"volume_multiplier"`
	StrictVolume     bool    `yaml:"strict_volume"` // require volume strictly above the threshold
	MinConditions    int     `yaml:"min_conditions"`
	StopLossPct      float64 `yaml:"stop_loss_pct"`
	TakeProfitPct    float64 `yaml:"take_profit_pct"`
	AvoidHours       []int   `yaml:"avoid_hours"` // UTC hours with no signal generation
}

// RelaxedProfile trades around the clock and opens on 3 of 4 conditions.
func RelaxedProfile() StrategyProfile {
	return StrategyProfile{
		Name:             "crypto_relaxed",
		RSIPeriod:        14,
		RSIOversold:      40,
		RSIOverbought:    60,
		EMAFast:          9,
		EMASlow:          21,
		MACDFast:         12,
		MACDSlow:         26,
		MACDSignal:       9,
		BBPeriod:         20,
		BBStdDev:         2,
		VolumePeriod:     20,
		VolumeMultiplier: 1.0,
		MinConditions:    3,
		StopLossPct:      2.0,
		TakeProfitPct:    3.5,
	}
}

// StrictProfile requires all four conditions, above-average volume and skips
// the low-liquidity early UTC hours.
func StrictProfile() StrategyProfile {
	p := RelaxedProfile()
	p.Name = "crypto_strict"
	p.RSIOversold = 30
	p.RSIOverbought = 70
	p.VolumeMultiplier = 1.2
	p.StrictVolume = true
	p.MinConditions = 4
	p.AvoidHours = []int{3, 4, 5, 6}
	return p
}

func (p StrategyProfile) validate() error {
	if p.RSIPeriod <= 0 || p.EMAFast <= 0 || p.EMASlow <= 0 {
		return fmt.Errorf("profile %s: indicator periods must be positive", p.Name)
	}
	if p.MinConditions < 1 || p.MinConditions > 4 {
		return fmt.Errorf("profile %s: min_conditions must be 1..4, got %d", p.Name, p.MinConditions)
	}
	if p.StopLossPct <= 0 || p.TakeProfitPct <= 0 {
		return fmt.Errorf("profile %s: stop loss and take profit must be positive", p.Name)
	}
	return nil
}

// LoadProfiles reads strategy profiles from a YAML file keyed by profile
// name. Missing file is not an error: the built-in profiles are returned so
// the bot runs without a config file.
func LoadProfiles(path string) (map[string]StrategyProfile, error) {
	profiles := map[string]StrategyProfile{
		"crypto_relaxed": RelaxedProfile(),
		"crypto_strict":  StrictProfile(),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return profiles, nil
		}
		return nil, fmt.Errorf("read strategy profiles: %w", err)
	}

	var loaded map[string]StrategyProfile
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse strategy profiles: %w", err)
	}
	for name, p := range loaded {
		if p.Name == "" {
			p.Name = name
		}
		if err := p.validate(); err != nil {
			return nil, err
		}
		profiles[name] = p
	}
	return profiles, nil
}
