package flight

import (
	"errors"
	"fmt"

	"shipjoy/utils"
)

var ErrInvalidTuning = errors.New("invalid flight tuning")

// Tuning は飛行モデルの定数です。単位は px と秒です。
type Tuning struct {
	RotationSpeed float64 `yaml:"rotation_speed"` // rad/s
	Thrust        float64 `yaml:"thrust"`         // px/s²
	ReverseThrust float64 `yaml:"reverse_thrust"` // px/s²
	Friction      float64 `yaml:"friction"`       // ティックごとの速度倍率
	PowerRegen    float64 `yaml:"power_regen"`    // /s
	ThrustCost    float64 `yaml:"thrust_cost"`    // /s
	MaxPower      float64 `yaml:"max_power"`
	MaxHealth     float64 `yaml:"max_health"`
}

func DefaultTuning() Tuning {
	return Tuning{
		RotationSpeed: 3,
		Thrust:        200,
		ReverseThrust: 100,
		Friction:      0.98,
		PowerRegen:    100,
		ThrustCost:    20,
		MaxPower:      1000,
		MaxHealth:     100,
	}
}

func (t Tuning) Validate() error {
	for name, v := range map[string]float64{
		"rotation_speed": t.RotationSpeed,
		"thrust":         t.Thrust,
		"reverse_thrust": t.ReverseThrust,
		"power_regen":    t.PowerRegen,
		"thrust_cost":    t.ThrustCost,
	} {
		if !utils.IsFinite(v) || v < 0 {
			return fmt.Errorf("%w: %s = %v", ErrInvalidTuning, name, v)
		}
	}
	if !utils.IsFinite(t.Friction) || t.Friction <= 0 || t.Friction > 1 {
		return fmt.Errorf("%w: friction = %v, want (0, 1]", ErrInvalidTuning, t.Friction)
	}
	if !utils.IsFinite(t.MaxPower) || t.MaxPower <= 0 {
		return fmt.Errorf("%w: max_power = %v", ErrInvalidTuning, t.MaxPower)
	}
	if !utils.IsFinite(t.MaxHealth) || t.MaxHealth <= 0 {
		return fmt.Errorf("%w: max_health = %v", ErrInvalidTuning, t.MaxHealth)
	}
	return nil
}
