package application

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"shipjoy/server/application/catalog"
	"shipjoy/server/application/flight"
	"shipjoy/server/application/input"
	"shipjoy/utils"
)

//go:embed default_config.yaml
var defaultConfigYAML []byte

var ErrInvalidConfig = errors.New("invalid config")

type LobbyConfig struct {
	CountdownSeconds float64 `yaml:"countdown_seconds"`
}

type ArenaConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Config はゲーム全体の調整値です。組み込みの default_config.yaml を基に、指定ファイルの値で上書きします。
type Config struct {
	TickRate int            `yaml:"tick_rate"`
	Lobby    LobbyConfig    `yaml:"lobby"`
	Arena    ArenaConfig    `yaml:"arena"`
	Flight   flight.Tuning  `yaml:"flight"`
	Ships    []catalog.Ship `yaml:"ships"`
}

// DefaultConfig は組み込みの設定を返します。
func DefaultConfig() *Config {
	cfg, err := ParseConfig(nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

// ParseConfig は組み込みの設定に data を重ねて検証します。data が空なら組み込みの設定のみです。
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultConfigYAML, cfg); err != nil {
		return nil, fmt.Errorf("%w: embedded default: %v", ErrInvalidConfig, err)
	}
	if len(data) > 0 {
		// ships はリストごと置き換える
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig は path の YAML を読み込みます。path が空なら組み込みの設定を返します。
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return ParseConfig(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

func (c *Config) Validate() error {
	if c.TickRate < 1 || c.TickRate > 240 {
		return fmt.Errorf("%w: tick_rate = %d, want 1..240", ErrInvalidConfig, c.TickRate)
	}
	if !utils.IsFinite(c.Lobby.CountdownSeconds) || c.Lobby.CountdownSeconds <= 0 {
		return fmt.Errorf("%w: lobby.countdown_seconds = %v", ErrInvalidConfig, c.Lobby.CountdownSeconds)
	}
	if err := validateArena(c.Arena.Width, c.Arena.Height); err != nil {
		return fmt.Errorf("%w: arena: %v", ErrInvalidConfig, err)
	}
	if err := c.Flight.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	// 全スロットが別々の機体を確保できる数が必要
	if len(c.Ships) < input.MaxSlots {
		return fmt.Errorf("%w: %d ships, want at least %d", ErrInvalidConfig, len(c.Ships), input.MaxSlots)
	}
	if _, err := catalog.New(c.Ships); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Catalog は設定の機体一覧からカタログを作ります。
func (c *Config) Catalog() (*catalog.Catalog, error) {
	return catalog.New(c.Ships)
}
