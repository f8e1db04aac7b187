// Package config owns grid node configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration for TOML text values like "3s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// GridConfig describes one in-process grid: its members and the node-local
// runtime knobs shared by all of them.
type GridConfig struct {
	ClusterName string         `toml:"cluster_name"`
	Members     []MemberConfig `toml:"members"`
	Proxy       ProxyConfig    `toml:"proxy"`
	Admin       AdminConfig    `toml:"admin"`
}

// MemberConfig declares one member of the grid.
type MemberConfig struct {
	ID   string `toml:"id"`
	Addr string `toml:"addr"`
}

// ProxyConfig bounds the destroy fan-out.
type ProxyConfig struct {
	DestroyTryCount int      `toml:"destroy_try_count"`
	DestroyWait     Duration `toml:"destroy_wait"`
	EventQueueSize  int      `toml:"event_queue_size"`
}

// AdminConfig configures the admin HTTP surface served by the first member.
type AdminConfig struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

// LoadGridConfig reads, defaults, and validates a grid config file.
func LoadGridConfig(path string) (GridConfig, error) {
	var cfg GridConfig
	if err := loadToml(path, &cfg); err != nil {
		return GridConfig{}, err
	}
	applyDefaults(&cfg)
	if err := ValidateGridConfig(cfg); err != nil {
		return GridConfig{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given: a three
// member grid with the admin surface on the first member.
func Default() GridConfig {
	cfg := GridConfig{
		ClusterName: "grid",
		Members: []MemberConfig{
			{ID: "member.a"},
			{ID: "member.b"},
			{ID: "member.c"},
		},
	}
	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(cfg *GridConfig) {
	if cfg.ClusterName == "" {
		cfg.ClusterName = "grid"
	}
	if cfg.Proxy.DestroyTryCount == 0 {
		cfg.Proxy.DestroyTryCount = 10
	}
	if cfg.Proxy.DestroyWait.Duration == 0 {
		cfg.Proxy.DestroyWait.Duration = 3 * time.Second
	}
	if cfg.Proxy.EventQueueSize == 0 {
		cfg.Proxy.EventQueueSize = 256
	}
	if cfg.Admin.Addr == "" {
		cfg.Admin.Addr = ":9400"
	}
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateGridConfig(cfg GridConfig) error {
	if strings.TrimSpace(cfg.ClusterName) == "" {
		return fmt.Errorf("grid config missing cluster_name")
	}
	if len(cfg.Members) == 0 {
		return fmt.Errorf("grid config requires at least one member")
	}
	seen := make(map[string]bool, len(cfg.Members))
	for i, member := range cfg.Members {
		id := strings.TrimSpace(member.ID)
		if id == "" {
			return fmt.Errorf("member[%d] invalid: id is required", i)
		}
		if seen[id] {
			return fmt.Errorf("member[%d] invalid: duplicate id %q", i, id)
		}
		seen[id] = true
	}
	if cfg.Proxy.DestroyTryCount < 0 {
		return fmt.Errorf("proxy destroy_try_count must not be negative")
	}
	if cfg.Proxy.DestroyWait.Duration < 0 {
		return fmt.Errorf("proxy destroy_wait must not be negative")
	}
	return nil
}
