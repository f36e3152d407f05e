// Package configs loads the YAML configuration shared by all five
// workers and translates it into each worker's typed Config.
package configs

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tourmii/gmxperp/internal/analytics"
	"github.com/tourmii/gmxperp/internal/assetindex"
	"github.com/tourmii/gmxperp/internal/indexer"
	"github.com/tourmii/gmxperp/internal/valuator"
)

// Config represents the entire configuration structure of the YAML
// config file.
type Config struct {
	RPC        string             `yaml:"rpc"`
	Mongo      MongoYAMLData      `yaml:"mongo"`
	Emitter    EmitterYAMLData    `yaml:"emitter"`
	Ticker     TickerYAMLData     `yaml:"ticker"`
	Indexer    IndexerYAMLData    `yaml:"indexer"`
	Analytics  AnalyticsYAMLData  `yaml:"analytics"`
	Valuator   ValuatorYAMLData   `yaml:"valuator"`
	AssetIndex AssetIndexYAMLData `yaml:"asset_index"`
}

// MongoYAMLData configures the document store connection.
type MongoYAMLData struct {
	URI string `yaml:"uri"`
	DB  string `yaml:"db"`
}

// EmitterYAMLData identifies the contract and ABI artifact the
// Indexer and MetadataCache read from.
type EmitterYAMLData struct {
	Address string `yaml:"address"`
	ABI     string `yaml:"abi"`
}

// TickerYAMLData configures the Valuator's price oracle endpoint.
type TickerYAMLData struct {
	BaseURL string `yaml:"base_url"`
}

// IndexerYAMLData configures the Indexer's adaptive window policy.
type IndexerYAMLData struct {
	RealtimeThreshold uint64 `yaml:"realtime_threshold"`
	RealtimeWindow    uint64 `yaml:"realtime_window"`
	CatchupWindow     uint64 `yaml:"catchup_window"`
	RealtimeWaitSec   int    `yaml:"realtime_wait_sec"`
	CatchupWaitSec    int    `yaml:"catchup_wait_sec"`
}

// AnalyticsYAMLData configures the Analytics worker's batch size.
type AnalyticsYAMLData struct {
	BatchSize int `yaml:"batch_size"`
	IdleSec   int `yaml:"idle_sec"`
}

// ValuatorYAMLData configures the Valuator's tick interval.
type ValuatorYAMLData struct {
	IntervalSec int `yaml:"interval_sec"`
}

// AssetIndexYAMLData configures the AssetIndex worker's tick interval.
type AssetIndexYAMLData struct {
	IntervalSec int `yaml:"interval_sec"`
}

// LoadConfig reads and parses the YAML config file at path into a
// Config struct.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return &config, nil
}

// ToIndexerConfig translates the YAML indexer section into
// indexer.Config, falling back to the built-in defaults for any
// zero-valued field so an empty section still runs.
func (c *Config) ToIndexerConfig() indexer.Config {
	cfg := indexer.DefaultConfig()
	if c.Indexer.RealtimeThreshold > 0 {
		cfg.RealtimeThreshold = c.Indexer.RealtimeThreshold
	}
	if c.Indexer.RealtimeWindow > 0 {
		cfg.RealtimeWindow = c.Indexer.RealtimeWindow
	}
	if c.Indexer.CatchupWindow > 0 {
		cfg.CatchupWindow = c.Indexer.CatchupWindow
	}
	if c.Indexer.RealtimeWaitSec > 0 {
		cfg.RealtimeWait = time.Duration(c.Indexer.RealtimeWaitSec) * time.Second
	}
	if c.Indexer.CatchupWaitSec > 0 {
		cfg.CatchupWait = time.Duration(c.Indexer.CatchupWaitSec) * time.Second
	}
	return cfg
}

// ToAnalyticsConfig translates the YAML analytics section.
func (c *Config) ToAnalyticsConfig() analytics.Config {
	cfg := analytics.DefaultConfig()
	if c.Analytics.BatchSize > 0 {
		cfg.BatchSize = c.Analytics.BatchSize
	}
	if c.Analytics.IdleSec > 0 {
		cfg.Idle = time.Duration(c.Analytics.IdleSec) * time.Second
	}
	return cfg
}

// ToValuatorConfig translates the YAML valuator section.
func (c *Config) ToValuatorConfig() valuator.Config {
	cfg := valuator.DefaultConfig()
	if c.Valuator.IntervalSec > 0 {
		cfg.Interval = time.Duration(c.Valuator.IntervalSec) * time.Second
	}
	return cfg
}

// ToAssetIndexConfig translates the YAML asset_index section.
func (c *Config) ToAssetIndexConfig() assetindex.Config {
	cfg := assetindex.DefaultConfig()
	if c.AssetIndex.IntervalSec > 0 {
		cfg.Interval = time.Duration(c.AssetIndex.IntervalSec) * time.Second
	}
	return cfg
}
