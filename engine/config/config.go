package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/oxygen/engine/core"
)

// Config is the engine configuration, loaded from a TOML file. Zero values
// are replaced by defaults in Normalize.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Staging  StagingConfig  `toml:"staging"`
	Importer ImporterConfig `toml:"importer"`
}

type EngineConfig struct {
	Name           string `toml:"name"`
	FramesInFlight uint32 `toml:"frames_in_flight"`
	TargetFPS      uint32 `toml:"target_fps"`
}

type StagingConfig struct {
	// Baseline capacity in bytes of a single partition.
	BaselineBytes uint64 `toml:"baseline_bytes"`
	// Extra headroom factor applied when the buffer grows.
	GrowthSlack float64 `toml:"growth_slack"`
	// Consecutive idle frames before the buffer is trimmed back to baseline.
	TrimIdleFrames uint32 `toml:"trim_idle_frames"`
	// Allocation alignment in bytes.
	Alignment uint64 `toml:"alignment"`
}

type ImporterConfig struct {
	Workers        int    `toml:"workers"`
	QueueSize      int    `toml:"queue_size"`
	CookedRoot     string `toml:"cooked_root"`
	NamingStrategy string `toml:"naming_strategy"`
	Hashing        bool   `toml:"hashing"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Load reads a TOML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.WrapError(core.KindIOError, err, "reading config %q", path)
	}
	c := &Config{}
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, core.WrapError(core.KindIntegrityError, err, "parsing config %q", path)
	}
	c.Normalize()
	return c, nil
}

// Normalize fills zero fields with defaults and clamps nonsense values.
func (c *Config) Normalize() {
	if c.Engine.Name == "" {
		c.Engine.Name = "oxygen"
	}
	if c.Engine.FramesInFlight == 0 || c.Engine.FramesInFlight > 3 {
		c.Engine.FramesInFlight = 2
	}
	if c.Engine.TargetFPS == 0 {
		c.Engine.TargetFPS = 60
	}
	if c.Staging.BaselineBytes == 0 {
		c.Staging.BaselineBytes = 4 << 20
	}
	if c.Staging.GrowthSlack <= 0 {
		c.Staging.GrowthSlack = 0.5
	}
	if c.Staging.TrimIdleFrames == 0 {
		c.Staging.TrimIdleFrames = 120
	}
	if c.Staging.Alignment == 0 {
		c.Staging.Alignment = 256
	}
	if c.Importer.Workers <= 0 {
		c.Importer.Workers = 4
	}
	if c.Importer.QueueSize <= 0 {
		c.Importer.QueueSize = 64
	}
	if c.Importer.NamingStrategy == "" {
		c.Importer.NamingStrategy = "source"
	}
}
