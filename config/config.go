// Package config holds the converter settings: the shape of the RSD source
// trace, the Kanata output naming and the clock used for reporting.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the complete converter configuration.
type Config struct {
	Source Source `yaml:"source"`
	Decode Decode `yaml:"decode"`
	Output Output `yaml:"output"`
	Clock  Clock  `yaml:"clock"`
}

// Source describes the RSD log being read.
type Source struct {
	// SerialWidth is the bit width of OpSerial in the RSD core; the serial
	// id in the log wraps at 2^SerialWidth. Default: 10.
	SerialWidth uint `yaml:"serial_width"`

	// MicroOpsPerInsn is the maximum number of micro-ops an instruction is
	// split into. Default: 4.
	MicroOpsPerInsn uint `yaml:"micro_ops_per_insn"`

	// RetirementStage is the stage id reported when an op commits.
	// Default: 14.
	RetirementStage int `yaml:"retirement_stage"`

	// DrainMargin is the number of most recent cycles whose events are held
	// back, since a later report can still revise them. Default: 2.
	DrainMargin int64 `yaml:"drain_margin"`

	// GCInterval is the retirement period of the live-op sweep. Default: 64.
	GCInterval uint64 `yaml:"gc_interval"`
}

// Decode sizes the disassembly cache used for label annotations.
type Decode struct {
	// CacheEntries is the number of instruction words kept. 0 disables the
	// cache. Default: 1024.
	CacheEntries int `yaml:"cache_entries"`

	// CacheWays is the associativity of the cache. Default: 4.
	CacheWays int `yaml:"cache_ways"`
}

// Output describes the Kanata log being written.
type Output struct {
	// StageNames maps stage ids to the names shown in the viewer.
	StageNames []string `yaml:"stage_names"`

	// ThreadID is written in every Init command. Default: 0.
	ThreadID int `yaml:"thread_id"`
}

// Clock converts cycle counts into simulated time for reports.
type Clock struct {
	// FrequencyGHz is the core clock. Default: 1.0.
	FrequencyGHz float64 `yaml:"frequency_ghz"`
}

// DefaultStageNames are the pipeline stages of the RSD core, by stage id.
var DefaultStageNames = []string{
	"Np", "F", "Pd", "Dc", "Rn", "Ds", "Sc", "Is", "Rr", "X", "Ma", "Mt", "Rw", "Wc", "Cm",
}

// Default returns the configuration matching the stock RSD core.
func Default() *Config {
	return &Config{
		Source: DefaultSource(),
		Decode: Decode{
			CacheEntries: 1024,
			CacheWays:    4,
		},
		Output: Output{
			StageNames: append([]string(nil), DefaultStageNames...),
			ThreadID:   0,
		},
		Clock: Clock{
			FrequencyGHz: 1.0,
		},
	}
}

// DefaultSource returns the source settings of the stock RSD core.
func DefaultSource() Source {
	return Source{
		SerialWidth:     10,
		MicroOpsPerInsn: 4,
		RetirementStage: 14,
		DrainMargin:     2,
		GCInterval:      64,
	}
}

// WrapPeriod returns the distance between two ids that share the same
// serial and micro-op index.
func (s Source) WrapPeriod() int64 {
	return int64(1) << s.SerialWidth * int64(s.MicroOpsPerInsn)
}

// Load loads a Config from a YAML file. Fields absent from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return config, nil
}

// Save writes the Config to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	s := c.Source
	if s.SerialWidth == 0 || s.SerialWidth > 32 {
		return fmt.Errorf("serial_width must be in 1..32")
	}
	if s.MicroOpsPerInsn == 0 {
		return fmt.Errorf("micro_ops_per_insn must be > 0")
	}
	if s.RetirementStage <= 0 {
		return fmt.Errorf("retirement_stage must be > 0")
	}
	if s.DrainMargin < 0 {
		return fmt.Errorf("drain_margin must be >= 0")
	}
	if s.GCInterval == 0 {
		return fmt.Errorf("gc_interval must be > 0")
	}
	if c.Decode.CacheEntries < 0 {
		return fmt.Errorf("cache_entries must be >= 0")
	}
	if c.Decode.CacheEntries > 0 && c.Decode.CacheWays <= 0 {
		return fmt.Errorf("cache_ways must be > 0")
	}
	if len(c.Output.StageNames) <= s.RetirementStage {
		return fmt.Errorf("stage_names must name every stage up to retirement_stage %d", s.RetirementStage)
	}
	if c.Clock.FrequencyGHz <= 0 {
		return fmt.Errorf("frequency_ghz must be > 0")
	}
	return nil
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Output.StageNames = append([]string(nil), c.Output.StageNames...)
	return &clone
}
