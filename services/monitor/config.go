package monitor

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the monitor configuration.
type Config struct {
	Halves  []HalfConfig  `yaml:"halves"`
	Filter  FilterConfig  `yaml:"filter"`
	Display DisplayConfig `yaml:"display"`
}

// HalfConfig names one keyboard half and the CDC port its console is on.
type HalfConfig struct {
	Name string `yaml:"name"`
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// FilterConfig selects which events are printed.
type FilterConfig struct {
	MinSeverity string `yaml:"min_severity"` // info | warning | critical
}

// DisplayConfig controls console output.
type DisplayConfig struct {
	ShowRaw      bool          `yaml:"show_raw"`      // echo lines that are not diagnostics
	SummaryEvery time.Duration `yaml:"summary_every"` // 0 disables the periodic summary
	Reconnect    time.Duration `yaml:"reconnect"`     // delay before reopening a lost port
}

// Default returns a configuration for a single half on the usual Linux CDC port.
func Default() *Config {
	return &Config{
		Halves: []HalfConfig{
			{Name: "master", Port: "/dev/ttyACM0", Baud: DefaultBaudRate},
		},
		Filter: FilterConfig{MinSeverity: "warning"},
		Display: DisplayConfig{
			SummaryEvery: 10 * time.Second,
			Reconnect:    2 * time.Second,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ensureDefaults fills fields left empty by the file.
func (c *Config) ensureDefaults() {
	def := Default()

	if len(c.Halves) == 0 {
		c.Halves = def.Halves
	}
	for i := range c.Halves {
		h := &c.Halves[i]
		if h.Name == "" {
			h.Name = fmt.Sprintf("half%d", i)
		}
		if h.Baud == 0 {
			h.Baud = DefaultBaudRate
		}
	}
	if c.Filter.MinSeverity == "" {
		c.Filter.MinSeverity = def.Filter.MinSeverity
	}
	if c.Display.Reconnect == 0 {
		c.Display.Reconnect = def.Display.Reconnect
	}
}
