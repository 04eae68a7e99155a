// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New() returns a Config populated with defaults.
//   - Load() layers an optional YAML file and STARS_ env vars on top.
//   - Validate() runs after every load; invalid config never reaches the engine.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/warp/star-engine/incentive"
)

// Config contains process configuration.
type Config struct {
	Server    ServerConfig           `koanf:"server"`
	Database  DatabaseConfig         `koanf:"database"`
	Log       LogConfig              `koanf:"log"`
	Engine    EngineConfig           `koanf:"engine"`
	Scheduler SchedulerConfig        `koanf:"scheduler"`
	Awards    map[string]AwardConfig `koanf:"awards"`
}

type ServerConfig struct {
	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr        string   `koanf:"addr"`
	CORSOrigins []string `koanf:"cors_origins"`
	// Scenarios mounts /api/scenarios, which seeds demo staff.
	Scenarios bool `koanf:"scenarios"`
}

type DatabaseConfig struct {
	// Path of the SQLite file, or ":memory:".
	Path string `koanf:"path"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // console or json
}

type EngineConfig struct {
	// MarginThreshold is the default margin of victory for period awards.
	MarginThreshold int `koanf:"margin_threshold"`

	// BatchSize bounds one all-or-nothing chunk of a batch job.
	BatchSize int `koanf:"batch_size"`

	// OperationTimeout bounds every service operation.
	OperationTimeout time.Duration `koanf:"operation_timeout"`

	// CatalogPath optionally points at a catalog JSON file; empty means the
	// built-in catalog.
	CatalogPath string `koanf:"catalog_path"`
}

type SchedulerConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

// AwardConfig describes one period award kind. Map keys are kind names.
type AwardConfig struct {
	Cadence string `koanf:"cadence"` // weekly or monthly
	Metric  string `koanf:"metric"`  // shifts, sales, stars or category:<name>
	Amount  int    `koanf:"amount"`
	Margin  *int   `koanf:"margin"` // nil uses Engine.MarginThreshold
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Database: DatabaseConfig{Path: "./data/stars.db"},
		Log:      LogConfig{Level: "info", Format: "console"},
		Engine: EngineConfig{
			MarginThreshold:  incentive.DefaultMarginThreshold,
			BatchSize:        incentive.DefaultBatchSize,
			OperationTimeout: 10 * time.Second,
		},
		Scheduler: SchedulerConfig{Enabled: true, Interval: time.Hour},
		Awards: map[string]AwardConfig{
			"weekly_shifts": {Cadence: "weekly", Metric: "shifts", Amount: 2},
			"monthly_sales": {Cadence: "monthly", Metric: "sales", Amount: 5},
		},
	}
}

// Validate checks the whole config and reports every problem at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Server.Addr == "" {
		add("server.addr must not be empty")
	}
	if c.Database.Path == "" {
		add("database.path must not be empty")
	}
	if f := strings.ToLower(c.Log.Format); f != "console" && f != "json" {
		add("log.format must be console or json, got %q", c.Log.Format)
	}
	if c.Engine.MarginThreshold < 0 {
		add("engine.margin_threshold must be >= 0")
	}
	if c.Engine.BatchSize < 1 {
		add("engine.batch_size must be >= 1")
	}
	if c.Engine.OperationTimeout <= 0 {
		add("engine.operation_timeout must be > 0")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		add("scheduler.interval must be > 0 when enabled")
	}

	names := make([]string, 0, len(c.Awards))
	for name := range c.Awards {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		a := c.Awards[name]
		if a.Cadence != string(incentive.CadenceWeekly) && a.Cadence != string(incentive.CadenceMonthly) {
			add("awards.%s.cadence must be weekly or monthly, got %q", name, a.Cadence)
		}
		if !validMetric(a.Metric) {
			add("awards.%s.metric %q is not shifts, sales, stars or category:<name>", name, a.Metric)
		}
		if a.Amount <= 0 {
			add("awards.%s.amount must be > 0", name)
		}
		if a.Margin != nil && *a.Margin < 0 {
			add("awards.%s.margin must be >= 0", name)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// MarginFor returns the award's margin, falling back to the engine default.
func (c *Config) MarginFor(a AwardConfig) int {
	if a.Margin != nil {
		return *a.Margin
	}
	return c.Engine.MarginThreshold
}

func validMetric(m string) bool {
	switch m {
	case "shifts", "sales", "stars":
		return true
	}
	cat, ok := strings.CutPrefix(m, "category:")
	return ok && cat != ""
}
