package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/aerctl/internal/bus"
	"github.com/danmuck/aerctl/internal/geometry"
	"github.com/danmuck/aerctl/internal/logging"
	"github.com/danmuck/aerctl/internal/receiver"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("config: invalid")

// aerctl config.toml layout. Every section overlays DefaultCaptureConfig.
type CaptureConfig struct {
	Geometry    GeometryConfig    `toml:"geometry" yaml:"geometry"`
	Capture     PipelineConfig    `toml:"capture" yaml:"capture"`
	Bus         BusConfig         `toml:"bus" yaml:"bus"`
	Stream      StreamConfig      `toml:"stream" yaml:"stream"`
	Admin       AdminConfig       `toml:"admin" yaml:"admin"`
	StatusBlock StatusBlockConfig `toml:"status_block" yaml:"status_block"`
	Log         LogConfig         `toml:"log" yaml:"log"`
}

// GeometryConfig leaves IndexBits and PadBits at 0 to derive them from
// rows and cols.
type GeometryConfig struct {
	Rows      uint16 `toml:"rows" yaml:"rows"`
	Cols      uint16 `toml:"cols" yaml:"cols"`
	IndexBits uint8  `toml:"index_bits,omitempty" yaml:"index_bits,omitempty"`
	PadBits   uint8  `toml:"pad_bits,omitempty" yaml:"pad_bits,omitempty"`
}

type PipelineConfig struct {
	RingCapacity int      `toml:"ring_capacity" yaml:"ring_capacity"`
	Policy       string   `toml:"policy" yaml:"policy"`
	WaitValid    Duration `toml:"wait_valid" yaml:"wait_valid"`
	WaitNeutral  Duration `toml:"wait_neutral" yaml:"wait_neutral"`
	BatchWords   int      `toml:"batch_words" yaml:"batch_words"`
	BatchBudget  Duration `toml:"batch_budget" yaml:"batch_budget"`
	IdleSleep    Duration `toml:"idle_sleep" yaml:"idle_sleep"`
}

type BusConfig struct {
	Source string        `toml:"source" yaml:"source"`
	Pins   bus.PinConfig `toml:"pins" yaml:"pins"`
	Sim    SimConfig     `toml:"sim" yaml:"sim"`
}

type SimConfig struct {
	PhaseTimeout Duration `toml:"phase_timeout" yaml:"phase_timeout"`
	QueueDepth   int      `toml:"queue_depth" yaml:"queue_depth"`
	Pattern      string   `toml:"pattern" yaml:"pattern"`
	Interval     Duration `toml:"interval" yaml:"interval"`
}

type StreamConfig struct {
	// Output is "stdout", "discard", "serial:<device>" or a file path.
	Output     string `toml:"output" yaml:"output"`
	Baud       int    `toml:"baud" yaml:"baud"`
	Timestamps bool   `toml:"timestamps" yaml:"timestamps"`
	Enabled    bool   `toml:"enabled" yaml:"enabled"`
	// PacketLogs routes log lines into the stream as log packets.
	PacketLogs bool `toml:"packet_logs" yaml:"packet_logs"`
	MaxPayload int  `toml:"max_payload" yaml:"max_payload"`
}

type AdminConfig struct {
	// Addr empty disables the admin server.
	Addr        string   `toml:"addr" yaml:"addr"`
	CorsOrigins []string `toml:"cors_origins" yaml:"cors_origins"`
	// Token guards the mutating routes when set. AERCTL_ADMIN_TOKEN overrides it.
	Token string `toml:"token,omitempty" yaml:"token,omitempty"`
}

type StatusBlockConfig struct {
	Enabled    bool     `toml:"enabled" yaml:"enabled"`
	Addr       string   `toml:"addr" yaml:"addr"`
	SlaveID    uint8    `toml:"slave_id" yaml:"slave_id"`
	Register   uint16   `toml:"register" yaml:"register"`
	DeviceName string   `toml:"device_name" yaml:"device_name"`
	Interval   Duration `toml:"interval" yaml:"interval"`
	Timeout    Duration `toml:"timeout" yaml:"timeout"`
	// StaleAfter 0 never reports the device stale.
	StaleAfter Duration `toml:"stale_after" yaml:"stale_after"`
}

type LogConfig struct {
	Level     string `toml:"level" yaml:"level"`
	Timestamp bool   `toml:"timestamp" yaml:"timestamp"`
	NoColor   bool   `toml:"no_color" yaml:"no_color"`
}

func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Geometry: GeometryConfig{Rows: 32, Cols: 32},
		Capture: PipelineConfig{
			RingCapacity: 2048,
			Policy:       receiver.DropOnFull.String(),
			BatchWords:   64,
			IdleSleep:    Micros(50),
		},
		Bus: BusConfig{
			Source: "sim",
			Pins:   bus.DefaultPinConfig(),
			Sim: SimConfig{
				PhaseTimeout: Millis(50),
				QueueDepth:   64,
				Pattern:      "sweep",
				Interval:     Millis(20),
			},
		},
		Stream: StreamConfig{
			Output:     "stdout",
			Baud:       115200,
			Timestamps: true,
			Enabled:    true,
			MaxPayload: 0xFFFF,
		},
		Admin: AdminConfig{
			Addr:        "127.0.0.1:9090",
			CorsOrigins: []string{"http://localhost:3000"},
		},
		StatusBlock: StatusBlockConfig{
			Addr:       "127.0.0.1:502",
			SlaveID:    1,
			Register:   0,
			DeviceName: "aerctl",
			Interval:   Millis(1000),
			Timeout:    Millis(500),
			StaleAfter: Millis(5000),
		},
		Log: LogConfig{Level: "info", Timestamp: true},
	}
}

// LoadCaptureConfig reads TOML, or YAML for .yaml/.yml paths, over the defaults
// and validates the result.
func LoadCaptureConfig(path string) (CaptureConfig, error) {
	var (
		cfg CaptureConfig
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = loadYAML(path)
	default:
		cfg, err = loadTOML(path)
	}
	if err != nil {
		return CaptureConfig{}, err
	}
	cfg.normalize()
	if err := ValidateCaptureConfig(cfg); err != nil {
		return CaptureConfig{}, err
	}
	return cfg, nil
}

func loadTOML(path string) (CaptureConfig, error) {
	cfg := DefaultCaptureConfig()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return CaptureConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return CaptureConfig{}, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalidConfig, path, strings.Join(keys, ", "))
	}
	// Explicit rows/cols without explicit bits re-derive the index layout.
	if (meta.IsDefined("geometry", "rows") || meta.IsDefined("geometry", "cols")) &&
		!meta.IsDefined("geometry", "index_bits") {
		cfg.Geometry.IndexBits = 0
		cfg.Geometry.PadBits = 0
	}
	return cfg, nil
}

func loadYAML(path string) (CaptureConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return CaptureConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	defer f.Close()

	cfg := DefaultCaptureConfig()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return CaptureConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return cfg, nil
}

func (c *CaptureConfig) normalize() {
	c.Capture.Policy = strings.TrimSpace(c.Capture.Policy)
	c.Bus.Source = strings.ToLower(strings.TrimSpace(c.Bus.Source))
	c.Bus.Sim.Pattern = strings.ToLower(strings.TrimSpace(c.Bus.Sim.Pattern))
	c.Stream.Output = strings.TrimSpace(c.Stream.Output)
	c.Admin.Addr = strings.TrimSpace(c.Admin.Addr)
	if tok, ok := os.LookupEnv("AERCTL_ADMIN_TOKEN"); ok {
		c.Admin.Token = tok
	}
	c.Admin.Token = strings.TrimSpace(c.Admin.Token)
	c.StatusBlock.Addr = strings.TrimSpace(c.StatusBlock.Addr)
	c.Log.Level = strings.TrimSpace(c.Log.Level)
}

func ValidateCaptureConfig(cfg CaptureConfig) error {
	if _, err := cfg.GeometryLayout(); err != nil {
		return fmt.Errorf("%w: geometry: %v", ErrInvalidConfig, err)
	}
	if cfg.Capture.RingCapacity < 2 {
		return fmt.Errorf("%w: capture.ring_capacity must be >= 2", ErrInvalidConfig)
	}
	if cfg.Capture.BatchWords <= 0 {
		return fmt.Errorf("%w: capture.batch_words must be > 0", ErrInvalidConfig)
	}
	if _, err := receiver.ParsePolicy(cfg.Capture.Policy); err != nil {
		return fmt.Errorf("%w: capture.policy: %v", ErrInvalidConfig, err)
	}
	for name, d := range map[string]Duration{
		"capture.wait_valid":       cfg.Capture.WaitValid,
		"capture.wait_neutral":     cfg.Capture.WaitNeutral,
		"capture.batch_budget":     cfg.Capture.BatchBudget,
		"capture.idle_sleep":       cfg.Capture.IdleSleep,
		"bus.sim.phase_timeout":    cfg.Bus.Sim.PhaseTimeout,
		"bus.sim.interval":         cfg.Bus.Sim.Interval,
		"status_block.interval":    cfg.StatusBlock.Interval,
		"status_block.timeout":     cfg.StatusBlock.Timeout,
		"status_block.stale_after": cfg.StatusBlock.StaleAfter,
	} {
		if d.Duration < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, name)
		}
	}
	switch cfg.Bus.Source {
	case "sim":
	default:
		return fmt.Errorf("%w: unsupported bus.source %q (expected sim)", ErrInvalidConfig, cfg.Bus.Source)
	}
	if err := cfg.Bus.Pins.Validate(); err != nil {
		return fmt.Errorf("%w: bus.pins: %v", ErrInvalidConfig, err)
	}
	geo, _ := cfg.GeometryLayout()
	if cfg.Bus.Pins.DataWidth < geo.DataWidth() {
		return fmt.Errorf("%w: bus.pins.data_width=%d narrower than geometry data width %d",
			ErrInvalidConfig, cfg.Bus.Pins.DataWidth, geo.DataWidth())
	}
	switch cfg.Bus.Sim.Pattern {
	case "sweep", "diagonal", "random":
	default:
		return fmt.Errorf("%w: unsupported bus.sim.pattern %q", ErrInvalidConfig, cfg.Bus.Sim.Pattern)
	}
	if cfg.Bus.Sim.QueueDepth <= 0 {
		return fmt.Errorf("%w: bus.sim.queue_depth must be > 0", ErrInvalidConfig)
	}
	if cfg.Stream.Output == "" {
		return fmt.Errorf("%w: stream.output is required", ErrInvalidConfig)
	}
	if strings.HasPrefix(cfg.Stream.Output, "serial:") {
		if strings.TrimPrefix(cfg.Stream.Output, "serial:") == "" {
			return fmt.Errorf("%w: stream.output serial device missing", ErrInvalidConfig)
		}
		if cfg.Stream.Baud <= 0 {
			return fmt.Errorf("%w: stream.baud must be > 0 for serial output", ErrInvalidConfig)
		}
	}
	if cfg.Stream.MaxPayload <= 0 || cfg.Stream.MaxPayload > 0xFFFF {
		return fmt.Errorf("%w: stream.max_payload must be in 1..65535", ErrInvalidConfig)
	}
	if cfg.StatusBlock.Enabled {
		if cfg.StatusBlock.Addr == "" {
			return fmt.Errorf("%w: status_block.addr required when enabled", ErrInvalidConfig)
		}
		if cfg.StatusBlock.Interval.Duration == 0 {
			return fmt.Errorf("%w: status_block.interval must be > 0 when enabled", ErrInvalidConfig)
		}
	}
	if _, ok := logging.ParseLevel(cfg.Log.Level); !ok {
		return fmt.Errorf("%w: unknown log.level %q", ErrInvalidConfig, cfg.Log.Level)
	}
	return nil
}

// GeometryLayout resolves the configured sensor into a validated geometry.
func (c CaptureConfig) GeometryLayout() (geometry.Geometry, error) {
	g := c.Geometry
	if g.IndexBits == 0 {
		return geometry.Derive(g.Rows, g.Cols)
	}
	geo := geometry.Geometry{
		Rows:       g.Rows,
		Cols:       g.Cols,
		IndexBits:  g.IndexBits,
		PadBits:    g.PadBits,
		SymbolBits: 2,
		GroupWidth: 4,
	}
	if err := geo.Validate(); err != nil {
		return geometry.Geometry{}, err
	}
	return geo, nil
}
