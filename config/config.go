package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go-metronome/midi"
	"go-metronome/pattern"
	"go-metronome/sequencer"
	"go-metronome/tempo"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid config")

// MIDIConfig defines the optional MIDI click output and tap input
type MIDIConfig struct {
	OutputPort   string `json:"outputPort,omitempty" yaml:"outputPort,omitempty"`
	Channel      int    `json:"channel" yaml:"channel"` // 1-16
	AccentNote   int    `json:"accentNote" yaml:"accentNote"`
	NormalNote   int    `json:"normalNote" yaml:"normalNote"`
	GateMs       int    `json:"gateMs" yaml:"gateMs"`
	TapInputPort string `json:"tapInputPort,omitempty" yaml:"tapInputPort,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	MinBpm           int        `json:"minBpm" yaml:"minBpm"`
	MaxBpm           int        `json:"maxBpm" yaml:"maxBpm"`
	MaxBeats         int        `json:"maxBeats" yaml:"maxBeats"`
	MaxTicksPerBeat  int        `json:"maxTicksPerBeat" yaml:"maxTicksPerBeat"`
	TapHistoryLength int        `json:"tapHistoryLength" yaml:"tapHistoryLength"`
	TapInactivityMs  int        `json:"tapInactivityMs" yaml:"tapInactivityMs"`
	LookaheadSeconds float64    `json:"lookaheadSeconds" yaml:"lookaheadSeconds"`
	RearmMs          int        `json:"rearmMs" yaml:"rearmMs"`
	InitialTempo     int        `json:"initialTempo" yaml:"initialTempo"`
	InitialPattern   string     `json:"initialPattern" yaml:"initialPattern"`
	Sounds           []string   `json:"sounds,omitempty" yaml:"sounds,omitempty"` // wav files by sound id
	SampleRate       int        `json:"sampleRate" yaml:"sampleRate"`
	Debug            bool       `json:"debug,omitempty" yaml:"debug,omitempty"`
	Palette          string     `json:"palette,omitempty" yaml:"palette,omitempty"` // GIMP .gpl file
	MIDI             MIDIConfig `json:"midi" yaml:"midi"`

	path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	opts := sequencer.DefaultOptions()
	click := midi.DefaultClickConfig
	return &Config{
		MinBpm:           tempo.DefaultBounds.Min,
		MaxBpm:           tempo.DefaultBounds.Max,
		MaxBeats:         pattern.DefaultLimits.MaxBeats,
		MaxTicksPerBeat:  pattern.DefaultLimits.MaxTicksPerBeat,
		TapHistoryLength: tempo.DefaultTrackerConfig.History,
		TapInactivityMs:  int(tempo.DefaultTrackerConfig.Inactivity / time.Millisecond),
		LookaheadSeconds: opts.Lookahead,
		RearmMs:          int(opts.Rearm / time.Millisecond),
		InitialTempo:     opts.Tempo,
		InitialPattern:   pattern.Default().String(),
		SampleRate:       44100,
		MIDI: MIDIConfig{
			Channel:    int(click.Channel) + 1,
			AccentNote: int(click.AccentNote),
			NormalNote: int(click.NormalNote),
			GateMs:     int(click.Gate / time.Millisecond),
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-metronome"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads the config at path (the default path when empty), or returns
// defaults if not found. Fields missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return DefaultConfig(), nil
		}
		path = p
	}

	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Path returns where the config was loaded from
func (c *Config) Path() string {
	return c.path
}

// Save writes the config to path (the load path when empty), as YAML for
// .yaml/.yml files and JSON otherwise
func (c *Config) Save(path string) error {
	if path == "" {
		path = c.path
	}
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	c.path = path
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks every bound. The initial tempo is not checked: it is
// clamped into range like any other tempo.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, invalid(format, args...))
		}
	}

	check(c.MinBpm >= 1, "minBpm %d < 1", c.MinBpm)
	check(c.MaxBpm >= c.MinBpm, "maxBpm %d < minBpm %d", c.MaxBpm, c.MinBpm)
	check(c.MaxBeats >= 1, "maxBeats %d < 1", c.MaxBeats)
	check(c.MaxTicksPerBeat >= 1, "maxTicksPerBeat %d < 1", c.MaxTicksPerBeat)
	check(c.TapHistoryLength >= 2, "tapHistoryLength %d < 2", c.TapHistoryLength)
	check(c.TapInactivityMs > 0, "tapInactivityMs must be positive")
	check(c.LookaheadSeconds > 0 && c.LookaheadSeconds <= 1, "lookaheadSeconds %v outside (0, 1]", c.LookaheadSeconds)
	check(c.RearmMs > 0, "rearmMs must be positive")
	check(c.SampleRate >= 8000 && c.SampleRate <= 192000, "sampleRate %d outside 8000-192000", c.SampleRate)
	check(c.MIDI.Channel >= 1 && c.MIDI.Channel <= 16, "midi.channel %d outside 1-16", c.MIDI.Channel)
	check(c.MIDI.AccentNote >= 0 && c.MIDI.AccentNote <= 127, "midi.accentNote %d outside 0-127", c.MIDI.AccentNote)
	check(c.MIDI.NormalNote >= 0 && c.MIDI.NormalNote <= 127, "midi.normalNote %d outside 0-127", c.MIDI.NormalNote)
	check(c.MIDI.GateMs > 0, "midi.gateMs must be positive")

	if c.MaxBeats >= 1 && c.MaxTicksPerBeat >= 1 {
		if _, err := c.Pattern(); err != nil {
			errs = append(errs, invalid("initialPattern: %v", err))
		}
	}
	return errors.Join(errs...)
}

// Bounds returns the tempo range
func (c *Config) Bounds() tempo.Bounds {
	return tempo.Bounds{Min: c.MinBpm, Max: c.MaxBpm}
}

// Limits returns the pattern size limits
func (c *Config) Limits() pattern.Limits {
	return pattern.Limits{MaxBeats: c.MaxBeats, MaxTicksPerBeat: c.MaxTicksPerBeat}
}

// Pattern parses the initial pattern; empty means the default
func (c *Config) Pattern() (pattern.Pattern, error) {
	if strings.TrimSpace(c.InitialPattern) == "" {
		return pattern.New(c.Limits(), pattern.Default().Beats()...)
	}
	return pattern.Parse(c.InitialPattern, c.Limits())
}

// Options returns the transport settings
func (c *Config) Options() sequencer.Options {
	return sequencer.Options{
		Bounds:    c.Bounds(),
		Tempo:     c.InitialTempo,
		Lookahead: c.LookaheadSeconds,
		Rearm:     time.Duration(c.RearmMs) * time.Millisecond,
		Tap: tempo.TrackerConfig{
			Bounds:     c.Bounds(),
			History:    c.TapHistoryLength,
			Inactivity: time.Duration(c.TapInactivityMs) * time.Millisecond,
		},
	}
}

// Click returns the MIDI click mapping
func (c *Config) Click() midi.ClickConfig {
	return midi.ClickConfig{
		Channel:    uint8(c.MIDI.Channel - 1),
		AccentNote: uint8(c.MIDI.AccentNote),
		NormalNote: uint8(c.MIDI.NormalNote),
		Gate:       time.Duration(c.MIDI.GateMs) * time.Millisecond,
	}
}
