// Package config provides configuration loading for the ROI analyzer.
// Configuration is read from an optional YAML file; anything the file leaves
// out keeps its default value, and Validate clamps the detector tuning to
// the ranges the heuristic is designed for.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Weights are the scale-bar scoring constants. They are tunable; only the
// ordering they produce matters (longer, lower and straighter wins).
type Weights struct {
	// Length multiplies the raw pixel length.
	Length float64 `yaml:"length"`

	// LowerThird is the bonus fraction for bars in the bottom third.
	LowerThird float64 `yaml:"lowerThird"`

	// TopBand is the smaller bonus fraction for bars in the top band.
	TopBand float64 `yaml:"topBand"`

	// MiddlePenalty multiplies the score of bars in the middle third (< 1).
	MiddlePenalty float64 `yaml:"middlePenalty"`

	// Straightness is the bonus fraction for near-exact horizontals.
	Straightness float64 `yaml:"straightness"`
}

// Detection holds the scale-bar detector parameters.
type Detection struct {
	ClaheClipLimit    float64 `yaml:"claheClipLimit"`
	ClaheTiles        int     `yaml:"claheTiles"`
	CannyLow          int     `yaml:"cannyLow"`
	CannyHigh         int     `yaml:"cannyHigh"`
	CloseGaps         bool    `yaml:"closeGaps"`
	HoughVotes        int     `yaml:"houghVotes"`
	MinLengthFraction float64 `yaml:"minLengthFraction"`
	MaxLineGap        int     `yaml:"maxLineGap"`
	AngleTolerance    float64 `yaml:"angleTolerance"`
	Weights           Weights `yaml:"weights"`
}

// Store names the per-folder persistence files.
type Store struct {
	MeasurementsFile string  `yaml:"measurementsFile"`
	OverlayDir       string  `yaml:"overlayDir"`
	CalibrationFile  string  `yaml:"calibrationFile"`
	NotesFile        string  `yaml:"notesFile"`
	DefaultScaleUm   float64 `yaml:"defaultScaleUm"`
}

// Overlay controls ROI overlay rendering.
type Overlay struct {
	// Color is the polygon outline colour as "#RRGGBB".
	Color     string `yaml:"color"`
	Thickness int    `yaml:"thickness"`
}

// OCR controls scale-label reading.
type OCR struct {
	Language string `yaml:"language"`
}

// Logging controls diagnostic output.
type Logging struct {
	Debug bool `yaml:"debug"`
}

// Config is the complete application configuration.
type Config struct {
	Detection Detection `yaml:"detection"`
	Store     Store     `yaml:"store"`
	Overlay   Overlay   `yaml:"overlay"`
	OCR       OCR       `yaml:"ocr"`
	Logging   Logging   `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Detection.ClaheClipLimit = 2.0
	cfg.Detection.ClaheTiles = 8
	cfg.Detection.CannyLow = 50
	cfg.Detection.CannyHigh = 150
	cfg.Detection.CloseGaps = true
	cfg.Detection.HoughVotes = 100
	cfg.Detection.MinLengthFraction = 0.05
	cfg.Detection.MaxLineGap = 10
	cfg.Detection.AngleTolerance = 5
	cfg.Detection.Weights = Weights{
		Length:        1.0,
		LowerThird:    0.5,
		TopBand:       0.2,
		MiddlePenalty: 0.6,
		Straightness:  0.1,
	}

	cfg.Store.MeasurementsFile = "roi_measurements.xlsx"
	cfg.Store.OverlayDir = "_roi_overlays"
	cfg.Store.CalibrationFile = "scale_bars.json"
	cfg.Store.NotesFile = "notes.json"
	cfg.Store.DefaultScaleUm = 100

	cfg.Overlay.Color = "#FF0000"
	cfg.Overlay.Thickness = 2

	cfg.OCR.Language = "eng"

	return cfg
}

// Validate clamps values to the ranges the detector and stores support.
func (c *Config) Validate() error {
	d := &c.Detection
	if d.ClaheClipLimit <= 0 {
		d.ClaheClipLimit = 2.0
	}
	if d.ClaheTiles <= 0 {
		d.ClaheTiles = 8
	}
	if d.CannyLow <= 0 {
		d.CannyLow = 50
	}
	if d.CannyHigh <= d.CannyLow {
		d.CannyHigh = d.CannyLow * 3
	}
	if d.HoughVotes <= 0 {
		d.HoughVotes = 100
	}
	d.MinLengthFraction = clampFloat(d.MinLengthFraction, 0.03, 0.05)
	d.MaxLineGap = clampInt(d.MaxLineGap, 10, 15)
	d.AngleTolerance = clampFloat(d.AngleTolerance, 5, 15)

	w := &d.Weights
	if w.Length <= 0 {
		w.Length = 1.0
	}
	if w.LowerThird < 0 {
		w.LowerThird = 0
	}
	if w.TopBand < 0 || w.TopBand > w.LowerThird {
		w.TopBand = w.LowerThird / 2
	}
	if w.MiddlePenalty <= 0 || w.MiddlePenalty >= 1 {
		w.MiddlePenalty = 0.6
	}
	if w.Straightness < 0 {
		w.Straightness = 0
	}

	if c.Store.MeasurementsFile == "" || c.Store.OverlayDir == "" ||
		c.Store.CalibrationFile == "" || c.Store.NotesFile == "" {
		return fmt.Errorf("store file names must not be empty")
	}
	if c.Store.DefaultScaleUm < 1 || c.Store.DefaultScaleUm > 10000 {
		c.Store.DefaultScaleUm = 100
	}

	if c.Overlay.Thickness <= 0 {
		c.Overlay.Thickness = 2
	}
	if c.Overlay.Color == "" {
		c.Overlay.Color = "#FF0000"
	}
	if c.OCR.Language == "" {
		c.OCR.Language = "eng"
	}
	return nil
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
