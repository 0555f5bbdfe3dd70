package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/menta2k/photo-hq/pkg/types"
)

// Inference backends
const (
	BackendONNX        = "onnx"
	BackendInterpolate = "interpolate"
)

// EnvPrefix prefixes environment overrides, e.g. PHOTOHQ_LIBRARY_DIR
const EnvPrefix = "PHOTOHQ"

// Config holds the application configuration
type Config struct {
	Model   ModelConfig   `json:"model" mapstructure:"model"`
	Picker  PickerConfig  `json:"picker" mapstructure:"picker"`
	Library LibraryConfig `json:"library" mapstructure:"library"`
	Log     LogConfig     `json:"log" mapstructure:"log"`
}

// ModelConfig selects and tunes the super-resolution model
type ModelConfig struct {
	Backend      string        `json:"backend" mapstructure:"backend"`
	Path         string        `json:"path" mapstructure:"path"`
	LibraryPath  string        `json:"library_path" mapstructure:"library_path"`
	InputSize    int           `json:"input_size" mapstructure:"input_size"`
	Scale        int           `json:"scale" mapstructure:"scale"`
	CropAndScale string        `json:"crop_and_scale" mapstructure:"crop_and_scale"`
	Threads      int           `json:"threads" mapstructure:"threads"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
}

// PickerConfig controls photo selection
type PickerConfig struct {
	SelectionLimit      int    `json:"selection_limit" mapstructure:"selection_limit"`
	Images              bool   `json:"images" mapstructure:"images"`
	LivePhotos          bool   `json:"live_photos" mapstructure:"live_photos"`
	CloseAfterSelection bool   `json:"close_after_selection" mapstructure:"close_after_selection"`
	StartDir            string `json:"start_dir" mapstructure:"start_dir"`
}

// LibraryConfig controls where and how results are saved
type LibraryConfig struct {
	Dir      string `json:"dir" mapstructure:"dir"`
	Format   string `json:"format" mapstructure:"format"`
	Quality  int    `json:"quality" mapstructure:"quality"`
	Lossless bool   `json:"lossless" mapstructure:"lossless"`
	Prefix   string `json:"prefix" mapstructure:"prefix"`
}

// LogConfig controls logging
type LogConfig struct {
	Level       string `json:"level" mapstructure:"level"`
	Development bool   `json:"development" mapstructure:"development"`
	File        string `json:"file" mapstructure:"file"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Backend:      BackendInterpolate,
			InputSize:    512,
			Scale:        4,
			CropAndScale: types.ScaleFill.String(),
			Timeout:      2 * time.Minute,
		},
		Picker: PickerConfig{
			SelectionLimit:      1,
			Images:              true,
			LivePhotos:          true,
			CloseAfterSelection: true,
			StartDir:            ".",
		},
		Library: LibraryConfig{
			Dir:     "./library",
			Format:  "jpg",
			Quality: 92,
			Prefix:  "photohq_",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path (JSON or YAML, optional) on top of the
// defaults, then applies PHOTOHQ_ environment overrides
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("model.backend", d.Model.Backend)
	v.SetDefault("model.path", d.Model.Path)
	v.SetDefault("model.library_path", d.Model.LibraryPath)
	v.SetDefault("model.input_size", d.Model.InputSize)
	v.SetDefault("model.scale", d.Model.Scale)
	v.SetDefault("model.crop_and_scale", d.Model.CropAndScale)
	v.SetDefault("model.threads", d.Model.Threads)
	v.SetDefault("model.timeout", d.Model.Timeout)

	v.SetDefault("picker.selection_limit", d.Picker.SelectionLimit)
	v.SetDefault("picker.images", d.Picker.Images)
	v.SetDefault("picker.live_photos", d.Picker.LivePhotos)
	v.SetDefault("picker.close_after_selection", d.Picker.CloseAfterSelection)
	v.SetDefault("picker.start_dir", d.Picker.StartDir)

	v.SetDefault("library.dir", d.Library.Dir)
	v.SetDefault("library.format", d.Library.Format)
	v.SetDefault("library.quality", d.Library.Quality)
	v.SetDefault("library.lossless", d.Library.Lossless)
	v.SetDefault("library.prefix", d.Library.Prefix)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("log.file", d.Log.File)
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Model.Backend {
	case BackendONNX:
		if c.Model.Path == "" {
			return errors.New("model.path is required for the onnx backend")
		}
	case BackendInterpolate:
	default:
		return fmt.Errorf("model.backend must be %q or %q, got %q", BackendONNX, BackendInterpolate, c.Model.Backend)
	}

	if c.Model.InputSize < 1 {
		return errors.New("model.input_size must be positive")
	}
	if c.Model.Scale < 1 || c.Model.Scale > 8 {
		return errors.New("model.scale must be between 1 and 8")
	}
	if _, err := types.ParseCropAndScale(c.Model.CropAndScale); err != nil {
		return fmt.Errorf("model.crop_and_scale: %w", err)
	}
	if c.Model.Threads < 0 {
		return errors.New("model.threads cannot be negative")
	}
	if c.Model.Timeout < 0 {
		return errors.New("model.timeout cannot be negative")
	}

	if c.Picker.SelectionLimit < 0 {
		return errors.New("picker.selection_limit cannot be negative")
	}
	if !c.Picker.Images && !c.Picker.LivePhotos {
		return errors.New("picker must allow images or live photos")
	}

	if c.Library.Dir == "" {
		return errors.New("library.dir cannot be empty")
	}
	switch strings.ToLower(c.Library.Format) {
	case "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("library.format %q is not supported", c.Library.Format)
	}
	if c.Library.Quality < 1 || c.Library.Quality > 100 {
		return errors.New("library.quality must be between 1 and 100")
	}

	return nil
}

// EncodeOptions returns the library encoding settings
func (c *Config) EncodeOptions() types.EncodeOptions {
	return types.EncodeOptions{
		Format:   strings.ToLower(c.Library.Format),
		Quality:  c.Library.Quality,
		Lossless: c.Library.Lossless,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "photohq", "config.json")
}
