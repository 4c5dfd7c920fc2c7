package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"gocarousel/carousel"
)

// Config holds all application configuration
type Config struct {
	UI struct {
		Color       string `mapstructure:"color"`
		ColorMode   string `mapstructure:"color_mode"`
		MaxWidth    int    `mapstructure:"max_width"`
		ShowCaption bool   `mapstructure:"show_caption"`
		RefreshMs   int    `mapstructure:"refresh_ms"`
	} `mapstructure:"ui"`
	Carousel struct {
		Loop        bool `mapstructure:"loop"`
		AutoScroll  bool `mapstructure:"auto_scroll"`
		IntervalMs  int  `mapstructure:"interval_ms"`
		AnimationMs int  `mapstructure:"animation_ms"`
		FrameMs     int  `mapstructure:"frame_ms"`
	} `mapstructure:"carousel"`
	Render struct {
		Mode         string `mapstructure:"mode"`
		CellWidthPx  int    `mapstructure:"cell_width_px"`
		CellHeightPx int    `mapstructure:"cell_height_px"`
	} `mapstructure:"render"`
	Sources []string `mapstructure:"sources"`
	Watch   bool     `mapstructure:"watch"`
	HTTP    struct {
		RetryMax  int `mapstructure:"retry_max"`
		TimeoutMs int `mapstructure:"timeout_ms"`
	} `mapstructure:"http"`
	S3 struct {
		Region   string `mapstructure:"region"`
		Endpoint string `mapstructure:"endpoint"`
	} `mapstructure:"s3"`
	Log struct {
		File  string `mapstructure:"file"`
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// Interval is the auto-scroll interval.
func (c Config) Interval() time.Duration {
	return time.Duration(c.Carousel.IntervalMs) * time.Millisecond
}

// SafeConfig wraps Config with thread-safe access
type SafeConfig struct {
	mu  sync.RWMutex
	cfg Config
}

// Get returns a copy of the current config (thread-safe read)
func (sc *SafeConfig) Get() Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	cfg := sc.cfg
	cfg.Sources = append([]string(nil), sc.cfg.Sources...)
	return cfg
}

// Set updates the config (thread-safe write)
func (sc *SafeConfig) Set(cfg Config) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.cfg = cfg
}

var config = &SafeConfig{}

// Config file changed notification
type configReloadMsg struct{}

var configChangeChan = make(chan struct{}, 1)

// Watch for config file changes
func watchConfigCmd() tea.Cmd {
	return func() tea.Msg {
		<-configChangeChan
		return configReloadMsg{}
	}
}

var (
	ansiColor = regexp.MustCompile(`^(25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])$`)
	hexColor  = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// isValidColor accepts ANSI codes 0-255 and #rgb / #rrggbb hex colours.
func isValidColor(c string) bool {
	return ansiColor.MatchString(c) || hexColor.MatchString(c)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ui.color", "2")
	v.SetDefault("ui.color_mode", "manual")
	v.SetDefault("ui.max_width", 72)
	v.SetDefault("ui.show_caption", true)
	v.SetDefault("ui.refresh_ms", 100)
	v.SetDefault("carousel.loop", true)
	v.SetDefault("carousel.auto_scroll", true)
	v.SetDefault("carousel.interval_ms", 3000)
	v.SetDefault("carousel.animation_ms", 300)
	v.SetDefault("carousel.frame_ms", 16)
	v.SetDefault("render.mode", "auto")
	v.SetDefault("render.cell_width_px", 8)
	v.SetDefault("render.cell_height_px", 16)
	v.SetDefault("sources", []string{})
	v.SetDefault("watch", true)
	v.SetDefault("http.retry_max", 3)
	v.SetDefault("http.timeout_ms", 15000)
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("log.file", "")
	v.SetDefault("log.level", "info")
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"color":     "ui.color",
	"loop":      "carousel.loop",
	"auto":      "carousel.auto_scroll",
	"renderer":  "render.mode",
	"log-file":  "log.file",
	"log-level": "log.level",
}

// loadConfig reads defaults, the config file, GOCAROUSEL_ environment
// variables and flags, in increasing order of precedence.
func loadConfig(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) (Config, []error, error) {
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check XDG_CONFIG_HOME first, fallback to ~/.config
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			if homeDir, err := os.UserHomeDir(); err == nil {
				configHome = filepath.Join(homeDir, ".config")
			}
		}
		if configHome != "" {
			v.AddConfigPath(filepath.Join(configHome, "gocarousel"))
		}
	}

	v.SetEnvPrefix("GOCAROUSEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return Config{}, nil, errors.Wrap(err, "error reading config file")
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, nil, errors.Wrapf(err, "bind flag %s", name)
				}
			}
		}
		if f := flags.Lookup("no-watch"); f != nil && f.Changed {
			v.Set("watch", false)
		}
		if f := flags.Lookup("interval"); f != nil && f.Changed {
			d, err := flags.GetDuration("interval")
			if err != nil {
				return Config{}, nil, errors.Wrap(err, "parse --interval")
			}
			v.Set("carousel.interval_ms", d.Milliseconds())
		}
	}

	return decodeConfig(v)
}

func decodeConfig(v *viper.Viper) (Config, []error, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, nil, errors.Wrap(err, "error parsing config")
	}
	warnings := validateConfig(&cfg)
	applyDefaultsForInvalidFields(&cfg, warnings)
	return cfg, warnings, nil
}

// configError describes one invalid config field.
type configError struct {
	field   string
	message string
}

func (e configError) Error() string {
	return e.field + ": " + e.message
}

// validateConfig returns one configError per invalid field.
func validateConfig(cfg *Config) []error {
	var errs []error
	invalid := func(field, format string, args ...interface{}) {
		errs = append(errs, configError{field: field, message: fmt.Sprintf(format, args...)})
	}

	if !isValidColor(cfg.UI.Color) {
		invalid("ui.color", "invalid color format '%s'", cfg.UI.Color)
	}
	if cfg.UI.ColorMode != "manual" && cfg.UI.ColorMode != "auto" {
		invalid("ui.color_mode", "must be 'manual' or 'auto' (got '%s')", cfg.UI.ColorMode)
	}
	if cfg.UI.MaxWidth < 20 {
		invalid("ui.max_width", "must be at least 20 (got %d)", cfg.UI.MaxWidth)
	}
	if cfg.UI.RefreshMs < 10 || cfg.UI.RefreshMs > 1000 {
		invalid("ui.refresh_ms", "must be between 10 and 1000 (got %d)", cfg.UI.RefreshMs)
	}
	if cfg.Carousel.IntervalMs < 100 {
		invalid("carousel.interval_ms", "must be at least 100 (got %d)", cfg.Carousel.IntervalMs)
	}
	if cfg.Carousel.AnimationMs < 0 {
		invalid("carousel.animation_ms", "must not be negative (got %d)", cfg.Carousel.AnimationMs)
	}
	if cfg.Carousel.FrameMs < 1 || cfg.Carousel.FrameMs > 1000 {
		invalid("carousel.frame_ms", "must be between 1 and 1000 (got %d)", cfg.Carousel.FrameMs)
	}
	switch strings.ToLower(cfg.Render.Mode) {
	case carousel.RenderAuto, carousel.RenderBlocks, carousel.RenderKitty:
	default:
		invalid("render.mode", "must be auto, blocks or kitty (got '%s')", cfg.Render.Mode)
	}
	if cfg.Render.CellWidthPx <= 0 {
		invalid("render.cell_width_px", "must be positive (got %d)", cfg.Render.CellWidthPx)
	}
	if cfg.Render.CellHeightPx <= 0 {
		invalid("render.cell_height_px", "must be positive (got %d)", cfg.Render.CellHeightPx)
	}
	if cfg.HTTP.RetryMax < 0 {
		invalid("http.retry_max", "must not be negative (got %d)", cfg.HTTP.RetryMax)
	}
	if cfg.HTTP.TimeoutMs <= 0 {
		invalid("http.timeout_ms", "must be positive (got %d)", cfg.HTTP.TimeoutMs)
	}
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		invalid("log.level", "unknown level '%s'", cfg.Log.Level)
	}

	return errs
}

// applyDefaultsForInvalidFields resets every field named in errs to its
// default value.
func applyDefaultsForInvalidFields(cfg *Config, errs []error) {
	for _, err := range errs {
		var ce configError
		if !errors.As(err, &ce) {
			continue
		}
		switch ce.field {
		case "ui.color":
			cfg.UI.Color = "2"
		case "ui.color_mode":
			cfg.UI.ColorMode = "manual"
		case "ui.max_width":
			cfg.UI.MaxWidth = 72
		case "ui.refresh_ms":
			cfg.UI.RefreshMs = 100
		case "carousel.interval_ms":
			cfg.Carousel.IntervalMs = 3000
		case "carousel.animation_ms":
			cfg.Carousel.AnimationMs = 300
		case "carousel.frame_ms":
			cfg.Carousel.FrameMs = 16
		case "render.mode":
			cfg.Render.Mode = carousel.RenderAuto
		case "render.cell_width_px":
			cfg.Render.CellWidthPx = 8
		case "render.cell_height_px":
			cfg.Render.CellHeightPx = 16
		case "http.retry_max":
			cfg.HTTP.RetryMax = 3
		case "http.timeout_ms":
			cfg.HTTP.TimeoutMs = 15000
		case "log.level":
			cfg.Log.Level = "info"
		}
	}
}

// printConfigWarnings writes one line per invalid field.
func printConfigWarnings(w io.Writer, errs []error) {
	for _, err := range errs {
		fmt.Fprintf(w, "Warning: invalid config value, using default: %v\n", err)
	}
}

// logConfigWarnings reports the fields that fell back to defaults.
func logConfigWarnings(log zerolog.Logger, errs []error) {
	for _, err := range errs {
		log.Warn().Err(err).Msg("invalid config value, using default")
	}
}

// watchConfig reloads the config file on change and notifies the app.
// A file that fails to parse keeps the previous config.
func watchConfig(v *viper.Viper, log zerolog.Logger) {
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, warnings, err := decodeConfig(v)
		if err != nil {
			log.Warn().Err(err).Str("file", e.Name).Msg("ignoring config change")
			return
		}
		logConfigWarnings(log, warnings)
		config.Set(cfg)
		log.Info().Str("file", e.Name).Msg("config reloaded")
		select {
		case configChangeChan <- struct{}{}:
		default:
			// Channel full, skip notification
		}
	})
	v.WatchConfig()
}
