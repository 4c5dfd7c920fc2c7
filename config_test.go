package main

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSafeConfigConcurrency tests that SafeConfig can be safely accessed from multiple goroutines
func TestSafeConfigConcurrency(t *testing.T) {
	sc := &SafeConfig{}

	initialCfg := Config{}
	initialCfg.UI.Color = "1"
	initialCfg.Carousel.Loop = true
	sc.Set(initialCfg)

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cfg := Config{}
				cfg.UI.Color = string(rune('0' + (id % 10)))
				cfg.Carousel.IntervalMs = 1000 + id
				cfg.Sources = []string{"a", "b"}
				sc.Set(cfg)
			}
		}(i)
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cfg := sc.Get()
				_ = cfg.UI.Color
				_ = cfg.Interval()
				_ = len(cfg.Sources)
			}
		}()
	}

	wg.Wait()
}

// TestSafeConfigGetReturnsCopy tests that Get() returns a copy, not a reference
func TestSafeConfigGetReturnsCopy(t *testing.T) {
	sc := &SafeConfig{}

	cfg := Config{}
	cfg.UI.Color = "1"
	cfg.Sources = []string{"pics"}
	sc.Set(cfg)

	got := sc.Get()
	got.UI.Color = "2"
	got.Sources[0] = "other"

	again := sc.Get()
	assert.Equal(t, "1", again.UI.Color)
	assert.Equal(t, []string{"pics"}, again.Sources)
}

// TestIsValidColor tests the color validation function
func TestIsValidColor(t *testing.T) {
	tests := []struct {
		name  string
		color string
		valid bool
	}{
		// ANSI codes
		{"ansi single digit", "1", true},
		{"ansi double digit", "15", true},
		{"ansi triple digit", "255", true},
		{"ansi zero", "0", true},
		{"ansi out of range", "256", false},
		{"ansi with letter", "1a", false},

		// Hex colors
		{"hex 6 digits", "#FF5733", true},
		{"hex lowercase", "#ff5733", true},
		{"hex 3 digits", "#F00", true},
		{"hex mixed case", "#Ff5733", true},
		{"hex no hash", "FF5733", false},
		{"hex invalid char", "#GG5733", false},
		{"hex wrong length", "#FF57", false},

		// Edge cases
		{"empty", "", false},
		{"just hash", "#", false},
		{"spaces", " 1 ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, isValidColor(tt.color))
		})
	}
}

func validConfig() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	return cfg
}

// TestValidateConfig tests configuration validation
func TestValidateConfig(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		cfg := validConfig()
		assert.Empty(t, validateConfig(&cfg))
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"invalid color", func(c *Config) { c.UI.Color = "invalid" }, "ui.color"},
		{"invalid color_mode", func(c *Config) { c.UI.ColorMode = "sometimes" }, "ui.color_mode"},
		{"max_width too small", func(c *Config) { c.UI.MaxWidth = 10 }, "ui.max_width"},
		{"refresh too fast", func(c *Config) { c.UI.RefreshMs = 5 }, "ui.refresh_ms"},
		{"interval too short", func(c *Config) { c.Carousel.IntervalMs = 10 }, "carousel.interval_ms"},
		{"negative animation", func(c *Config) { c.Carousel.AnimationMs = -1 }, "carousel.animation_ms"},
		{"zero frame", func(c *Config) { c.Carousel.FrameMs = 0 }, "carousel.frame_ms"},
		{"unknown renderer", func(c *Config) { c.Render.Mode = "sixel" }, "render.mode"},
		{"zero cell width", func(c *Config) { c.Render.CellWidthPx = 0 }, "render.cell_width_px"},
		{"negative retries", func(c *Config) { c.HTTP.RetryMax = -1 }, "http.retry_max"},
		{"zero timeout", func(c *Config) { c.HTTP.TimeoutMs = 0 }, "http.timeout_ms"},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			errs := validateConfig(&cfg)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].(configError).field)
		})
	}
}

// TestApplyDefaultsForInvalidFields tests default value application
func TestApplyDefaultsForInvalidFields(t *testing.T) {
	cfg := validConfig()
	cfg.UI.Color = "999"
	cfg.UI.ColorMode = "wrong"
	cfg.UI.MaxWidth = 10
	cfg.Carousel.IntervalMs = 0
	cfg.Carousel.FrameMs = 5000
	cfg.Render.Mode = "sixel"
	cfg.Log.Level = "loud"

	errs := validateConfig(&cfg)
	assert.Len(t, errs, 7)

	applyDefaultsForInvalidFields(&cfg, errs)
	assert.Equal(t, "2", cfg.UI.Color)
	assert.Equal(t, "manual", cfg.UI.ColorMode)
	assert.Equal(t, 72, cfg.UI.MaxWidth)
	assert.Equal(t, 3*time.Second, cfg.Interval())
	assert.Equal(t, 16, cfg.Carousel.FrameMs)
	assert.Equal(t, "auto", cfg.Render.Mode)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.Empty(t, validateConfig(&cfg))
}

func TestPrintConfigWarnings(t *testing.T) {
	var buf bytes.Buffer
	printConfigWarnings(&buf, []error{
		configError{field: "ui.max_width", message: "must be at least 20 (got 5)"},
		configError{field: "ui.color", message: "invalid color format 'notacolor'"},
	})
	assert.Contains(t, buf.String(), "ui.max_width: must be at least 20 (got 5)")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults without a config file", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		cfg, warnings, err := loadConfig(viper.New(), "", newRootCmd().Flags())
		require.NoError(t, err)
		assert.Empty(t, warnings)
		assert.True(t, cfg.Carousel.Loop)
		assert.Equal(t, 3*time.Second, cfg.Interval())
		assert.Equal(t, "auto", cfg.Render.Mode)
		assert.True(t, cfg.Watch)
	})

	t.Run("file, env and flags", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", home)
		require.NoError(t, os.MkdirAll(filepath.Join(home, "gocarousel"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(home, "gocarousel", "config.yaml"), []byte(`
ui:
  color: "#ff8800"
  max_width: 10
carousel:
  loop: false
  interval_ms: 5000
sources:
  - ~/Pictures
  - s3://bucket/covers
`), 0o644))
		t.Setenv("GOCAROUSEL_RENDER_MODE", "blocks")

		cmd := newRootCmd()
		require.NoError(t, cmd.Flags().Parse([]string{"--interval", "1500ms", "--no-watch", "-c", "5"}))

		cfg, warnings, err := loadConfig(viper.New(), "", cmd.Flags())
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Equal(t, 72, cfg.UI.MaxWidth)
		assert.Equal(t, "5", cfg.UI.Color)
		assert.False(t, cfg.Carousel.Loop)
		assert.Equal(t, 1500*time.Millisecond, cfg.Interval())
		assert.Equal(t, "blocks", cfg.Render.Mode)
		assert.Equal(t, []string{"~/Pictures", "s3://bucket/covers"}, cfg.Sources)
		assert.False(t, cfg.Watch)
	})

	t.Run("explicit missing file is an error", func(t *testing.T) {
		_, _, err := loadConfig(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"), nil)
		assert.Error(t, err)
	})
}
