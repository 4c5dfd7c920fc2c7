package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"gocarousel/source"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gocarousel [flags] [source...]",
		Short: "Looping image carousel for the terminal",
		Long: `gocarousel pages through images in the terminal, one page at a time,
wrapping around at both ends.

Sources are image files, directories, file:// and http(s):// URLs, or
s3://bucket/prefix locations. Sources given on the command line replace
those in the config file.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "Configuration file path")
	flags.StringP("color", "c", "2", "Accent color (ANSI code or hex)")
	flags.Bool("loop", true, "Wrap around at both ends")
	flags.Bool("auto", true, "Advance automatically")
	flags.Duration("interval", 3*time.Second, "Time between automatic advances")
	flags.String("renderer", "auto", "Image renderer: auto, blocks or kitty")
	flags.Bool("no-watch", false, "Do not reload when local sources change")
	flags.String("log-file", "", "Write logs to this file")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")

	return rootCmd
}

func run(cmd *cobra.Command, args []string) error {
	v := viper.New()
	if len(args) > 0 {
		// survives config reloads
		v.Set("sources", args)
	}
	cfg, warnings, err := loadConfig(v, cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	config.Set(cfg)

	log, closer, err := newLogger(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer closer.Close()
	printConfigWarnings(os.Stderr, warnings)
	logConfigWarnings(log, warnings)

	if v.ConfigFileUsed() != "" {
		log.Info().Str("file", v.ConfigFileUsed()).Msg("config loaded")
		watchConfig(v, log)
	}

	loader := source.NewLoader(source.Options{
		RetryMax:   cfg.HTTP.RetryMax,
		Timeout:    time.Duration(cfg.HTTP.TimeoutMs) * time.Millisecond,
		S3Region:   cfg.S3.Region,
		S3Endpoint: cfg.S3.Endpoint,
		Log:        log,
	})

	images, err := preload(cmd.Context(), loader, cfg.Sources)
	if err != nil {
		return err
	}

	watcher := startWatcher(cfg.Sources, cfg.Watch, log)

	m := newModel(cfg, images, loader, watcher, log)
	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion()).Run()
	// config reloads may have replaced the watcher
	if fm, ok := final.(model); ok && fm.watcher != nil {
		fm.watcher.Close()
	}
	if err != nil {
		return errors.Wrap(err, "error running program")
	}
	return nil
}

// preload fetches the sources before the UI starts, with a progress bar
// on stderr when it is a terminal.
func preload(ctx context.Context, loader *source.Loader, refs []string) ([]source.Image, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(refs) == 0 {
		return nil, nil
	}

	if term.IsTerminal(int(os.Stderr.Fd())) {
		var bar *progressbar.ProgressBar
		loader.Progress = func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Loading images"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetWidth(40),
					progressbar.OptionShowCount(),
					progressbar.OptionThrottle(100*time.Millisecond),
					progressbar.OptionOnCompletion(func() {
						fmt.Fprint(os.Stderr, "\n")
					}),
					progressbar.OptionSetRenderBlankState(true),
				)
			}
			_ = bar.Set(done)
		}
		defer func() { loader.Progress = nil }()
	}

	images, err := loader.Load(ctx, refs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load sources")
	}
	return images, nil
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
