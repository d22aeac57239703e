package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/winnow/internal/logging"
	"github.com/panbanda/winnow/internal/output"
	"github.com/panbanda/winnow/pkg/config"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

const (
	metaConfig = "config"
	metaSource = "configSource"
	metaLogger = "logger"
)

// getPaths returns paths from positional args, defaulting to ["."]
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "winnow",
		Usage:    "Near-duplicate source code detection",
		Version:  version,
		Metadata: make(map[string]interface{}),
		Description: `Winnow fingerprints every file of a set of submissions and reports pairs of
files whose fingerprint sets overlap above a similarity threshold. Identifiers,
literals, comments and formatting are normalised away before fingerprinting, so
renamed or reformatted copies are still found.

Supports: C, C++, Python`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"WINNOW_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "text",
				Usage:   "Output format: text, json, markdown, yaml, toon",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable caching",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose output",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level: debug, info, warn, error",
				EnvVars: []string{"WINNOW_LOG_LEVEL"},
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			detectCmd(),
			normalizeCmd(),
			fingerprintCmd(),
			remapCmd(),
			cacheCmd(),
			configCmd(),
		},
	}
}

// setup loads the configuration and installs the logger before any command runs.
func setup(c *cli.Context) error {
	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	result, err := config.LoadConfig(opts...)
	if err != nil {
		// config validate reports broken files itself.
		if c.Args().First() == "config" {
			return nil
		}
		return err
	}

	cfg := result.Config
	level := cfg.Logging.Level
	if c.IsSet("log-level") {
		level = c.String("log-level")
	} else if c.Bool("verbose") {
		level = "debug"
	}
	logger, err := logging.Init(level, cfg.Logging.JSON, c.App.ErrWriter)
	if err != nil {
		return err
	}

	c.App.Metadata[metaConfig] = cfg
	c.App.Metadata[metaSource] = result.Source
	c.App.Metadata[metaLogger] = logger
	return nil
}

// appConfig returns the configuration loaded by setup, or the defaults.
func appConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

func appLogger(c *cli.Context) zerolog.Logger {
	if logger, ok := c.App.Metadata[metaLogger].(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// newFormatter honours --format and --output, falling back to the [output] config.
func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	format := cfg.Output.Format
	if c.IsSet("format") {
		format = c.String("format")
	}
	if !output.ValidFormat(format) {
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	file := cfg.Output.File
	if c.IsSet("output") {
		file = c.String("output")
	}
	if file == "" {
		return output.NewFormatterTo(c.App.Writer, output.ParseFormat(format), cfg.Output.Color && !color.NoColor), nil
	}
	return output.NewFormatter(output.ParseFormat(format), file, false)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		color.Red("Error: %v", err)
		stop()
		os.Exit(1)
	}
}
