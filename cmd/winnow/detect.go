package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/winnow/internal/cache"
	"github.com/panbanda/winnow/internal/output"
	"github.com/panbanda/winnow/internal/progress"
	"github.com/panbanda/winnow/pkg/config"
	"github.com/panbanda/winnow/pkg/corpus"
	"github.com/panbanda/winnow/pkg/detector"
	"github.com/panbanda/winnow/pkg/normalize"
	"github.com/panbanda/winnow/pkg/winnow"
)

func detectCmd() *cli.Command {
	return &cli.Command{
		Name:      "detect",
		Aliases:   []string{"scan", "check"},
		Usage:     "Compare every submission under the roots and report near-duplicate files",
		ArgsUsage: "[root...]",
		Description: `Each immediate subdirectory of a root is one submission. Files are normalised,
fingerprinted with winnowing and compared pairwise; pairs at or above the
threshold are reported, grouped into clusters.

Examples:
  winnow detect submissions/
  winnow detect --language python --threshold 0.8 hw1/ hw1-late/
  winnow detect --git -f json -o report.json repos/`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "language",
				Aliases: []string{"l"},
				Usage:   "Language of every file (c, cpp, python); detected from extensions when empty",
			},
			&cli.IntFlag{
				Name:    "k",
				Aliases: []string{"kgram"},
				Usage:   "K-gram length in canonical characters",
			},
			&cli.IntFlag{
				Name:    "w",
				Aliases: []string{"window"},
				Usage:   "Winnowing window size in hashes",
			},
			&cli.Float64Flag{
				Name:  "threshold",
				Usage: "Similarity threshold (0.0-1.0)",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Glob of files to compare (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Gitignore-style pattern of files to skip (repeatable)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Parallel workers (0 = 2x CPUs)",
			},
			&cli.BoolFlag{
				Name:  "git",
				Usage: "Read each submission as a git repository at HEAD",
			},
			&cli.StringFlag{
				Name:  "results-dir",
				Usage: "Also write a plagiarism_results_<timestamp>.json file into this directory",
			},
			&cli.BoolFlag{
				Name:  "same-submission",
				Usage: "Also compare files that belong to the same submission",
			},
		},
		Action: runDetectCmd,
	}
}

// applyDetectFlags overrides configuration values with the flags that were set.
func applyDetectFlags(c *cli.Context, cfg *config.Config) {
	if c.Args().Len() > 0 || len(cfg.Corpus.Roots) == 0 {
		cfg.Corpus.Roots = getPaths(c)
	}
	if c.IsSet("language") {
		cfg.Detection.Language = c.String("language")
	}
	if c.IsSet("k") {
		cfg.Fingerprint.K = c.Int("k")
	}
	if c.IsSet("w") {
		cfg.Fingerprint.W = c.Int("w")
	}
	if c.IsSet("threshold") {
		cfg.Detection.Threshold = c.Float64("threshold")
	}
	if c.IsSet("include") {
		cfg.Corpus.Include = c.StringSlice("include")
	}
	if c.IsSet("exclude") {
		cfg.Corpus.Exclude = append(cfg.Corpus.Exclude, c.StringSlice("exclude")...)
	}
	if c.IsSet("workers") {
		cfg.Detection.Workers = c.Int("workers")
	}
	if c.Bool("git") {
		cfg.Corpus.Mode = string(corpus.ModeGit)
	}
	if c.IsSet("results-dir") {
		cfg.Output.ResultsDir = c.String("results-dir")
	}
	if c.IsSet("same-submission") {
		cfg.Detection.SameSubmission = c.Bool("same-submission")
	}
	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
}

func runDetectCmd(c *cli.Context) error {
	cfg := *appConfig(c)
	applyDetectFlags(c, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := appLogger(c)

	timeout, err := cfg.FileTimeout()
	if err != nil {
		return err
	}

	var lang normalize.Language
	if cfg.Detection.Language != "" {
		lang = normalize.ParseLanguage(cfg.Detection.Language)
		if _, err := normalize.Lookup(lang); err != nil {
			return err
		}
	}

	roots := make([]string, len(cfg.Corpus.Roots))
	for i, root := range cfg.Corpus.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("invalid path %s: %w", root, err)
		}
		roots[i] = abs
	}

	src, err := corpus.New(corpus.Mode(cfg.Corpus.Mode), corpus.Options{
		Roots:             roots,
		SubmissionPerRoot: cfg.Corpus.SubmissionPerRoot,
		IDMode:            corpus.IDMode(cfg.Corpus.IDMode),
		Language:          lang,
		Include:           cfg.Corpus.Include,
		Exclude:           cfg.Corpus.Exclude,
		Gitignore:         cfg.Corpus.Gitignore,
		RepoFilter:        cfg.Corpus.RepoFilter,
		MaxFileSize:       cfg.Corpus.MaxFileSize,
		Workers:           cfg.Detection.Workers,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	fpCache, err := cache.New(cfg.Cache.Dir, cfg.CacheTTL(), cfg.Cache.Enabled)
	if err != nil {
		logger.Warn().Err(err).Str("dir", cfg.Cache.Dir).Msg("fingerprint cache disabled")
		fpCache = nil
	}

	docs, failed, err := src.Documents(c.Context)
	if err != nil {
		return fmt.Errorf("read corpus: %w", err)
	}
	if len(docs) == 0 && len(failed) == 0 {
		color.Yellow("No source files found")
		return nil
	}

	tracker := progress.NewTracker("Fingerprinting...", len(docs))
	d, err := detector.New(
		detector.WithParams(cfg.Params()),
		detector.WithThreshold(cfg.Detection.Threshold),
		detector.WithWorkers(cfg.Detection.Workers),
		detector.WithCache(fpCache),
		detector.WithFileTimeout(timeout),
		detector.WithSameSubmission(cfg.Detection.SameSubmission),
		detector.WithRoundDigits(cfg.Detection.RoundDigits),
		detector.WithProgress(tracker.Tick),
		detector.WithLogger(logger),
	)
	if err != nil {
		tracker.FinishError(err)
		return err
	}

	analysis, err := d.Run(c.Context, docs, failed...)
	if err != nil {
		tracker.FinishError(err)
		return fmt.Errorf("detection failed: %w", err)
	}
	tracker.FinishSuccess()

	if cfg.Output.ResultsDir != "" {
		path, err := detector.WriteResults(cfg.Output.ResultsDir, analysis.Records, analysis.GeneratedAt)
		if err != nil {
			return fmt.Errorf("write results: %w", err)
		}
		logger.Info().Str("path", path).Int("pairs", len(analysis.Records)).Msg("results written")
	}

	formatter, err := newFormatter(c, &cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if len(analysis.Records) == 0 && formatter.Format() == output.FormatText {
		color.New(color.FgGreen).Fprintf(formatter.Writer(), "No near-duplicates found at or above %.0f%% similarity\n\n", cfg.Detection.Threshold*100)
	}
	return formatter.Output(output.AnalysisReport(analysis, formatter.Colored()))
}

// paramsFromFlags builds winnowing parameters from the config and the -k/-w flags.
func paramsFromFlags(c *cli.Context, cfg *config.Config) winnow.Params {
	p := cfg.Params()
	if c.IsSet("k") {
		p.K = c.Int("k")
	}
	if c.IsSet("w") {
		p.W = c.Int("w")
	}
	return p
}

// languageFor resolves the language of a single file: --language, then the file
// extension, then the configured language.
func languageFor(c *cli.Context, cfg *config.Config, path string) normalize.Language {
	if c.IsSet("language") {
		return normalize.ParseLanguage(c.String("language"))
	}
	if lang := normalize.DetectLanguage(path); lang != normalize.LangUnknown {
		return lang
	}
	return normalize.ParseLanguage(cfg.Detection.Language)
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
