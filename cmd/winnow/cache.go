package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/winnow/internal/cache"
	"github.com/panbanda/winnow/internal/output"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Fingerprint cache management commands",
		Subcommands: []*cli.Command{
			{
				Name:      "clear",
				Usage:     "Remove cached fingerprints",
				ArgsUsage: "[file...]",
				Description: `Removes every cached fingerprint result, or only the entries of the given
files under the configured fingerprint parameters.

Examples:
  winnow cache clear                  # Remove the whole cache
  winnow cache clear -k 15 main.c     # Remove the entry of main.c fingerprinted with k=15`,
				Flags: []cli.Flag{
					languageFlag(),
					&cli.IntFlag{Name: "k", Aliases: []string{"kgram"}, Usage: "K-gram length the entry was computed with"},
					&cli.IntFlag{Name: "w", Aliases: []string{"window"}, Usage: "Winnowing window the entry was computed with"},
				},
				Action: runCacheClear,
			},
			{
				Name:   "stats",
				Usage:  "Show cache size and entry ages",
				Action: runCacheStats,
			},
		},
	}
}

// openCache opens the configured cache directory even when caching is disabled for runs.
func openCache(c *cli.Context) (*cache.Cache, string, error) {
	cfg := appConfig(c)
	fpCache, err := cache.New(cfg.Cache.Dir, cfg.CacheTTL(), true)
	if err != nil {
		return nil, "", fmt.Errorf("open cache %s: %w", cfg.Cache.Dir, err)
	}
	return fpCache, cfg.Cache.Dir, nil
}

func runCacheClear(c *cli.Context) error {
	fpCache, dir, err := openCache(c)
	if err != nil {
		return err
	}
	w := c.App.Writer

	if c.Args().Len() == 0 {
		if err := fpCache.Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		color.New(color.FgGreen).Fprintf(w, "Cleared cache: %s\n", dir)
		return nil
	}

	cfg := appConfig(c)
	params := paramsFromFlags(c, cfg)
	for _, path := range c.Args().Slice() {
		text, err := readFile(path)
		if err != nil {
			return err
		}
		key := cache.Key(params, string(languageFor(c, cfg, path)), text)
		err = fpCache.Invalidate(key)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			color.New(color.FgYellow).Fprintf(w, "Not cached: %s\n", path)
		case err != nil:
			return fmt.Errorf("invalidate %s: %w", path, err)
		default:
			color.New(color.FgGreen).Fprintf(w, "Removed: %s\n", path)
		}
	}
	return nil
}

// cacheStatsView is the structured output of cache stats.
type cacheStatsView struct {
	Dir       string `json:"dir" yaml:"dir" toon:"dir"`
	Entries   int    `json:"entries" yaml:"entries" toon:"entries"`
	TotalSize int64  `json:"total_size" yaml:"total_size" toon:"total_size"`
	OldestAge string `json:"oldest_age" yaml:"oldest_age" toon:"oldest_age"`
	NewestAge string `json:"newest_age" yaml:"newest_age" toon:"newest_age"`
}

func runCacheStats(c *cli.Context) error {
	fpCache, dir, err := openCache(c)
	if err != nil {
		return err
	}
	stats, err := fpCache.GetStats()
	if err != nil {
		return fmt.Errorf("read cache stats: %w", err)
	}

	view := cacheStatsView{
		Dir:       dir,
		Entries:   stats.Entries,
		TotalSize: stats.TotalSize,
		OldestAge: stats.OldestAge.Round(time.Second).String(),
		NewestAge: stats.NewestAge.Round(time.Second).String(),
	}

	formatter, err := newFormatter(c, appConfig(c))
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(&output.Section{
		Title: "Fingerprint cache",
		Content: strings.Join([]string{
			fmt.Sprintf("Directory: %s", view.Dir),
			fmt.Sprintf("Entries:   %d", view.Entries),
			fmt.Sprintf("Size:      %d bytes", view.TotalSize),
			fmt.Sprintf("Oldest:    %s", view.OldestAge),
			fmt.Sprintf("Newest:    %s", view.NewestAge),
		}, "\n"),
		Data: view,
	})
}
