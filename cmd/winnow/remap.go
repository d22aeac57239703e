package main

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/winnow/pkg/corpus"
	"github.com/panbanda/winnow/pkg/detector"
)

func remapCmd() *cli.Command {
	return &cli.Command{
		Name:      "remap",
		Usage:     "Replace hashed submission ids in a results file with submission names",
		ArgsUsage: "<results.json>",
		Description: `Results written with corpus.id_mode = "hash" name files by the md5 of their
submission directory. remap looks the submissions up again under --root and
writes <results>_remapped.json next to the input.

Example:
  winnow remap --root submissions/ out/plagiarism_results_20260102T030405Z.json`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "root",
				Usage:    "Directory holding the submissions (repeatable)",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "per-root",
				Usage: "Each root is itself one submission",
			},
		},
		Action: runRemapCmd,
	}
}

func runRemapCmd(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("remap takes exactly one results file")
	}
	path := c.Args().First()

	roots := c.StringSlice("root")
	for i, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("invalid path %s: %w", root, err)
		}
		roots[i] = abs
	}

	subs, err := corpus.Discover(roots, c.Bool("per-root"), corpus.IDByHash, nil)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(subs))
	for _, s := range subs {
		names[s.ID] = s.Name
	}

	records, err := detector.ReadResults(path)
	if err != nil {
		return err
	}
	out, err := detector.WriteRemapped(path, detector.RemapResults(records, names))
	if err != nil {
		return err
	}

	logger := appLogger(c)
	logger.Info().Str("path", out).Int("records", len(records)).Msg("results remapped")
	_, err = fmt.Fprintln(c.App.Writer, out)
	return err
}
