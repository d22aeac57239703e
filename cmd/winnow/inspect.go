package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/winnow/internal/output"
	"github.com/panbanda/winnow/pkg/normalize"
	"github.com/panbanda/winnow/pkg/winnow"
)

func languageFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "language",
		Aliases: []string{"l"},
		Usage:   "Language of the file; detected from the extension when empty",
	}
}

func normalizeCmd() *cli.Command {
	return &cli.Command{
		Name:      "normalize",
		Aliases:   []string{"canon"},
		Usage:     "Print the canonical text a file is fingerprinted from",
		ArgsUsage: "<file>",
		Flags:     []cli.Flag{languageFlag()},
		Action:    runNormalizeCmd,
	}
}

// canonicalView is the structured output of the normalize command.
type canonicalView struct {
	File      string `json:"file" yaml:"file" toon:"file"`
	Language  string `json:"language" yaml:"language" toon:"language"`
	Canonical string `json:"canonical" yaml:"canonical" toon:"canonical"`
}

func runNormalizeCmd(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("normalize takes exactly one file")
	}
	path := c.Args().First()
	cfg := appConfig(c)

	text, err := readFile(path)
	if err != nil {
		return err
	}
	lang := languageFor(c, cfg, path)
	canonical, err := normalize.Normalize(lang, winnow.PrepareText(text))
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if formatter.Format() == output.FormatText {
		_, err := fmt.Fprintln(formatter.Writer(), canonical.String())
		return err
	}
	return formatter.Output(canonicalView{File: path, Language: string(lang), Canonical: canonical.String()})
}

func fingerprintCmd() *cli.Command {
	return &cli.Command{
		Name:      "fingerprint",
		Aliases:   []string{"fp"},
		Usage:     "Print the winnowed fingerprints of a file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			languageFlag(),
			&cli.IntFlag{Name: "k", Aliases: []string{"kgram"}, Usage: "K-gram length in canonical characters"},
			&cli.IntFlag{Name: "w", Aliases: []string{"window"}, Usage: "Winnowing window size in hashes"},
		},
		Action: runFingerprintCmd,
	}
}

// fingerprintView is the structured output of the fingerprint command.
type fingerprintView struct {
	File         string        `json:"file" yaml:"file" toon:"file"`
	Language     string        `json:"language" yaml:"language" toon:"language"`
	Params       winnow.Params `json:"params" yaml:"params" toon:"params"`
	Digest       string        `json:"digest" yaml:"digest" toon:"digest"`
	Count        int           `json:"count" yaml:"count" toon:"count"`
	Fingerprints []uint32      `json:"fingerprints" yaml:"fingerprints" toon:"fingerprints"`
}

func runFingerprintCmd(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("fingerprint takes exactly one file")
	}
	path := c.Args().First()
	cfg := appConfig(c)

	text, err := readFile(path)
	if err != nil {
		return err
	}
	fp, err := winnow.NewFingerprinter(paramsFromFlags(c, cfg))
	if err != nil {
		return err
	}
	lang := languageFor(c, cfg, path)
	res, err := fp.Analyze(text, lang)
	if err != nil {
		return err
	}

	values := res.Fingerprints.Values()
	if values == nil {
		values = []uint32{}
	}
	view := fingerprintView{
		File:         path,
		Language:     string(lang),
		Params:       fp.Params(),
		Digest:       fmt.Sprintf("%016x", res.Digest),
		Count:        len(values),
		Fingerprints: values,
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	rendered := make([]string, len(values))
	for i, v := range values {
		rendered[i] = fmt.Sprintf("%d", v)
	}
	section := &output.Section{
		Title: path,
		Content: strings.Join([]string{
			fmt.Sprintf("Language:     %s", view.Language),
			fmt.Sprintf("Parameters:   %s", view.Params),
			fmt.Sprintf("Digest:       %s", view.Digest),
			fmt.Sprintf("Fingerprints: %d", view.Count),
			strings.Join(rendered, " "),
		}, "\n"),
		Data: view,
	}
	return formatter.Output(section)
}
