// Package output renders results as text tables, markdown, JSON, YAML or TOON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	toon "github.com/toon-format/toon-go"
	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatYAML     Format = "yaml"
	FormatTOON     Format = "toon"
)

// Formats lists the accepted format names.
var Formats = []Format{FormatText, FormatJSON, FormatMarkdown, FormatYAML, FormatTOON}

// ParseFormat converts a string to Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	case "markdown", "md":
		return FormatMarkdown
	case "yaml", "yml":
		return FormatYAML
	case "toon":
		return FormatTOON
	default:
		return FormatText
	}
}

// ValidFormat reports whether s names a known format.
func ValidFormat(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "json", "markdown", "md", "yaml", "yml", "toon":
		return true
	}
	return false
}

// Renderable defines data that can render itself in multiple formats.
type Renderable interface {
	RenderText(w io.Writer, colored bool) error
	RenderMarkdown(w io.Writer) error
	// RenderData returns the underlying data for structured formats.
	RenderData() any
}

// Formatter handles output formatting.
type Formatter struct {
	format  Format
	writer  io.Writer
	file    *os.File
	colored bool
}

// NewFormatter creates a formatter writing to stdout, or to the file output when set.
// Files never receive colour codes.
func NewFormatter(format Format, output string, colored bool) (*Formatter, error) {
	if output == "" {
		return NewFormatterTo(os.Stdout, format, colored), nil
	}

	f, err := os.Create(output)
	if err != nil {
		return nil, err
	}
	return &Formatter{format: format, writer: f, file: f, colored: false}, nil
}

// NewFormatterTo creates a formatter writing to w.
func NewFormatterTo(w io.Writer, format Format, colored bool) *Formatter {
	return &Formatter{format: format, writer: w, colored: colored}
}

// Close closes the formatter's writer if it's a file.
func (f *Formatter) Close() error {
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}

// Writer returns the underlying writer.
func (f *Formatter) Writer() io.Writer {
	return f.writer
}

// Format returns the configured format.
func (f *Formatter) Format() Format {
	return f.format
}

// Colored returns whether colored output is enabled.
func (f *Formatter) Colored() bool {
	return f.colored
}

// Output writes data in the configured format.
func (f *Formatter) Output(data any) error {
	if r, ok := data.(Renderable); ok {
		switch f.format {
		case FormatText:
			return r.RenderText(f.writer, f.colored)
		case FormatMarkdown:
			return r.RenderMarkdown(f.writer)
		default:
			return f.outputData(r.RenderData())
		}
	}
	return f.outputData(data)
}

// outputData serialises non-rendered data. Text falls back to JSON and markdown wraps
// it in a fenced block.
func (f *Formatter) outputData(data any) error {
	switch f.format {
	case FormatYAML:
		enc := yaml.NewEncoder(f.writer)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOON:
		generic, err := toGeneric(data)
		if err != nil {
			return err
		}
		out, err := toon.Marshal(generic, toon.WithIndent(2))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(f.writer, string(out))
		return err
	case FormatMarkdown:
		fmt.Fprintln(f.writer, "```json")
		if err := f.outputJSON(data); err != nil {
			return err
		}
		fmt.Fprintln(f.writer, "```")
		return nil
	default:
		return f.outputJSON(data)
	}
}

// outputJSON writes data as formatted JSON.
func (f *Formatter) outputJSON(data any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// toGeneric converts data to maps, slices and scalars through its JSON form, so text
// marshalers and json tags apply to TOON output too.
func toGeneric(data any) (any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return generic, nil
}

// Table is a Renderable table with headers, rows, and optional footer.
type Table struct {
	Title   string     `json:"-"`
	Headers []string   `json:"-"`
	Rows    [][]string `json:"-"`
	Footer  []string   `json:"-"`
	Data    any        `json:"data,omitempty"`
}

// NewTable creates a table that wraps structured data for serialization.
func NewTable(title string, headers []string, rows [][]string, footer []string, data any) *Table {
	return &Table{
		Title:   title,
		Headers: headers,
		Rows:    rows,
		Footer:  footer,
		Data:    data,
	}
}

func (t *Table) RenderData() any {
	if t.Data != nil {
		return t.Data
	}
	result := make([]map[string]string, len(t.Rows))
	for i, row := range t.Rows {
		m := make(map[string]string)
		for j, h := range t.Headers {
			if j < len(row) {
				m[h] = row[j]
			}
		}
		result[i] = m
	}
	return result
}

func (t *Table) RenderText(w io.Writer, colored bool) error {
	writeTitle(w, t.Title, "=", colored, color.Bold)

	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
				Formatting: tw.CellFormatting{
					AutoFormat: tw.On,
				},
			},
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
			Footer: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{
				Left:   tw.Off,
				Right:  tw.Off,
				Top:    tw.Off,
				Bottom: tw.Off,
			},
			Settings: tw.Settings{
				Separators: tw.Separators{
					BetweenColumns: tw.Off,
				},
			},
		}),
	)

	table.Header(t.Headers)
	for _, row := range t.Rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if len(t.Footer) > 0 {
		footerArgs := make([]any, len(t.Footer))
		for i, f := range t.Footer {
			footerArgs[i] = f
		}
		table.Footer(footerArgs...)
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}

func (t *Table) RenderMarkdown(w io.Writer) error {
	if t.Title != "" {
		fmt.Fprintf(w, "## %s\n\n", t.Title)
	}

	fmt.Fprintf(w, "| %s |\n", strings.Join(t.Headers, " | "))

	seps := make([]string, len(t.Headers))
	for i := range seps {
		seps[i] = "---"
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, row := range t.Rows {
		fmt.Fprintf(w, "| %s |\n", strings.Join(row, " | "))
	}

	if len(t.Footer) > 0 {
		fmt.Fprintf(w, "| %s |\n", strings.Join(t.Footer, " | "))
	}

	fmt.Fprintln(w)
	return nil
}

// Section is a Renderable titled block of text.
type Section struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (s *Section) RenderData() any {
	if s.Data != nil {
		return s.Data
	}
	return s
}

func (s *Section) RenderText(w io.Writer, colored bool) error {
	writeTitle(w, s.Title, "-", colored, color.Bold)
	if s.Content != "" {
		fmt.Fprintln(w, s.Content)
	}
	return nil
}

func (s *Section) RenderMarkdown(w io.Writer) error {
	if s.Title != "" {
		fmt.Fprintf(w, "## %s\n\n", s.Title)
	}
	if s.Content != "" {
		fmt.Fprintln(w, s.Content)
		fmt.Fprintln(w)
	}
	return nil
}

// Report is a compound Renderable made of sections and tables.
type Report struct {
	Title    string       `json:"title,omitempty"`
	Sections []Renderable `json:"-"`
	Data     any          `json:"data,omitempty"`
}

func (r *Report) RenderData() any {
	if r.Data != nil {
		return r.Data
	}
	parts := make([]any, len(r.Sections))
	for i, s := range r.Sections {
		parts[i] = s.RenderData()
	}
	return map[string]any{
		"title":    r.Title,
		"sections": parts,
	}
}

func (r *Report) RenderText(w io.Writer, colored bool) error {
	writeTitle(w, r.Title, "=", colored, color.Bold, color.FgCyan)

	for i, s := range r.Sections {
		if err := s.RenderText(w, colored); err != nil {
			return err
		}
		if i < len(r.Sections)-1 {
			fmt.Fprintln(w)
		}
	}
	return nil
}

func (r *Report) RenderMarkdown(w io.Writer) error {
	if r.Title != "" {
		fmt.Fprintf(w, "# %s\n\n", r.Title)
	}

	for _, s := range r.Sections {
		if err := s.RenderMarkdown(w); err != nil {
			return err
		}
	}
	return nil
}

func writeTitle(w io.Writer, title, underline string, colored bool, attrs ...color.Attribute) {
	if title == "" {
		return
	}
	if colored {
		color.New(attrs...).Fprintln(w, title)
	} else {
		fmt.Fprintln(w, title)
	}
	fmt.Fprintln(w, strings.Repeat(underline, len(title)))
	fmt.Fprintln(w)
}

// Message helpers for colored output

func (f *Formatter) Success(format string, args ...any) {
	f.message(color.FgGreen, "", format, args...)
}

func (f *Formatter) Warning(format string, args ...any) {
	f.message(color.FgYellow, "WARNING: ", format, args...)
}

func (f *Formatter) Info(format string, args ...any) {
	f.message(color.FgCyan, "", format, args...)
}

func (f *Formatter) message(attr color.Attribute, prefix, format string, args ...any) {
	if f.colored {
		color.New(attr).Fprintf(f.writer, format+"\n", args...)
		return
	}
	fmt.Fprintf(f.writer, prefix+format+"\n", args...)
}

// SimilarityColor colours a rendered similarity by how close the pair is.
func SimilarityColor(similarity float64, text string) string {
	switch {
	case similarity >= 0.95:
		return color.RedString(text)
	case similarity >= 0.85:
		return color.YellowString(text)
	default:
		return text
	}
}
