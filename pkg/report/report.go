// Package report renders task results for local operator use: text and
// markdown tables, JSON, and TOON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	toon "github.com/toon-format/toon-go"

	"github.com/plagiscan/engine/pkg/model"
)

// Format is an output rendering mode.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatTOON     Format = "toon"
)

// ParseFormat converts a string to Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "markdown", "md":
		return FormatMarkdown
	case "toon":
		return FormatTOON
	default:
		return FormatText
	}
}

// PairRow is one PairResult flattened for tabular display, with file IDs
// substituted for content hashes when the caller has that mapping.
type PairRow struct {
	FileA  string
	FileB  string
	Result model.PairResult
}

// TaskReport is the rendered summary of a Task run: every written pair
// plus simple aggregate counts.
type TaskReport struct {
	TaskID string
	Pairs  []PairRow
}

// NewTaskReport sorts pairs by descending token similarity so the most
// suspicious pairs surface first.
func NewTaskReport(taskID string, pairs []PairRow) *TaskReport {
	sorted := make([]PairRow, len(pairs))
	copy(sorted, pairs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Result.TokenSimilarity > sorted[j].Result.TokenSimilarity
	})
	return &TaskReport{TaskID: taskID, Pairs: sorted}
}

func (r *TaskReport) flaggedCount(threshold float64) int {
	n := 0
	for _, p := range r.Pairs {
		if p.Result.TokenSimilarity >= threshold {
			n++
		}
	}
	return n
}

// RenderData returns the JSON/TOON-serializable view of the report.
func (r *TaskReport) RenderData() any {
	return r
}

func (r *TaskReport) rows() [][]string {
	rows := make([][]string, 0, len(r.Pairs))
	for _, p := range r.Pairs {
		reason := p.Result.Reason
		if reason == "" {
			reason = "-"
		}
		rows = append(rows, []string{
			p.FileA,
			p.FileB,
			fmt.Sprintf("%.3f", p.Result.TokenSimilarity),
			fmt.Sprintf("%.3f", p.Result.AstSimilarity),
			fmt.Sprintf("%d", len(p.Result.Matches)),
			reason,
		})
	}
	return rows
}

var tableHeaders = []string{"File A", "File B", "Token Sim", "AST Sim", "Matches", "Reason"}

// RenderText writes a colored console table, flagging pairs at or above
// 0.5 token similarity in red.
func (r *TaskReport) RenderText(w io.Writer, colored bool) error {
	title := fmt.Sprintf("Task %s — %d pair(s) compared, %d flagged", r.TaskID, len(r.Pairs), r.flaggedCount(0.5))
	if colored {
		color.New(color.Bold).Fprintln(w, title)
	} else {
		fmt.Fprintln(w, title)
	}
	fmt.Fprintln(w, strings.Repeat("=", len(title)))
	fmt.Fprintln(w)

	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignLeft}},
			Row:    tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignLeft}},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{Left: tw.Off, Right: tw.Off, Top: tw.Off, Bottom: tw.Off},
			Settings: tw.Settings{
				Separators: tw.Separators{BetweenColumns: tw.Off},
			},
		}),
	)
	table.Header(tableHeaders)
	for _, p := range r.Pairs {
		row := r.rowFor(p)
		if colored && p.Result.TokenSimilarity >= 0.5 {
			row[2] = color.RedString(row[2])
		}
		table.Append(row)
	}
	table.Render()
	fmt.Fprintln(w)
	return nil
}

func (r *TaskReport) rowFor(p PairRow) []string {
	reason := p.Result.Reason
	if reason == "" {
		reason = "-"
	}
	return []string{
		p.FileA,
		p.FileB,
		fmt.Sprintf("%.3f", p.Result.TokenSimilarity),
		fmt.Sprintf("%.3f", p.Result.AstSimilarity),
		fmt.Sprintf("%d", len(p.Result.Matches)),
		reason,
	}
}

// RenderMarkdown writes a GitHub-flavored markdown table.
func (r *TaskReport) RenderMarkdown(w io.Writer) error {
	fmt.Fprintf(w, "## Task %s\n\n", r.TaskID)
	fmt.Fprintf(w, "| %s |\n", strings.Join(tableHeaders, " | "))
	seps := make([]string, len(tableHeaders))
	for i := range seps {
		seps[i] = "---"
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))
	for _, row := range r.rows() {
		fmt.Fprintf(w, "| %s |\n", strings.Join(row, " | "))
	}
	fmt.Fprintln(w)
	return nil
}

// Formatter writes a TaskReport in the caller's chosen Format, optionally
// to a file instead of stdout.
type Formatter struct {
	format  Format
	writer  io.Writer
	file    *os.File
	colored bool
}

// NewFormatter opens output (stdout if empty) and returns a Formatter.
// Writing to a file disables color, since ANSI codes have no business in
// a saved report.
func NewFormatter(format Format, output string, colored bool) (*Formatter, error) {
	var w io.Writer = os.Stdout
	var file *os.File
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return nil, fmt.Errorf("%w: creating %s: %v", model.ErrStoreUnavailable, output, err)
		}
		w, file = f, f
		colored = false
	}
	return &Formatter{format: format, writer: w, file: file, colored: colored}, nil
}

// Close closes the underlying file, if any.
func (f *Formatter) Close() error {
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}

// Output renders report in the Formatter's configured format.
func (f *Formatter) Output(report *TaskReport) error {
	switch f.format {
	case FormatJSON:
		enc := json.NewEncoder(f.writer)
		enc.SetIndent("", "  ")
		return enc.Encode(report.RenderData())
	case FormatTOON:
		out, err := toon.Marshal(report.RenderData(), toon.WithIndent(2))
		if err != nil {
			return err
		}
		_, err = f.writer.Write(out)
		return err
	case FormatMarkdown:
		return report.RenderMarkdown(f.writer)
	default:
		return report.RenderText(f.writer, f.colored)
	}
}
