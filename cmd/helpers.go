package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/derickschaefer/tvguidefetch/internal/model"
	"github.com/derickschaefer/tvguidefetch/internal/render"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// resolveFormat returns the effective listing format, falling back to "table".
func resolveFormat() string {
	if globalFlags.Format != "" {
		return globalFlags.Format
	}
	return render.FormatTable
}

// outputWriter returns the --output file if one was given, else def. The
// returned close function must always be called.
func outputWriter(def io.Writer) (io.Writer, func() error, error) {
	if globalFlags.Out == "" {
		return def, func() error { return nil }, nil
	}
	f, err := os.Create(globalFlags.Out)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// emit renders result to --output or the command's stdout, then prints the
// footer to stderr so machine-readable output stays clean.
func emit(cmd *cobra.Command, result *model.Result) error {
	format := resolveFormat()
	var err error
	if globalFlags.Out != "" {
		err = render.RenderTo(globalFlags.Out, result, format)
	} else {
		err = render.Render(cmd.OutOrStdout(), result, format)
	}
	if err != nil {
		return err
	}
	render.PrintFooter(cmd.ErrOrStderr(), result, globalFlags.Verbose)
	return nil
}

// newResult wraps data in a Result envelope.
func newResult(kind, command string, data interface{}, items int, started time.Time) *model.Result {
	return &model.Result{
		Kind:        kind,
		GeneratedAt: time.Now(),
		Command:     command,
		Data:        data,
		Stats: model.ResultStats{
			Items:      items,
			DurationMs: time.Since(started).Milliseconds(),
		},
	}
}

// printSimpleTable renders a simple table with headers using tablewriter.
// The add callback is called with row values as variadic strings.
func printSimpleTable(w io.Writer, headers []string, fill func(add func(...string))) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)

	fill(func(cols ...string) {
		tw.Append(cols)
	})
	tw.Render()
}

// printKVTable renders a two-column key/value list using aligned columns.
func printKVTable(w io.Writer, rows [][]string) {
	maxKey := 0
	for _, r := range rows {
		if len(r[0]) > maxKey {
			maxKey = len(r[0])
		}
	}
	for _, r := range rows {
		padding := strings.Repeat(" ", maxKey-len(r[0]))
		fmt.Fprintf(w, "  %s%s  %s\n", r[0], padding, r[1])
	}
}

func humanBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
