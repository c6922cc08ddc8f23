// Package render converts Result values into human-readable or machine-parseable
// output. Each format is a separate function; the top-level Render dispatcher
// selects based on the format string.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/derickschaefer/tvguidefetch/internal/model"
	"github.com/olekukonko/tablewriter"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
)

// Formats lists every accepted --format value.
var Formats = []string{FormatTable, FormatJSON, FormatJSONL, FormatCSV, FormatTSV, FormatMD}

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	case FormatMD:
		return renderMarkdown(w, result)
	case FormatTable, "":
		return renderTable(w, result)
	default:
		return fmt.Errorf("unknown format %q (valid: %s)", format, strings.Join(Formats, ", "))
	}
}

// RenderTo writes to stdout by default; if path is non-empty, writes to file.
func RenderTo(path string, result *model.Result, format string) error {
	if path == "" {
		return Render(os.Stdout, result, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return Render(f, result, format)
}

// ─── Tabular view ─────────────────────────────────────────────────────────────

// tabular is a header plus rows, shared by the table, delimited and
// markdown renderers.
type tabular struct {
	header []string
	rows   [][]string
	// right lists column indexes aligned right in the table renderer.
	right []int
}

// toTabular flattens a result payload. ok is false for kinds (or data types)
// that have no row form.
func toTabular(result *model.Result) (tabular, bool) {
	switch result.Kind {
	case model.KindChannel:
		chans, ok := result.Data.([]model.ChannelInfo)
		if !ok {
			return tabular{}, false
		}
		t := tabular{
			header: []string{"ID", "OZTIVOID", "FILLIN", "NAME", "LCN", "OFFSET", "DAYS", "CONFIGURED"},
			right:  []int{5, 6},
		}
		for _, c := range chans {
			t.rows = append(t.rows, []string{
				c.ID, c.OztivoID, c.FillinID, c.DisplayName, c.Number,
				strconv.Itoa(c.TimeOffset), strconv.Itoa(c.Days), yesNo(c.Configured),
			})
		}
		return t, true

	case model.KindSchedule:
		rec, ok := result.Data.(*model.ScheduleRecord)
		if !ok {
			return tabular{}, false
		}
		t := tabular{header: []string{"START", "STOP", "TITLE"}}
		for _, p := range rec.Programmes {
			t.rows = append(t.rows, []string{p.Start, p.Stop, p.Title})
		}
		return t, true

	case model.KindScheduleList:
		list, ok := result.Data.([]model.ScheduleSummary)
		if !ok {
			return tabular{}, false
		}
		t := tabular{
			header: []string{"CHANNEL", "NAME", "PROGRAMMES", "FIRST DAY", "LAST DAY", "SAVED"},
			right:  []int{2},
		}
		for _, s := range list {
			t.rows = append(t.rows, []string{
				s.ChannelID, s.DisplayName, strconv.Itoa(s.Count),
				s.FirstDay, s.LastDay, s.SavedAt.Local().Format("2006-01-02 15:04"),
			})
		}
		return t, true

	case model.KindRun:
		runs, ok := result.Data.([]model.RunRecord)
		if !ok {
			return tabular{}, false
		}
		t := tabular{
			header: []string{"RUN", "STARTED", "DURATION", "WINDOW", "CHANNELS", "PROGRAMMES", "FETCHED", "NOT MOD", "CACHED", "VALID"},
			right:  []int{4, 5, 6, 7, 8, 9},
		}
		for _, r := range runs {
			t.rows = append(t.rows, []string{
				shortID(r.ID),
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
				r.FirstDay + ".." + r.LastDay,
				strconv.Itoa(r.Channels),
				strconv.Itoa(r.Programmes),
				strconv.Itoa(r.Counts.Fetched),
				strconv.Itoa(r.Counts.NotModified),
				strconv.Itoa(r.Counts.Trusted),
				strconv.Itoa(r.Counts.CacheValid),
			})
		}
		return t, true

	case model.KindCacheEntry:
		entries, ok := result.Data.([]model.CacheEntry)
		if !ok {
			return tabular{}, false
		}
		t := tabular{
			header: []string{"NAME", "BYTES", "ENCODING", "LAST MODIFIED", "FETCHED"},
			right:  []int{1},
		}
		for _, e := range entries {
			t.rows = append(t.rows, []string{
				e.Name, strconv.FormatInt(e.Bytes, 10), e.Encoding, e.LastModified, e.FetchedAt,
			})
		}
		return t, true
	}
	return tabular{}, false
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

// jsonlProgramme is the canonical JSONL record for one scheduled programme.
type jsonlProgramme struct {
	ChannelID string `json:"channel_id"`
	model.Programme
}

func renderJSONL(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	switch data := result.Data.(type) {
	case *model.ScheduleRecord:
		for _, p := range data.Programmes {
			if err := enc.Encode(jsonlProgramme{ChannelID: data.ChannelID, Programme: p}); err != nil {
				return err
			}
		}
		return nil
	case []model.ChannelInfo:
		return encodeEach(enc, data)
	case []model.ScheduleSummary:
		return encodeEach(enc, data)
	case []model.RunRecord:
		return encodeEach(enc, data)
	case []model.CacheEntry:
		return encodeEach(enc, data)
	default:
		return enc.Encode(result.Data)
	}
}

func encodeEach[T any](enc *json.Encoder, items []T) error {
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

// ─── Table ────────────────────────────────────────────────────────────────────

func renderTable(w io.Writer, result *model.Result) error {
	t, ok := toTabular(result)
	if !ok {
		// Fallback: JSON
		return renderJSON(w, result)
	}
	if rec, isSched := result.Data.(*model.ScheduleRecord); isSched {
		fmt.Fprintf(w, "%s (%s)  %s..%s\n\n", rec.ChannelID, rec.DisplayName, rec.FirstDay, rec.LastDay)
	}

	tw := tablewriter.NewWriter(w)
	tw.SetHeader(t.header)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	if len(t.right) > 0 {
		align := make([]int, len(t.header))
		for i := range align {
			align[i] = tablewriter.ALIGN_LEFT
		}
		for _, i := range t.right {
			align[i] = tablewriter.ALIGN_RIGHT
		}
		tw.SetColumnAlignment(align)
	}
	tw.SetAutoWrapText(false)
	tw.AppendBulk(t.rows)
	tw.Render()
	return nil
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	if t, ok := toTabular(result); ok {
		header := make([]string, len(t.header))
		for i, h := range t.header {
			header[i] = strings.ToLower(strings.ReplaceAll(h, " ", "_"))
		}
		_ = cw.Write(header)
		for _, row := range t.rows {
			_ = cw.Write(row)
		}
	} else {
		// Fallback: serialize as JSON on a single line
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
	}

	cw.Flush()
	return cw.Error()
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	t, ok := toTabular(result)
	if !ok {
		return renderJSON(w, result)
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(t.header, " | "))
	seps := make([]string, len(t.header))
	for i := range seps {
		seps[i] = "----"
	}
	fmt.Fprintf(w, "|%s|\n", strings.Join(seps, "|"))
	for _, row := range t.rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = mdEscape(c)
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
	return nil
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings and stats to w when verbose mode is on.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		fmt.Fprintf(w, "\n[%s • %d items • %dms]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.DurationMs,
		)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// shortID trims a uuid to its first block for table display.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
