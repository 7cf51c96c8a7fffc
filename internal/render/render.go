// Package render formats crash reports and inbox entries for people and
// for other tools.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/inbox"
	"github.com/hugo-lorenzo-mato/crashguard/internal/notice"
)

// Format selects the output encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// Formats lists the accepted format names.
var Formats = []Format{FormatText, FormatMarkdown, FormatJSON, FormatYAML}

// ParseFormat accepts a format name or a short alias (md, yml).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", core.ErrValidation("INVALID_FORMAT", fmt.Sprintf("unknown format %q", s))
	}
}

// Options tune human-readable output.
type Options struct {
	// Styled enables terminal colors for markdown.
	Styled bool
	// Width wraps markdown output; zero means 80.
	Width int
}

// reportDoc is the structured view of a report used for yaml output,
// where the hand-rolled JSON encoding of the core types does not apply.
type reportDoc struct {
	ID          string            `yaml:"id"`
	Path        string            `yaml:"path,omitempty"`
	Cause       core.Cause        `yaml:"cause"`
	ThreadID    int               `yaml:"thread_id"`
	GoroutineID uint64            `yaml:"goroutine_id"`
	Timestamp   time.Time         `yaml:"timestamp"`
	Backtrace   []string          `yaml:"backtrace"`
	Metadata    map[string]string `yaml:"metadata,omitempty"`
	Resources   core.Resources    `yaml:"resources"`
	Goroutines  string            `yaml:"goroutines,omitempty"`
}

func docFor(r *core.CrashReport, path string) reportDoc {
	frames := r.Backtrace.Frames()
	bt := make([]string, len(frames))
	for i, pc := range frames {
		bt[i] = core.Addr(pc).String()
	}
	return reportDoc{
		ID:          r.ID,
		Path:        path,
		Cause:       r.Cause,
		ThreadID:    r.ThreadID,
		GoroutineID: r.GoroutineID,
		Timestamp:   r.Timestamp,
		Backtrace:   bt,
		Metadata:    r.Metadata.Map(),
		Resources:   r.Resources,
		Goroutines:  string(r.Goroutines),
	}
}

// Report writes one report.
func Report(w io.Writer, format Format, r *core.CrashReport, path string, opts Options) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		return writeYAML(w, docFor(r, path))
	case FormatMarkdown:
		out, err := renderMarkdown(ReportMarkdown(r, path), opts)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		return reportText(w, r, path)
	}
}

// Entries writes a list of inbox entries.
func Entries(w io.Writer, format Format, entries []inbox.Entry, opts Options) error {
	if entries == nil {
		entries = []inbox.Entry{}
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case FormatYAML:
		return writeYAML(w, entries)
	case FormatMarkdown:
		out, err := renderMarkdown(EntriesMarkdown(entries), opts)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		return entriesText(w, entries)
	}
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}

func reportText(w io.Writer, r *core.CrashReport, path string) error {
	s := notice.Summarize(r, path)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\n\n", s.Title)
	fmt.Fprintf(tw, "Report:\t%s\n", r.ID)
	if path != "" {
		fmt.Fprintf(tw, "File:\t%s\n", path)
	}
	fmt.Fprintf(tw, "Time:\t%s\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(tw, "Cause:\t%s\n", r.Cause)
	fmt.Fprintf(tw, "Thread:\t%d\n", r.ThreadID)
	fmt.Fprintf(tw, "Goroutine:\t%d\n", r.GoroutineID)
	fmt.Fprintf(tw, "Goroutines:\t%d\n", r.Resources.Goroutines)
	fmt.Fprintf(tw, "Heap:\t%s in use\n", formatBytes(r.Resources.HeapInuseBytes))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nBacktrace (%d frames):\n", r.Backtrace.Len())
	for i, pc := range r.Backtrace.Frames() {
		fmt.Fprintf(w, "  #%-3d %s\n", i, core.Addr(pc))
	}

	if len(r.Metadata) > 0 {
		fmt.Fprintln(w, "\nMetadata:")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, e := range r.Metadata {
			fmt.Fprintf(tw, "  %s\t%s\n", e.Key, e.Value)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if len(r.Goroutines) > 0 {
		fmt.Fprintf(w, "\nGoroutines:\n%s\n", r.Goroutines)
	}
	return nil
}

func entriesText(w io.Writer, entries []inbox.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No crash reports.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCRASHED\tCAUSE\tSTATUS")
	for _, e := range entries {
		status := "new"
		if e.Acked() {
			status = "acked"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.CrashedAt.Local().Format("2006-01-02 15:04:05"), e.Title, status)
	}
	return tw.Flush()
}

// ReportMarkdown describes a report as markdown.
func ReportMarkdown(r *core.CrashReport, path string) string {
	s := notice.Summarize(r, path)
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.Title)
	fmt.Fprintf(&b, "| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Report | `%s` |\n", r.ID)
	if path != "" {
		fmt.Fprintf(&b, "| File | `%s` |\n", path)
	}
	fmt.Fprintf(&b, "| Time | %s |\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "| Cause | %s |\n", escapeCell(r.Cause.String()))
	fmt.Fprintf(&b, "| Thread | %d |\n", r.ThreadID)
	fmt.Fprintf(&b, "| Goroutine | %d |\n", r.GoroutineID)
	fmt.Fprintf(&b, "| Heap in use | %s |\n\n", formatBytes(r.Resources.HeapInuseBytes))

	fmt.Fprintf(&b, "## Backtrace\n\n```\n")
	for i, pc := range r.Backtrace.Frames() {
		fmt.Fprintf(&b, "#%-3d %s\n", i, core.Addr(pc))
	}
	b.WriteString("```\n")

	if len(r.Metadata) > 0 {
		b.WriteString("\n## Metadata\n\n| Key | Value |\n|---|---|\n")
		for _, e := range r.Metadata {
			fmt.Fprintf(&b, "| %s | %s |\n", escapeCell(e.Key), escapeCell(e.Value))
		}
	}
	return b.String()
}

// EntriesMarkdown describes inbox entries as a markdown table.
func EntriesMarkdown(entries []inbox.Entry) string {
	if len(entries) == 0 {
		return "_No crash reports._\n"
	}
	sorted := append([]inbox.Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CrashedAt.After(sorted[j].CrashedAt) })

	var b strings.Builder
	b.WriteString("# Crash reports\n\n| ID | Crashed | Cause | Status |\n|---|---|---|---|\n")
	for _, e := range sorted {
		status := "new"
		if e.Acked() {
			status = "acked"
		}
		fmt.Fprintf(&b, "| `%s` | %s | %s | %s |\n", e.ID, e.CrashedAt.Format(time.RFC3339), escapeCell(e.Title), status)
	}
	return b.String()
}

func renderMarkdown(md string, opts Options) (string, error) {
	width := opts.Width
	if width <= 0 {
		width = 80
	}
	style := styles.NoTTYStyleConfig
	if opts.Styled {
		style = styles.DraculaStyleConfig
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return out, nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
