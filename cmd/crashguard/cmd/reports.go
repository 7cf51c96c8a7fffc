package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/crashguard/internal/inbox"
	"github.com/hugo-lorenzo-mato/crashguard/internal/render"
)

var reportsCmd = &cobra.Command{
	Use:     "reports",
	Aliases: []string{"report", "r"},
	Short:   "List, show and acknowledge crash reports",
}

var reportsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List crash reports, newest first",
	Args:    cobra.NoArgs,
	RunE:    runReportsList,
}

var reportsShowCmd = &cobra.Command{
	Use:   "show [id-or-query]",
	Short: "Show one crash report",
	Long: `Show one crash report. Without an argument the most recent report is
shown. The argument is matched exactly against report ids first, then
fuzzily against ids and titles.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReportsShow,
}

var reportsAckCmd = &cobra.Command{
	Use:   "ack [id...]",
	Short: "Mark crash reports as handled",
	RunE:  runReportsAck,
}

var reportsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print crash reports as they are written",
	Args:  cobra.NoArgs,
	RunE:  runReportsWatch,
}

var (
	reportsFormat  string
	reportsUnacked bool
	reportsLimit   int
	reportsAckAll  bool
)

func init() {
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.AddCommand(reportsListCmd, reportsShowCmd, reportsAckCmd, reportsWatchCmd)

	formats := make([]string, len(render.Formats))
	for i, f := range render.Formats {
		formats[i] = string(f)
	}
	reportsCmd.PersistentFlags().StringVarP(&reportsFormat, "format", "f", "text",
		"output format ("+strings.Join(formats, ", ")+")")

	reportsListCmd.Flags().BoolVar(&reportsUnacked, "unacked", false, "Only list reports not yet acknowledged")
	reportsListCmd.Flags().IntVarP(&reportsLimit, "limit", "n", 0, "Maximum number of reports (0 = all)")
	reportsAckCmd.Flags().BoolVar(&reportsAckAll, "all", false, "Acknowledge every report")
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runReportsList(cmd *cobra.Command, _ []string) error {
	format, err := render.ParseFormat(reportsFormat)
	if err != nil {
		return err
	}
	if reportsLimit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	ctx := commandContext(cmd)
	if _, err := env.store.Ingest(ctx, env.cfg.ReportDir()); err != nil {
		return fmt.Errorf("reading reports: %w", err)
	}
	entries, err := env.store.List(ctx, inbox.ListFilter{UnackedOnly: reportsUnacked, Limit: reportsLimit})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	return render.Entries(out, format, entries, renderOptions(out))
}

func runReportsShow(cmd *cobra.Command, args []string) error {
	format, err := render.ParseFormat(reportsFormat)
	if err != nil {
		return err
	}
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	query := ""
	if len(args) == 1 {
		query = args[0]
	}
	entry, err := resolveReport(commandContext(cmd), env, query)
	if err != nil {
		return err
	}
	report, err := diagnostics.LoadReport(entry.Path)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	return render.Report(out, format, report, entry.Path, renderOptions(out))
}

// resolveReport finds the entry for query: the newest when empty, an exact
// id, or the best fuzzy match over ids and titles.
func resolveReport(ctx context.Context, env *commandEnv, query string) (inbox.Entry, error) {
	if _, err := env.store.Ingest(ctx, env.cfg.ReportDir()); err != nil {
		return inbox.Entry{}, fmt.Errorf("reading reports: %w", err)
	}

	if query == "" {
		entries, err := env.store.List(ctx, inbox.ListFilter{Limit: 1})
		if err != nil {
			return inbox.Entry{}, err
		}
		if len(entries) == 0 {
			return inbox.Entry{}, core.ErrNotFound("crash report", "latest")
		}
		return entries[0], nil
	}

	entry, err := env.store.Get(ctx, query)
	if err == nil || !core.IsCategory(err, core.ErrCatNotFound) {
		return entry, err
	}

	entries, err := env.store.List(ctx, inbox.ListFilter{})
	if err != nil {
		return inbox.Entry{}, err
	}
	candidates := make([]string, len(entries))
	for i, e := range entries {
		candidates[i] = e.ID + " " + e.Title
	}
	matches := fuzzy.Find(query, candidates)
	if len(matches) == 0 {
		return inbox.Entry{}, core.ErrNotFound("crash report", query)
	}
	return entries[matches[0].Index], nil
}

func runReportsAck(cmd *cobra.Command, args []string) error {
	if reportsAckAll == (len(args) > 0) {
		return fmt.Errorf("give either report ids or --all")
	}
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	ctx := commandContext(cmd)
	ids := args
	if reportsAckAll {
		if _, err := env.store.Ingest(ctx, env.cfg.ReportDir()); err != nil {
			return fmt.Errorf("reading reports: %w", err)
		}
		entries, err := env.store.List(ctx, inbox.ListFilter{UnackedOnly: true})
		if err != nil {
			return err
		}
		ids = make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
	}

	out := cmd.OutOrStdout()
	for _, id := range ids {
		entry, err := env.store.Ack(ctx, id)
		if err != nil {
			return fmt.Errorf("acknowledging %s: %w", id, err)
		}
		if !quiet {
			fmt.Fprintf(out, "acknowledged %s (%s)\n", entry.ID, entry.Title)
		}
	}
	if len(ids) == 0 && !quiet {
		fmt.Fprintln(out, "Nothing to acknowledge.")
	}
	return nil
}

func runReportsWatch(cmd *cobra.Command, _ []string) error {
	format, err := render.ParseFormat(reportsFormat)
	if err != nil {
		return err
	}
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	dir := env.cfg.ReportDir()
	env.logger.Info("watching for crash reports", "dir", dir)
	return env.store.Watch(ctx, dir, func(e inbox.Entry) {
		if format == render.FormatJSON {
			if err := enc.Encode(e); err != nil {
				env.logger.Warn("writing entry", "error", err)
			}
			return
		}
		fmt.Fprintf(out, "%s  %s  %s\n", e.CrashedAt.Local().Format("2006-01-02 15:04:05"), e.ID, e.Title)
	})
}
