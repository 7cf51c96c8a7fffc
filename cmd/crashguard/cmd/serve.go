package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/crashguard/internal/api"
	"github.com/hugo-lorenzo-mato/crashguard/internal/inbox"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve crash reports over HTTP",
	Long: `Serve the report inbox over HTTP while watching the report directory
for new crashes.

Examples:
  # Start with defaults (127.0.0.1:8787)
  crashguard serve

  # Start on custom host and port
  crashguard serve --host 0.0.0.0 --port 3000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "",
		"Host address to bind to (default from config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0,
		"Port to listen on (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	server := env.cfg.Server
	if serveHost != "" {
		server.Host = serveHost
	}
	if servePort != 0 {
		server.Port = servePort
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serveReports(ctx, env, server.Addr(), server.CORSOrigins)
}

// serveReports runs the API and the directory watcher until ctx is done or
// either fails.
func serveReports(ctx context.Context, env *commandEnv, addr string, corsOrigins []string) error {
	dir := env.cfg.ReportDir()
	opts := []api.ServerOption{api.WithLogger(env.logger.Logger)}
	if len(corsOrigins) > 0 {
		opts = append(opts, api.WithCORSOrigins(corsOrigins...))
	}
	srv := api.NewServer(env.store, dir, opts...)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(ctx, addr); err != nil {
			return fmt.Errorf("serving on %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		return env.store.Watch(ctx, dir, func(e inbox.Entry) {
			env.logger.Info("crash report received", "id", e.ID, "title", e.Title, "path", e.Path)
		})
	})

	err := g.Wait()
	env.logger.Info("server stopped")
	return err
}
