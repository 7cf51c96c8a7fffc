package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/crashguard"
)

var demoModes = []string{"panic", "nil", "divide", "abort", "goroutine"}

var demoCmd = &cobra.Command{
	Use:   "demo <" + strings.Join(demoModes, "|") + ">",
	Short: "Install the crash handler and crash on purpose",
	Long: `Install the crash handler with the current configuration, then crash
the process in the requested way:

  panic      an uncaught panic
  nil        a nil pointer dereference (SIGSEGV)
  divide     an integer division by zero (SIGFPE)
  abort      SIGABRT sent to the process
  goroutine  a panic in a goroutine started with crashguard.Go

The process does not return. Inspect the result with 'crashguard reports show'.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: demoModes,
	RunE:      runDemo,
}

var demoNoNotice bool

var demoSink int

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().BoolVar(&demoNoNotice, "no-notice", false, "Skip the crash notice")
}

func runDemo(cmd *cobra.Command, args []string) error {
	mode := args[0]
	if !validDemoMode(mode) {
		return fmt.Errorf("unknown demo %q (want one of %s)", mode, strings.Join(demoModes, ", "))
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closer() }()

	opts, err := cfg.InstallOptions()
	if err != nil {
		return err
	}
	opts = append(opts, crashguard.WithLogger(logger.Logger))
	if err := crashguard.InstallContext(commandContext(cmd), cfg.Notice.Enabled && !demoNoNotice, opts...); err != nil {
		return fmt.Errorf("installing crash handler: %w", err)
	}

	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "crashing (%s), report goes to %s\n", mode, cfg.ReportDir())
	}
	crash(mode)
	return errors.New("the process survived the crash")
}

func validDemoMode(mode string) bool {
	for _, m := range demoModes {
		if m == mode {
			return true
		}
	}
	return false
}

func crash(mode string) {
	switch mode {
	case "panic":
		defer crashguard.Recover()
		panic(errors.New("crashguard demo panic"))
	case "nil":
		defer crashguard.Recover()
		var p *struct{ n int }
		demoSink = p.n
	case "divide":
		defer crashguard.Recover()
		zero := 0
		demoSink = 1 / zero
	case "abort":
		if p, err := os.FindProcess(os.Getpid()); err == nil {
			_ = p.Signal(syscall.SIGABRT)
		}
	case "goroutine":
		crashguard.Go(func() {
			panic("crashguard demo goroutine panic")
		})
	}
	// Signal delivery and goroutine panics are asynchronous.
	time.Sleep(time.Minute)
}
