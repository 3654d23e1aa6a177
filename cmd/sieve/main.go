// Command sieve compiles condition expressions into index filter trees.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sieve/cmd/sieve/cli"
	"sieve/internal/logging"
)

var version = "dev"

func main() {
	// Allow all levels; filtering is done by ComponentFilterHandler.
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelWarn)
	logger := slog.New(filterHandler)

	rootCmd := &cobra.Command{
		Use:           "sieve",
		Short:         "Condition-to-filter compiler",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			spec, _ := cmd.Flags().GetString("log-level")
			return filterHandler.Configure(spec)
		},
	}
	rootCmd.PersistentFlags().String("log-level", "warn", `log levels, e.g. "info" or "warn,compiler=debug"`)

	rootCmd.AddCommand(cli.Commands(logger)...)
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
