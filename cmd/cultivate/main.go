package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"cultivator/internal/logging"
)

var (
	// Global flags
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cultivate",
	Short: "Grow a Reddit account's comment history slowly and safely",
	Long: `cultivate finds fresh, modest posts in a handful of subreddits and prepares
a few comments per session, never more than the safety policy allows.

Every session is gated by a shadow-ban check, a daily session cap, a cooldown
between sessions and a daily comment cap. Everything done is written to a local
ledger so the same post is never targeted twice.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional.
		_ = godotenv.Load()
		if err := logging.Init(verbose); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./cultivate.yaml", "Config file (missing file means defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(shadowbanCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(nextCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
