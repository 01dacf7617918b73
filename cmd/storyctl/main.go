package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"storytime/internal/app"
	"storytime/internal/config"
	"storytime/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "storyctl",
	Short:         "Administer the storytime question bank and storylines",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "storyctl: %v\n", err)
		os.Exit(1)
	}
}

// openApp loads configuration and opens the database for one command.
func openApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logger)
}
