package cmd

import (
	"context"
	"log/slog"

	"github.com/mutual-network/escrow-indexer/internal/config"
	"github.com/mutual-network/escrow-indexer/pkg/logger"
	"github.com/mutual-network/escrow-indexer/pkg/logger/slogx"
	"github.com/spf13/cobra"
)

var cmd = &cobra.Command{
	Use:   "mutual",
	Long:  `Mutual escrow indexer: ingests escrow ledger events, projects deal state and settles vesting payments.`,
	Short: "Mutual escrow indexer",
}

func init() {
	var configFile string

	// Add global flags
	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file, E.g. `./config.yaml`")
	flags.String("chain", "", "escrow chain to index, E.g. `solana-mainnet`, `solana-devnet` or `localnet`")

	// Bind flags to configuration
	config.BindPFlag("modules.escrow.chain_id", flags.Lookup("chain"))

	// Initialize configuration and logger on start command
	cobra.OnInitialize(func() {
		// Initialize configuration
		config := config.Parse(configFile)

		// Initialize logger
		if err := logger.Init(config.Logger); err != nil {
			logger.Panic("Failed to initialize logger", slogx.Error(err), slog.Any("config", config.Logger))
		}
	})
}

func Execute(ctx context.Context) {
	// Register sub-commands
	cmd.AddCommand(
		NewVersionCommand(),
		NewRunCommand(),
		NewMigrateCommand(),
		NewExportEventsCommand(),
	)

	// Execute command
	if err := cmd.ExecuteContext(ctx); err != nil {
		logger.Panic("Failed to execute root command", slogx.Error(err))
	}
}
