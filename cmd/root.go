package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/querypilot/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "querypilot",
	Short: "Natural-language questions to SQL over multi-tenant tables",
	Long:  "Resolves the tenant table a question refers to, generates SQL with a text-generation backend, repairs it, and executes it with engine fallback.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
