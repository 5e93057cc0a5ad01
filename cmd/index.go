package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/querypilot/internal/metadata"
)

var (
	indexTenant      string
	indexTable       string
	indexConcurrency int
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Introspect live tables and upsert schema metadata entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Metadata == nil {
			return eris.New("metadata.path is not configured")
		}

		tenant := indexTenant
		if tenant == "" {
			tenant = cfg.Agent.DefaultTenant
		}

		tables, err := env.Primary.ListTables(cmd.Context())
		if err != nil {
			return err
		}
		if indexTable != "" {
			tables = []string{indexTable}
		} else if !cfg.Agent.ExternalSource {
			filtered := tables[:0]
			for _, t := range tables {
				if matchesTenant(t, tenant) {
					filtered = append(filtered, t)
				}
			}
			tables = filtered
		}
		if len(tables) == 0 {
			return eris.Errorf("no tables to index for tenant %q", tenant)
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(indexConcurrency)
		for _, table := range tables {
			g.Go(func() error {
				cols, err := env.Primary.Columns(ctx, table)
				if err != nil {
					return err
				}
				names := make([]string, 0, len(cols))
				for name := range cols {
					names = append(names, name)
				}
				if err := env.Metadata.Upsert(ctx, metadata.Entry{
					TenantID:  tenant,
					TableName: table,
					Columns:   names,
				}); err != nil {
					return err
				}
				zap.L().Info("indexed table",
					zap.String("tenant_id", tenant),
					zap.String("table", table),
					zap.Int("columns", len(names)),
				)
				return nil
			})
		}
		return g.Wait()
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexTenant, "tenant", "", "tenant to index tables under (default from config)")
	indexCmd.Flags().StringVar(&indexTable, "table", "", "index a single table")
	indexCmd.Flags().IntVar(&indexConcurrency, "concurrency", 4, "concurrent table introspections")
	rootCmd.AddCommand(indexCmd)
}
