package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/querypilot/internal/agent"
)

var tablesTenant string

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List live tables visible to a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		all, err := env.Primary.ListTables(cmd.Context())
		if err != nil {
			return err
		}

		if tablesTenant == "" {
			for _, t := range all {
				fmt.Println(t)
			}
			fmt.Printf("\n%d table(s); discovered tenants: %v\n", len(all), agent.DiscoverTenants(all))
			return nil
		}

		count := 0
		for _, t := range all {
			if matchesTenant(t, tablesTenant) {
				fmt.Println(t)
				count++
			}
		}
		fmt.Printf("\n%d table(s) for tenant %s\n", count, tablesTenant)
		return nil
	},
}

func matchesTenant(table, tenant string) bool {
	return len(table) > len(tenant)+1 &&
		(table[len(table)-len(tenant)-1:] == "_"+tenant || table[:len(tenant)+1] == tenant+"_")
}

func init() {
	tablesCmd.Flags().StringVar(&tablesTenant, "tenant", "", "filter to one tenant's tables")
	rootCmd.AddCommand(tablesCmd)
}
