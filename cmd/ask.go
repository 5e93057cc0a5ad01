package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	askTenant string
	askTable  string
	askJSON   bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one natural-language question with SQL",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), generationTimeout())
		defer cancel()

		resp := env.Agent.Process(ctx, askTenant, question, askTable)

		if askJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return eris.Wrap(err, "encode response")
			}
		} else {
			fmt.Printf("SQL: %s\n", resp.SQLQuery)
			fmt.Printf("%s\n", resp.Message)
			for _, row := range resp.Rows {
				line, _ := json.Marshal(row)
				fmt.Println(string(line))
			}
		}

		if !resp.Success {
			return eris.Errorf("stage %s failed", resp.Stage)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askTenant, "tenant", "", "tenant id (default from config)")
	askCmd.Flags().StringVar(&askTable, "table", "", "requested table name (optional)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full response as JSON")
	rootCmd.AddCommand(askCmd)
}
