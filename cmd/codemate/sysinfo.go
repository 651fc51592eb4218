package main

import (
	"encoding/json"
	"fmt"

	"github.com/ashureev/codemate/internal/tools"
	"github.com/spf13/cobra"
)

var sysinfoJSON bool

var sysinfoCmd = &cobra.Command{
	Use:   "sysinfo",
	Short: "Print the system capabilities report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		report := tools.DiscoverSystem(cmd.Context())
		if !sysinfoJSON {
			fmt.Fprintln(cmd.OutOrStdout(), report.String())
			return nil
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	sysinfoCmd.Flags().BoolVar(&sysinfoJSON, "json", false, "print the report as JSON")
}
