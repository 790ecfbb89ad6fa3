package cmd

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"smsrouter/pkg/apps"
	"smsrouter/pkg/config"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List available apps",
	Long:  "Lists every built-in app and marks the ones enabled by the current configuration.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		enabled := apps.Defaults
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "config not loaded, showing defaults: %v\n", err)
		} else {
			enabled = appNames(cfg)
		}

		listApps(cmd.OutOrStdout(), apps.Catalog().Names(), enabled)
	},
}

func init() {
	rootCmd.AddCommand(appsCmd)
}

// listApps prints one row per available app. Enabled names that no app
// provides are listed afterwards as unknown.
func listApps(out io.Writer, available []string, enabled []string) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"App", "Status"})
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	for _, name := range available {
		status := "disabled"
		if lo.Contains(enabled, name) {
			status = "enabled"
		}
		table.Append([]string{name, status})
	}

	for _, name := range lo.Without(lo.Uniq(enabled), available...) {
		table.Append([]string{name, "unknown"})
	}

	table.Render()
}
