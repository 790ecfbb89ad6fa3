package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "smsrouter",
	Short: "Route short text messages to keyword and pattern handlers",
	Long: `smsrouter receives short text messages from Telegram, an HTTP SMS webhook,
or the local console and hands each one to the first handler that accepts it.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
