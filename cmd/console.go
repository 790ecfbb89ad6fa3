package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"smsrouter/pkg/bus"
	"smsrouter/pkg/router"
	"smsrouter/pkg/ui/phone"
)

const consoleChannelName = "console"

var consoleFrom string

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Open the phone simulator",
	Long:  "Opens a terminal phone that sends each typed message through the configured apps and shows the replies.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		rt, err := setupRuntime("cmd.console")
		if err != nil {
			fmt.Printf("failed to start: %v\n", err)
			return
		}
		defer rt.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		info := phone.Info{Identity: consoleFrom, Handlers: rt.router.Names()}
		if err := phone.Run(ctx, consoleSender(rt.router), info); err != nil {
			fmt.Printf("console failed: %v\n", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().StringVarP(&consoleFrom, "from", "f", defaultSenderID, "initial sender identity")
}

func consoleSender(rt *router.Router) phone.SendFunc {
	return func(ctx context.Context, from string, text string) (router.Result, error) {
		return rt.Handle(ctx, bus.NewInbound(consoleChannelName, from, from, text))
	}
}
