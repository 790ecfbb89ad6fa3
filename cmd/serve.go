package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"smsrouter/pkg/bus"
	"smsrouter/pkg/channel"
	"smsrouter/pkg/channel/httpsms"
	"smsrouter/pkg/channel/telegram"
	"smsrouter/pkg/channel/ws"
	"smsrouter/pkg/config"
	"smsrouter/pkg/gateway"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the message gateway",
	Long:  "Runs the enabled channels, routes every inbound message, and serves health, readiness, and registration endpoints.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		rt, err := setupRuntime("cmd.serve")
		if err != nil {
			fmt.Printf("failed to start: %v\n", err)
			return
		}
		defer rt.Close()
		log := rt.log

		adapters, err := enabledAdapters(rt.cfg, log)
		if err != nil {
			log.Error("Gateway configuration invalid", "error", err)
			return
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		messageBus := bus.NewMessageBusWithBuffer(rt.cfg.Bus.BufferSize)
		defer messageBus.Close()

		svc, err := gateway.NewService(rt.cfg, rt.router, rt.store, messageBus, adapters, log)
		if err != nil {
			log.Error("Failed to initialize gateway service", "error", err)
			return
		}

		log.Info("Serving", "channels", enabledChannelNames(adapters), "handlers", rt.router.Names())
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Gateway runtime failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func enabledAdapters(cfg *config.Config, log *slog.Logger) ([]channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 3)

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, log)
		if err != nil {
			return nil, fmt.Errorf("configure telegram channel: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	if cfg.Channels.HTTP.Enabled {
		adapters = append(adapters, httpsms.NewAdapter(cfg.Channels.HTTP, log))
	}

	if cfg.Channels.WebSocket.Enabled {
		adapters = append(adapters, ws.NewAdapter(cfg.Channels.WebSocket, log))
	}

	if len(adapters) == 0 {
		return nil, errors.New("no channels are enabled")
	}

	return adapters, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	return strings.Join(lo.Map(adapters, func(adapter channel.Adapter, _ int) string {
		return adapter.Name()
	}), ",")
}
