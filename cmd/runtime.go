package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"smsrouter/pkg/apps"
	"smsrouter/pkg/config"
	"smsrouter/pkg/logger"
	"smsrouter/pkg/router"
	"smsrouter/pkg/store"
)

const defaultStorePath = "smsrouter.db"

// appRuntime is what every command needs to run dispatch passes.
type appRuntime struct {
	cfg    *config.Config
	log    *slog.Logger
	store  *store.Store
	router *router.Router
}

// setupRuntime loads config, installs the logger, opens the store when an
// enabled app needs it, and builds the router from the configured apps.
func setupRuntime(component string) (*appRuntime, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)
	log := appLogger.With("component", component)

	names := appNames(cfg)

	var st *store.Store
	if needsStore(names) {
		st, err = store.Open(storePath(cfg))
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	}

	handlers, err := apps.Catalog().Build(names, router.Env{Store: st, Log: appLogger})
	if err != nil {
		log.Warn("Some apps could not be loaded", "error", err)
	}
	if len(handlers) == 0 {
		closeStore(st, log)
		return nil, errors.New("no handlers could be loaded")
	}

	rt := router.New(handlers, appLogger)
	log.Debug("Router ready", "handlers", rt.Names())

	return &appRuntime{cfg: cfg, log: log, store: st, router: rt}, nil
}

func (r *appRuntime) Close() {
	closeStore(r.store, r.log)
}

func closeStore(st *store.Store, log *slog.Logger) {
	if st == nil {
		return
	}
	if err := st.Close(); err != nil {
		log.Warn("Failed to close store", "error", err)
	}
}

// appNames returns the configured app list, or the built-in defaults.
func appNames(cfg *config.Config) []string {
	names := lo.Compact(lo.Map(cfg.Apps, func(name string, _ int) string {
		return strings.ToLower(strings.TrimSpace(name))
	}))
	if len(names) == 0 {
		return append([]string(nil), apps.Defaults...)
	}

	return names
}

func needsStore(names []string) bool {
	return lo.Contains(names, apps.Registration)
}

func storePath(cfg *config.Config) string {
	if path := strings.TrimSpace(cfg.Store.Path); path != "" {
		return path
	}

	return defaultStorePath
}
