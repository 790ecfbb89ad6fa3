package router

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"smsrouter/pkg/handler"
	"smsrouter/pkg/store"

	"github.com/samber/lo"
)

// ErrUnknownApp is returned by Catalog.Build for names nobody registered.
var ErrUnknownApp = errors.New("unknown app")

// Env carries the shared dependencies an app factory may use.
type Env struct {
	Store *store.Store
	Log   *slog.Logger
}

// Factory builds the handlers of one app.
type Factory func(env Env) ([]handler.Handler, error)

// Catalog is the static list of apps a deployment can enable by name.
type Catalog struct {
	factories map[string]Factory
}

func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Register binds a factory to an app name. Registering the same name twice
// replaces the earlier factory.
func (c *Catalog) Register(name string, factory Factory) {
	c.factories[normalizeAppName(name)] = factory
}

// Names returns the registered app names, sorted.
func (c *Catalog) Names() []string {
	names := lo.Keys(c.factories)
	slices.Sort(names)
	return names
}

// Build resolves the enabled app names into handlers, in the given order.
//
// Each app is built in isolation: an unknown name or a failing factory is
// logged and reported in the joined error, and the remaining apps are still
// returned.
func (c *Catalog) Build(names []string, env Env) ([]handler.Handler, error) {
	if env.Log == nil {
		env.Log = slog.Default()
	}
	log := env.Log.With("component", "router.catalog")

	enabled := lo.Uniq(lo.FilterMap(names, func(name string, _ int) (string, bool) {
		normalized := normalizeAppName(name)
		return normalized, normalized != ""
	}))

	var (
		handlers []handler.Handler
		errs     []error
	)
	for _, name := range enabled {
		factory, ok := c.factories[name]
		if !ok {
			log.Error("App is not registered", "app", name)
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownApp, name))
			continue
		}

		built, err := factory(Env{Store: env.Store, Log: env.Log.With("app", name)})
		if err != nil {
			log.Error("Failed to build app", "app", name, "error", err)
			errs = append(errs, fmt.Errorf("build app %s: %w", name, err))
			continue
		}

		log.Debug("App enabled", "app", name, "handlers", len(built))
		handlers = append(handlers, built...)
	}

	return handlers, errors.Join(errs...)
}

func normalizeAppName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
