// Package apps registers the built-in handler apps.
package apps

import (
	"smsrouter/pkg/apps/echo"
	"smsrouter/pkg/apps/ping"
	"smsrouter/pkg/apps/registration"
	"smsrouter/pkg/apps/sum"
	"smsrouter/pkg/handler"
	"smsrouter/pkg/router"
)

const (
	Echo         = "echo"
	Ping         = "ping"
	Sum          = "sum"
	Registration = "registration"
)

// Defaults is the app list used when the configuration names none.
var Defaults = []string{Ping, Sum, Registration, Echo}

// Catalog returns a catalog with every built-in app registered.
func Catalog() *router.Catalog {
	catalog := router.NewCatalog()

	catalog.Register(Echo, func(router.Env) ([]handler.Handler, error) {
		h, err := echo.New()
		return single(h, err)
	})
	catalog.Register(Ping, func(router.Env) ([]handler.Handler, error) {
		h, err := ping.New()
		return single(h, err)
	})
	catalog.Register(Sum, func(router.Env) ([]handler.Handler, error) {
		h, err := sum.New()
		return single(h, err)
	})
	catalog.Register(Registration, func(env router.Env) ([]handler.Handler, error) {
		if env.Store == nil {
			return nil, registration.ErrStoreRequired
		}
		h, err := registration.New(env.Store, env.Log)
		return single(h, err)
	})

	return catalog
}

func single(h handler.Handler, err error) ([]handler.Handler, error) {
	if err != nil {
		return nil, err
	}

	return []handler.Handler{h}, nil
}
