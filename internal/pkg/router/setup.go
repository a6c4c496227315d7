package router

import (
	"github.com/gofiber/fiber/v2"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Deps carries the middleware dependencies the route groups need.
type Deps struct {
	RequireAuth  fiber.Handler
	RequireAdmin fiber.Handler
}

// InstallRouter wires every route group.
func InstallRouter(app *fiber.App, deps Deps) {
	setup(app, NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
