// Package router arma el árbol de rutas del servidor JWKS.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arku/fxa/internal/http/handlers"
	mw "github.com/arku/fxa/internal/http/middlewares"
)

// Deps agrupa las dependencias del router.
type Deps struct {
	JWKS   *handlers.JWKSHandler
	Health *handlers.HealthHandler
}

// New construye el handler raíz: JWKS público + health + /metrics.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.AccessLog)

	r.Get("/.well-known/jwks.json", deps.JWKS.Get)
	r.Head("/.well-known/jwks.json", deps.JWKS.Get)

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)

	r.Handle("/metrics", promhttp.Handler())

	return r
}
