// Package handlers expone los endpoints HTTP del servidor de claves.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/arku/fxa/internal/jwks"
	"github.com/arku/fxa/internal/metrics"
	"github.com/arku/fxa/internal/observability/logger"
)

// JWKSHandler sirve GET/HEAD /.well-known/jwks.json.
//
// El documento es público y solo cambia por acción de un operador: se sirve
// con Cache-Control public y un max-age corto fijo. La propagación de una
// rotación queda acotada a max-age más un intervalo.
type JWKSHandler struct {
	Cache  *jwks.Cache
	MaxAge int // segundos
}

func NewJWKSHandler(cache *jwks.Cache, maxAge int) *JWKSHandler {
	return &JWKSHandler{Cache: cache, MaxAge: maxAge}
}

// Get maneja GET/HEAD /.well-known/jwks.json
func (h *JWKSHandler) Get(w http.ResponseWriter, r *http.Request) {
	metrics.JWKSRequestsTotal.Inc()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", h.MaxAge))

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	data, err := h.Cache.Get(r.Context())
	if err != nil {
		logger.From(r.Context()).Error("failed to build jwks",
			logger.Component("handlers.jwks"), logger.Err(err))
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
