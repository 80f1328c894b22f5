package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/arku/fxa/internal/keys"
)

// HealthHandler responde /healthz y /readyz.
// readyz verifica que el ring cargue y tenga clave activa: un servicio sin
// clave activa no debe recibir tráfico.
type HealthHandler struct {
	Store keys.RingStore
}

func NewHealthHandler(store keys.RingStore) *HealthHandler {
	return &HealthHandler{Store: store}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	ring, err := h.Store.Load(ctx)
	if err != nil || ring.Validate() != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no_active_key"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
