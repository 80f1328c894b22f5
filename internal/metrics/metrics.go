// Package metrics define los collectors Prometheus del sistema de claves.
// Viven en un package propio para evitar ciclos de import entre keys/ppid
// y las capas HTTP.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// KeyRotationsTotal cuenta transiciones del ring por operación y resultado.
	KeyRotationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signing_key_rotations_total",
		Help: "Transiciones del key ring (prepare/activate/retire) por resultado",
	}, []string{"op", "outcome"})

	// JWKSRequestsTotal cuenta requests al endpoint JWKS.
	JWKSRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jwks_requests_total",
		Help: "Requests servidas del documento JWKS",
	})

	// JWKSBuildDuration mide la reconstrucción del documento JWKS (cache miss).
	JWKSBuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "jwks_build_duration_seconds",
		Help:    "Duración de rebuild del JWKS desde el ring persistido",
		Buckets: prometheus.DefBuckets,
	})

	// PPIDDerivationsTotal cuenta derivaciones por modo.
	// mode: "derived" (policy habilitada) | "fallback" (hex del userID).
	PPIDDerivationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ppid_derivations_total",
		Help: "Derivaciones de PPID por modo",
	}, []string{"mode"})
)

// Register registra todos los collectors en el registry dado (o el default
// si es nil). Tolera AlreadyRegistered para permitir re-wiring en tests.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		KeyRotationsTotal,
		JWKSRequestsTotal,
		JWKSBuildDuration,
		PPIDDerivationsTotal,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
