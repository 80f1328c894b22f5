package keys

import "context"

// RingStore persiste el RingState como un único documento.
//
// Contrato de atomicidad: Save instala el documento completo o deja el
// estado previo intacto (write tmp → rename, o una transacción en SQL).
// Un lector concurrente nunca observa una transición a medias.
//
// Lo que el store NO garantiza: serializar transiciones concurrentes. Eso
// es responsabilidad operacional externa (file lock, leader election);
// las rotaciones son raras y de single-writer por contrato.
type RingStore interface {
	// Load lee el ring persistido. Un store vacío devuelve un
	// RingState vacío, no un error (el bootstrap pasa por prepare/activate).
	Load(ctx context.Context) (*RingState, error)

	// Save reemplaza el ring persistido de forma atómica.
	Save(ctx context.Context, s *RingState) error
}
