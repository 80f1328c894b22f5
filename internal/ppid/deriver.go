package ppid

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/arku/fxa/internal/metrics"
)

// infoString es el info fijo del expand HKDF. Compatibilidad wire: cambiarlo
// rompe todos los identificadores ya emitidos.
const infoString = "oidc ppid sub"

// ikmSep separa los componentes del input keying material. También es
// compatibility-sensitive: está documentado como parte del formato.
const ikmSep = "\n"

var (
	ErrMissingSalt = errors.New("ppid: enabled but derivation salt is empty")
	ErrBadIDLength = errors.New("ppid: id length must be positive")
)

// Deriver computa el PPID de un (userID, relyingParty).
//
// Es una función pura de sus inputs más el time bucket actual y la tabla de
// políticas/salt estáticas; no consulta ningún otro estado. Determinístico
// dentro de un bucket, divergente entre buckets para políticas rotantes.
// Safe para invocación concurrente sin límite.
type Deriver struct {
	enabled  bool
	salt     []byte
	idLen    int
	policies *PolicyTable
	now      func() time.Time
}

// NewDeriver valida la configuración y construye el deriver.
// PPID habilitado sin salt es fatal acá, al startup; Derive nunca falla
// por request (no puede bloquear la emisión de tokens).
func NewDeriver(enabled bool, salt []byte, idLen int, policies *PolicyTable) (*Deriver, error) {
	if enabled && len(salt) == 0 {
		return nil, ErrMissingSalt
	}
	if idLen <= 0 || idLen > 255*sha256.Size {
		return nil, ErrBadIDLength
	}
	return &Deriver{
		enabled:  enabled,
		salt:     salt,
		idLen:    idLen,
		policies: policies,
		now:      time.Now,
	}, nil
}

// Derive computa el identificador para el par (userID, relyingParty) con un
// seed opcional del cliente (0 si no se pasa).
//
// Fallback: PPID global deshabilitado, relying party sin política o política
// deshabilitada → hex(userID) sin transformar. Tiene que calzar exactamente
// con lo emitido históricamente para esos clientes.
//
// La derivación es one-way: sin la salt no hay camino de vuelta a userID, y
// solo el issuer puede vincular identificadores rotantes sucesivos del mismo
// usuario.
func (d *Deriver) Derive(userID, relyingParty []byte, clientSeed int64) string {
	p, ok := d.lookup(relyingParty)
	if !ok {
		metrics.PPIDDerivationsTotal.WithLabelValues("fallback").Inc()
		return hex.EncodeToString(userID)
	}

	var bucket int64
	if p.Rotating {
		bucket = d.now().UnixMilli() / p.RotationPeriod.Milliseconds()
	}

	// IKM: hex(rp) \n hex(user) \n seed \n bucket — formato fijo, wire-compatible
	ikm := hex.EncodeToString(relyingParty) + ikmSep +
		hex.EncodeToString(userID) + ikmSep +
		strconv.FormatInt(clientSeed, 10) + ikmSep +
		strconv.FormatInt(bucket, 10)

	out := make([]byte, d.idLen)
	r := hkdf.New(sha256.New, []byte(ikm), d.salt, []byte(infoString))
	if _, err := io.ReadFull(r, out); err != nil {
		// inalcanzable: idLen <= 255*32 se validó al construir
		panic(fmt.Sprintf("ppid: hkdf expand: %v", err))
	}

	metrics.PPIDDerivationsTotal.WithLabelValues("derived").Inc()
	return hex.EncodeToString(out)
}

// IDByteLen expone el largo configurado del identificador, en bytes.
func (d *Deriver) IDByteLen() int { return d.idLen }

func (d *Deriver) lookup(relyingParty []byte) (Policy, bool) {
	if !d.enabled {
		return Policy{}, false
	}
	p, ok := d.policies.Lookup(string(relyingParty))
	if !ok || !p.Enabled {
		return Policy{}, false
	}
	if p.Rotating && p.RotationPeriod <= 0 {
		// una política rotante sin período no puede derivar un bucket válido
		return Policy{}, false
	}
	return p, true
}
