// Package ppid deriva el identificador pseudónimo per-relying-party (PPID)
// que va en el claim sub de los tokens emitidos: el mismo usuario no
// presenta un identificador correlacionable a todos los relying parties.
package ppid

import "time"

// Policy es la política PPID de un relying party.
// Rotating agrega un time bucket a la derivación, así el identificador
// cambia cada RotationPeriod; no-rotating deriva un identificador estable.
type Policy struct {
	RelyingParty   string
	Enabled        bool
	Rotating       bool
	RotationPeriod time.Duration // requerido > 0 solo si Rotating
}

// PolicyTable es la tabla inmutable de políticas, indexada por relying
// party. Se construye una vez al startup desde config; lookups de solo
// lectura, seguros para concurrencia ilimitada.
type PolicyTable struct {
	byRP map[string]Policy
}

// NewPolicyTable construye la tabla. Entradas duplicadas: gana la última.
func NewPolicyTable(policies []Policy) *PolicyTable {
	t := &PolicyTable{byRP: make(map[string]Policy, len(policies))}
	for _, p := range policies {
		t.byRP[p.RelyingParty] = p
	}
	return t
}

// Lookup busca la política por relying party exacto.
func (t *PolicyTable) Lookup(relyingParty string) (Policy, bool) {
	if t == nil {
		return Policy{}, false
	}
	p, ok := t.byRP[relyingParty]
	return p, ok
}

// Len devuelve la cantidad de relying parties con PPID habilitado.
func (t *PolicyTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byRP)
}
