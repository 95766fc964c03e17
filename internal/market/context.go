package market

import (
	"polyshadow/internal/pkg/maputil"
)

// Well-known keys of the per-tick market context. The core never validates the
// shape beyond these helpers; agents may read anything else they need.
const (
	KeyPrice         = "price"
	KeyUpPrice       = "up_price"
	KeyDownPrice     = "down_price"
	KeyRegime        = "regime"
	KeyElapsed       = "elapsed_seconds"
	KeyOrderbook     = "orderbook"
	KeyAgentVotes    = "agent_votes"
	KeyVetoes        = "vetoes"
	KeyBalance       = "balance"
	KeyOpenPositions = "open_positions"
	KeyStrategy      = "strategy"
)

// Context is the opaque map supplied with every tick.
type Context map[string]any

// Clone returns a shallow copy.
func (c Context) Clone() Context {
	return Context(maputil.Clone(c))
}

// Merge returns a copy of c overlaid with extra.
func (c Context) Merge(extra map[string]any) Context {
	out := c.Clone()
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func (c Context) Regime() string {
	return maputil.String(c, KeyRegime)
}

// Price is the underlying spot price used for outcome derivation.
func (c Context) Price() (float64, bool) {
	p, ok := maputil.Float(c, KeyPrice)
	if !ok || p <= 0 {
		return 0, false
	}
	return p, true
}

// OutcomePrice is the quoted probability for the Up (up=true) or Down side.
func (c Context) OutcomePrice(up bool) (float64, bool) {
	key := KeyDownPrice
	if up {
		key = KeyUpPrice
	}
	return maputil.Float(c, key)
}

func (c Context) ElapsedSeconds() int64 {
	v, ok := maputil.Float(c, KeyElapsed)
	if !ok || v < 0 {
		return 0
	}
	return int64(v)
}

// Section returns a nested object such as agent_votes or vetoes.
func (c Context) Section(key string) (map[string]any, bool) {
	return maputil.Map(c, key)
}
