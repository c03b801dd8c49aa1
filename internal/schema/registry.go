package schema

import (
	"github.com/yanun0323/errors"
)

// DefaultSymbolSource is the naming convention used when none is configured.
const DefaultSymbolSource = "SYMBOL_RIC"

// Registry stores the traded universe and the convention its symbols are named in.
type Registry struct {
	source      string
	instruments []Instrument
	index       map[Instrument]int
}

// NewRegistry creates an empty registry for the given symbol source.
func NewRegistry(source string) *Registry {
	if source == "" {
		source = DefaultSymbolSource
	}
	return &Registry{
		source: source,
		index:  make(map[Instrument]int),
	}
}

// Add registers a new instrument.
func (r *Registry) Add(symbol string) (Instrument, error) {
	if symbol == "" {
		return "", errors.New("symbol is empty")
	}
	inst := Instrument(symbol)
	if _, ok := r.index[inst]; ok {
		return inst, errors.Errorf("symbol already exists: %s", symbol)
	}
	r.index[inst] = len(r.instruments)
	r.instruments = append(r.instruments, inst)
	return inst, nil
}

// Source returns the symbol naming convention.
func (r *Registry) Source() string {
	return r.source
}

// Contains reports whether the instrument is part of the traded universe.
func (r *Registry) Contains(inst Instrument) bool {
	_, ok := r.index[inst]
	return ok
}

// Instruments returns the universe in registration order.
func (r *Registry) Instruments() []Instrument {
	out := make([]Instrument, len(r.instruments))
	copy(out, r.instruments)
	return out
}

// Len returns the number of instruments in the registry.
func (r *Registry) Len() int {
	return len(r.instruments)
}
