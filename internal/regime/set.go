package regime

import (
	"context"

	"regime-trader/internal/interfaces"
	"regime-trader/internal/types"
)

// Set routes each instrument to its own Classifier, created on first use.
type Set struct {
	cfg          Config
	ml           interfaces.MLClassifier
	byInstrument map[string]*Classifier
}

var _ interfaces.RegimeClassifier = (*Set)(nil)

func NewSet(cfg Config, ml interfaces.MLClassifier) *Set {
	return &Set{cfg: cfg, ml: ml, byInstrument: make(map[string]*Classifier)}
}

func (s *Set) For(instrument string) *Classifier {
	c, ok := s.byInstrument[instrument]
	if !ok {
		c = NewClassifier(s.cfg, s.ml)
		s.byInstrument[instrument] = c
	}
	return c
}

func (s *Set) Classify(ctx context.Context, in types.RegimeInputs) types.RegimePacket {
	return s.For(in.Instrument).Classify(ctx, in)
}

// Reset clears the state of every instrument.
func (s *Set) Reset() {
	for _, c := range s.byInstrument {
		c.Reset()
	}
}
