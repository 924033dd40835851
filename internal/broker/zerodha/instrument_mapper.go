package zerodha

import (
	"sort"
	"sync"
)

// instrumentMapper manages bidirectional mapping between symbols and tokens
type instrumentMapper struct {
	symbolToToken map[string]uint32
	tokenToSymbol map[uint32]string
	mu            sync.RWMutex
}

func newInstrumentMapper(tokens map[string]uint32) *instrumentMapper {
	im := &instrumentMapper{
		symbolToToken: make(map[string]uint32, len(tokens)),
		tokenToSymbol: make(map[uint32]string, len(tokens)),
	}
	for s, t := range tokens {
		im.addMapping(s, t)
	}
	return im
}

func (im *instrumentMapper) addMapping(symbol string, token uint32) {
	im.mu.Lock()
	defer im.mu.Unlock()

	im.symbolToToken[symbol] = token
	im.tokenToSymbol[token] = symbol
}

func (im *instrumentMapper) getToken(symbol string) (uint32, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()

	token, exists := im.symbolToToken[symbol]
	return token, exists
}

// getSymbol returns "" for an unmapped token.
func (im *instrumentMapper) getSymbol(token uint32) string {
	im.mu.RLock()
	defer im.mu.RUnlock()

	return im.tokenToSymbol[token]
}

// tokensFor resolves symbols in order and reports the ones it could not.
func (im *instrumentMapper) tokensFor(symbols []string) (tokens []uint32, missing []string) {
	im.mu.RLock()
	defer im.mu.RUnlock()

	for _, s := range symbols {
		if t, ok := im.symbolToToken[s]; ok {
			tokens = append(tokens, t)
		} else {
			missing = append(missing, s)
		}
	}
	return tokens, missing
}

func (im *instrumentMapper) symbols() []string {
	im.mu.RLock()
	defer im.mu.RUnlock()

	out := make([]string, 0, len(im.symbolToToken))
	for s := range im.symbolToToken {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
