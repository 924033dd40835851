package engine

import (
	"regime-trader/internal/interfaces"
)

func New(cfg Config, deps Deps) interfaces.Engine {
	return newEngine(cfg, deps)
}
