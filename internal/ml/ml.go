// Package ml holds the optional external regime scorer. Its verdict can
// only confirm or overrule the rule classifier inside the limits the
// classifier sets; a failed call is reported and ignored upstream.
package ml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"

	"regime-trader/internal/api"
	"regime-trader/internal/interfaces"
	"regime-trader/internal/retry"
	"regime-trader/internal/types"
)

// ErrUnavailable wraps every failure of the scorer.
var ErrUnavailable = errors.New("classifier unavailable")

type Config struct {
	Enabled   bool          `yaml:"enabled"`
	Endpoint  string        `yaml:"endpoint" validate:"omitempty,url"`
	APIKeyEnv string        `yaml:"api_key_env" default:"ML_API_KEY"`
	Timeout   time.Duration `yaml:"timeout" default:"3s"`
	Attempts  int           `yaml:"attempts" default:"2" validate:"gte=1"`
	Backoff   time.Duration `yaml:"backoff" default:"200ms"`
}

func DefaultConfig() Config {
	var c Config
	_ = defaults.Set(&c)
	return c
}

type prediction struct {
	Regime      string  `json:"regime"`
	Probability float64 `json:"probability"`
}

// HTTPScorer posts the feature vector as JSON and expects
// {"regime": "...", "probability": 0..1} back.
type HTTPScorer struct {
	endpoint string
	client   *api.Client
}

var _ interfaces.MLClassifier = (*HTTPScorer)(nil)

func NewHTTPScorer(cfg Config) *HTTPScorer {
	opts := []api.ClientOption{
		api.WithTimeout(cfg.Timeout),
		api.WithRetry(&retry.Policy{MaxAttempts: cfg.Attempts, Backoff: cfg.Backoff}),
	}
	if key := os.Getenv(cfg.APIKeyEnv); key != "" {
		opts = append(opts, api.WithHeader("Authorization", "Bearer "+key))
	}
	return &HTTPScorer{endpoint: cfg.Endpoint, client: api.NewClient(opts...)}
}

func (s *HTTPScorer) Predict(ctx context.Context, fv types.FeatureVector) (types.Regime, float64, error) {
	resp, err := s.client.POST(ctx, s.endpoint, fv)
	if err != nil {
		return types.RegimeUnknown, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var p prediction
	if err := resp.ParseJSON(&p); err != nil {
		return types.RegimeUnknown, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	label := types.ParseRegime(strings.ToUpper(strings.TrimSpace(p.Regime)))
	if label == types.RegimeUnknown {
		return types.RegimeUnknown, 0, fmt.Errorf("%w: unrecognised regime %q", ErrUnavailable, p.Regime)
	}
	if p.Probability < 0 || p.Probability > 1 {
		return types.RegimeUnknown, 0, fmt.Errorf("%w: probability %v out of range", ErrUnavailable, p.Probability)
	}
	return label, p.Probability, nil
}

// New returns the configured scorer, or nil when the scorer is disabled so
// that the classifier skips the call entirely.
func New(cfg Config) interfaces.MLClassifier {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil
	}
	return NewHTTPScorer(cfg)
}
