package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"regime-trader/internal/engine"
	"regime-trader/internal/events"
	"regime-trader/internal/ml"
	"regime-trader/internal/paper"
	"regime-trader/internal/regime"
	"regime-trader/internal/risk"
	"regime-trader/internal/scheduler"
	"regime-trader/internal/statestore"
	"regime-trader/internal/ticks"
)

const (
	ModeDryRun = "DRY_RUN"
	ModeLive   = "LIVE"

	DataStatic     = "STATIC"
	DataKite       = "KITE"
	DataClickHouse = "CLICKHOUSE"

	TicksKite  = "kite"
	TicksKafka = "kafka"
	TicksNone  = "none"
)

type KiteConfig struct {
	Tokens    map[string]uint32 `yaml:"tokens"`
	QuoteKeys map[string]string `yaml:"quote_keys"`
	EnvFile   string            `yaml:"env_file" default:".env"`
}

type TicksConfig struct {
	Source string        `yaml:"source" default:"kite" validate:"oneof=kite kafka none"`
	MaxAge time.Duration `yaml:"max_age" default:"2m" validate:"gte=0"`
	Kafka  ticks.Config  `yaml:"kafka"`
}

type ClickHouseConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table" default:"bars"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" default:"3" validate:"gte=1"`
	Backoff     time.Duration `yaml:"backoff" default:"1s" validate:"gt=0"`
}

type LogConfig struct {
	Dir           string `yaml:"dir" default:"logs"`
	RetentionDays int    `yaml:"retention_days" default:"30" validate:"gte=0"`
}

type JournalConfig struct {
	Enabled     bool   `yaml:"enabled"`
	PostgresURL string `yaml:"postgres_url"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" default:":9090"`
}

type Config struct {
	Mode        string   `yaml:"mode" default:"DRY_RUN" validate:"oneof=DRY_RUN LIVE"`
	DataSource  string   `yaml:"data_source" default:"STATIC" validate:"oneof=STATIC KITE CLICKHOUSE"`
	Exchange    string   `yaml:"exchange" default:"NSE"`
	Instruments []string `yaml:"instruments" validate:"min=1,dive,required"`
	// StaticBase sets synthetic price levels for the STATIC source.
	StaticBase map[string]float64 `yaml:"static_base"`

	Kite       KiteConfig        `yaml:"kite"`
	Ticks      TicksConfig       `yaml:"ticks"`
	ClickHouse ClickHouseConfig  `yaml:"clickhouse"`
	Retry      RetryConfig       `yaml:"retry"`
	Engine     engine.Config     `yaml:"engine"`
	Regime     regime.Config     `yaml:"regime"`
	Risk       risk.Config       `yaml:"risk"`
	Paper      paper.Config      `yaml:"paper"`
	State      statestore.Config `yaml:"state"`
	Scheduler  scheduler.Config  `yaml:"scheduler"`
	Events     events.Config     `yaml:"events"`
	ML         ml.Config         `yaml:"ml"`
	Log        LogConfig         `yaml:"log"`
	Journal    JournalConfig     `yaml:"journal"`
	Metrics    MetricsConfig     `yaml:"metrics"`
}

var validate = validator.New()

// Validate checks the rules that span fields. Tag rules are checked by
// LoadConfig before this runs.
func (c *Config) Validate() error {
	if c.Mode == ModeLive && c.DataSource != DataKite {
		return fmt.Errorf("mode LIVE requires data_source KITE, got '%s'", c.DataSource)
	}
	if c.DataSource == DataClickHouse && c.ClickHouse.DSN == "" {
		return errors.New("data_source CLICKHOUSE requires clickhouse.dsn or CLICKHOUSE_DSN")
	}
	if c.Ticks.Source == TicksKafka && len(c.Ticks.Kafka.Brokers) == 0 {
		return errors.New("ticks.source kafka requires ticks.kafka.brokers")
	}
	if c.Ticks.Source == TicksKite && c.DataSource != DataKite {
		return fmt.Errorf("ticks.source kite requires data_source KITE, got '%s'", c.DataSource)
	}
	if c.State.Backend == statestore.BackendPostgres && c.State.PostgresURL == "" {
		return errors.New("state.backend postgres requires state.postgres_url or PG_URL")
	}
	if c.Journal.Enabled && c.Journal.PostgresURL == "" {
		return errors.New("journal.enabled requires journal.postgres_url or PG_URL")
	}
	if c.ML.Enabled && c.ML.Endpoint == "" {
		return errors.New("ml.enabled requires ml.endpoint")
	}
	if c.DataSource == DataKite {
		for _, in := range c.Instruments {
			if _, ok := c.Kite.Tokens[in]; !ok {
				return fmt.Errorf("kite.tokens has no entry for instrument '%s'", in)
			}
		}
	}

	th := c.Regime.Thresholds
	if th.MomentumNeutralLow >= th.MomentumNeutralHi {
		return fmt.Errorf("regime.thresholds.momentum_neutral_low (%.1f) must be below momentum_neutral_high (%.1f)", th.MomentumNeutralLow, th.MomentumNeutralHi)
	}
	if th.MomentumOversold >= th.MomentumOverbought {
		return fmt.Errorf("regime.thresholds.momentum_oversold (%.1f) must be below momentum_overbought (%.1f)", th.MomentumOversold, th.MomentumOverbought)
	}
	if th.TrendWeak >= th.TrendMin {
		return fmt.Errorf("regime.thresholds.trend_weak (%.1f) must be below trend_min (%.1f)", th.TrendWeak, th.TrendMin)
	}
	if th.CorrSpike > th.CorrExtreme {
		return fmt.Errorf("regime.thresholds.corr_spike (%.2f) must not exceed corr_extreme (%.2f)", th.CorrSpike, th.CorrExtreme)
	}
	if th.MLOverride > th.MLChaosOverride {
		return fmt.Errorf("regime.thresholds.ml_override (%.2f) must not exceed ml_chaos_override (%.2f)", th.MLOverride, th.MLChaosOverride)
	}
	return nil
}

// applyEnv fills connection settings left empty in the file from the
// environment.
func (c *Config) applyEnv() {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	fill(&c.ClickHouse.DSN, "CLICKHOUSE_DSN")
	fill(&c.State.PostgresURL, "PG_URL")
	fill(&c.Journal.PostgresURL, "PG_URL")
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.State.RedisAddr = v
	}
	fill(&c.State.RedisPassword, "REDIS_PASSWORD")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" && len(c.Ticks.Kafka.Brokers) == 0 {
		c.Ticks.Kafka.Brokers = strings.Split(v, ",")
	}
	fill(&c.ML.Endpoint, "ML_ENDPOINT")
}

// Parse defaults, decodes and validates a config document. The document is
// decoded over the defaults so an explicit zero in the file is kept.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyEnv()

	if len(c.Scheduler.Instruments) == 0 {
		c.Scheduler.Instruments = c.Instruments
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}
