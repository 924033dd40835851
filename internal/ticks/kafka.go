// Package ticks consumes last-price ticks from a Kafka topic into the
// price cache, as an alternative to the Kite websocket.
package ticks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"regime-trader/internal/interfaces"
	"regime-trader/internal/logger"
	"regime-trader/internal/metrics"
	"regime-trader/internal/pricecache"
	"regime-trader/internal/types"
)

const source = "kafka"

type Config struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic" default:"ticks"`
	GroupID  string   `yaml:"group_id" default:"regime-trader"`
	MinBytes int      `yaml:"min_bytes" default:"1"`
	MaxBytes int      `yaml:"max_bytes" default:"1048576"`
}

// message is the tick payload. T is unix milliseconds.
type message struct {
	Symbol string  `json:"symbol"`
	T      int64   `json:"t"`
	C      float64 `json:"c"`
	V      float64 `json:"v"`
}

func decode(data []byte) (types.Quote, error) {
	var m message
	if err := json.Unmarshal(data, &m); err != nil {
		return types.Quote{}, fmt.Errorf("decode tick: %w", err)
	}
	if m.Symbol == "" || m.C <= 0 || m.T <= 0 {
		return types.Quote{}, fmt.Errorf("invalid tick %q", string(data))
	}
	return types.Quote{
		Instrument: m.Symbol,
		LastPrice:  m.C,
		Volume:     m.V,
		Ts:         time.UnixMilli(m.T),
	}, nil
}

// Consumer reads one topic and writes every accepted tick to the cache.
type Consumer struct {
	cfg   Config
	cache *pricecache.Cache
	rec   *metrics.Recorder

	mu     sync.RWMutex
	filter map[string]bool
	reader *kafka.Reader
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ interfaces.TickSource = (*Consumer)(nil)

func NewConsumer(cfg Config, cache *pricecache.Cache, rec *metrics.Recorder) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("ticks: brokers are required")
	}
	return &Consumer{cfg: cfg, cache: cache, rec: rec}, nil
}

// Subscribe limits the accepted symbols. Without a call every symbol on
// the topic is accepted.
func (c *Consumer) Subscribe(_ context.Context, instruments []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filter == nil {
		c.filter = make(map[string]bool, len(instruments))
	}
	for _, in := range instruments {
		c.filter[in] = true
	}
	return nil
}

func (c *Consumer) accepts(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter == nil || c.filter[symbol]
}

func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.reader != nil {
		c.mu.Unlock()
		return nil
	}
	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		Topic:    c.cfg.Topic,
		GroupID:  c.cfg.GroupID,
		MinBytes: c.cfg.MinBytes,
		MaxBytes: c.cfg.MaxBytes,
	})
	reader := c.reader
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.wg.Add(1)
	go c.consume(ctx, reader)
	logger.Info(ctx, "Kafka tick consumer started", "topic", c.cfg.Topic, "group_id", c.cfg.GroupID)
	return nil
}

func (c *Consumer) consume(ctx context.Context, reader *kafka.Reader) {
	defer c.wg.Done()
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.ErrorWithErr(ctx, "Error reading tick", err, "topic", c.cfg.Topic)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		c.handle(ctx, msg.Value)
	}
}

func (c *Consumer) handle(ctx context.Context, data []byte) {
	q, err := decode(data)
	if err != nil {
		logger.Warn(ctx, "Dropping malformed tick", "error", err)
		return
	}
	if !c.accepts(q.Instrument) {
		return
	}
	c.cache.Update(q)
	c.rec.RecordTick(source, q.Instrument, q.LastPrice)
}

// Stop cancels the read loop, waits for it, then closes the reader.
func (c *Consumer) Stop(ctx context.Context) {
	c.mu.Lock()
	reader, cancel := c.reader, c.cancel
	c.reader, c.cancel = nil, nil
	c.mu.Unlock()
	if reader == nil {
		return
	}
	cancel()
	c.wg.Wait()
	if err := reader.Close(); err != nil {
		logger.ErrorWithErr(ctx, "Error closing tick reader", err, "topic", c.cfg.Topic)
	}
}
