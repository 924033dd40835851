package ticks

import (
	"context"
	"testing"
	"time"

	"regime-trader/internal/pricecache"
)

func TestDecode(t *testing.T) {
	q, err := decode([]byte(`{"symbol":"NIFTY","t":1741581000000,"c":22010.5,"v":1200}`))
	if err != nil {
		t.Fatal(err)
	}
	if q.Instrument != "NIFTY" || q.LastPrice != 22010.5 || q.Volume != 1200 {
		t.Errorf("Unexpected quote %+v", q)
	}
	if !q.Ts.Equal(time.UnixMilli(1741581000000)) {
		t.Errorf("Expected millisecond timestamp, got %v", q.Ts)
	}

	for _, bad := range []string{`{`, `{"symbol":"","t":1,"c":1}`, `{"symbol":"X","t":1,"c":0}`, `{"symbol":"X","c":1}`} {
		if _, err := decode([]byte(bad)); err == nil {
			t.Errorf("Expected error for %s", bad)
		}
	}
}

func TestHandleFiltersAndWrites(t *testing.T) {
	cache := pricecache.New(0)
	c, err := NewConsumer(Config{Brokers: []string{"localhost:9092"}}, cache, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := c.Subscribe(ctx, []string{"NIFTY"}); err != nil {
		t.Fatal(err)
	}

	c.handle(ctx, []byte(`{"symbol":"NIFTY","t":1741581000000,"c":22010.5}`))
	c.handle(ctx, []byte(`{"symbol":"BANKNIFTY","t":1741581000000,"c":48000}`))
	c.handle(ctx, []byte(`not json`))

	if q, ok := cache.Quote("NIFTY"); !ok || q.LastPrice != 22010.5 {
		t.Errorf("Expected NIFTY in cache, got %+v", q)
	}
	if _, ok := cache.Quote("BANKNIFTY"); ok {
		t.Errorf("Expected unsubscribed symbol to be dropped")
	}
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	if _, err := NewConsumer(Config{}, pricecache.New(0), nil); err == nil {
		t.Errorf("Expected error without brokers")
	}
}

func TestStopWithoutStart(t *testing.T) {
	c, _ := NewConsumer(Config{Brokers: []string{"localhost:9092"}}, pricecache.New(0), nil)
	c.Stop(context.Background())
}
