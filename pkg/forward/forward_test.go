package forward

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/relay/pkg/bus"
	relayerrors "github.com/tokmz/relay/pkg/errors"
	"github.com/tokmz/relay/pkg/ws"
)

type fakePublisher struct {
	mu      sync.Mutex
	records []Record
	err     error
	block   chan struct{}
	closed  bool
}

func (p *fakePublisher) Publish(ctx context.Context, rec Record) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.records = append(p.records, rec)
	return nil
}

func (p *fakePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePublisher) snapshot() ([]Record, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Record(nil), p.records...), p.closed
}

func TestForwarderDelivers(t *testing.T) {
	pub := &fakePublisher{}
	f := New(pub, 16, 2)
	b := bus.New()
	f.Attach(b)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, id := range []string{"c1", "c2", "c3"} {
		b.Publish(ws.MessageReceived{ConnectionID: id, Message: `["EVENT",{}]`, Timestamp: ts})
	}

	require.Eventually(t, func() bool { return f.Stats().Forwarded == 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, f.Close(context.Background()))

	records, closed := pub.snapshot()
	assert.True(t, closed)
	require.Len(t, records, 3)

	keys := map[string]bool{}
	for _, rec := range records {
		keys[rec.Key] = true
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Payload, &body))
		assert.Equal(t, rec.Key, body["connectionId"])
		assert.Equal(t, `["EVENT",{}]`, body["message"])
		assert.Equal(t, "2024-01-02T03:04:05Z", body["timestamp"])
	}
	assert.Equal(t, map[string]bool{"c1": true, "c2": true, "c3": true}, keys)
	assert.Equal(t, 0, b.ListenerCount(ws.TopicMessageReceived))
}

func TestForwarderDropsWhenFull(t *testing.T) {
	pub := &fakePublisher{block: make(chan struct{})}
	f := New(pub, 1, 1)

	accepted := 0
	for i := 0; i < 5; i++ {
		if f.Enqueue(ws.MessageReceived{ConnectionID: "c1", Message: `["EVENT"]`}) {
			accepted++
		}
	}

	// worker 最多持有一条，队列最多一条
	assert.LessOrEqual(t, accepted, 2)
	assert.Equal(t, int64(5-accepted), f.Stats().Dropped)

	close(pub.block)
	require.NoError(t, f.Close(context.Background()))
	assert.Equal(t, int64(accepted), f.Stats().Forwarded)
}

func TestForwarderCountsFailures(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	f := New(pub, 4, 1)

	assert.True(t, f.Enqueue(ws.MessageReceived{ConnectionID: "c1", Message: `["EVENT"]`}))
	require.NoError(t, f.Close(context.Background()))

	assert.Equal(t, Stats{Failed: 1}, f.Stats())
}

func TestForwarderClosed(t *testing.T) {
	pub := &fakePublisher{}
	f := New(pub, 4, 1)
	require.NoError(t, f.Close(context.Background()))
	require.NoError(t, f.Close(context.Background()))

	assert.False(t, f.Enqueue(ws.MessageReceived{ConnectionID: "c1"}))
	assert.Equal(t, int64(1), f.Stats().Dropped)
}

func TestOpen(t *testing.T) {
	pub, err := Open(context.Background(), Config{})
	require.NoError(t, err)
	assert.Nil(t, pub)

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "unknown backend", cfg: Config{Backend: "carrier-pigeon"}},
		{name: "redis without channel", cfg: Config{Backend: BackendRedis}},
		{name: "redis cluster without addrs", cfg: Config{Backend: BackendRedis, Redis: RedisConfig{Mode: RedisCluster, Channel: "relay"}}},
		{name: "kafka without brokers", cfg: Config{Backend: BackendKafka, Kafka: KafkaConfig{Topic: "relay"}}},
		{name: "amqp without url", cfg: Config{Backend: BackendAMQP}},
		{name: "nats without subject", cfg: Config{Backend: BackendNATS, NATS: NATSConfig{URL: "nats://localhost:4222"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub, err := Open(context.Background(), tt.cfg)
			assert.ErrorIs(t, err, relayerrors.ErrInvalidConfig)
			assert.Nil(t, pub)
		})
	}
}
