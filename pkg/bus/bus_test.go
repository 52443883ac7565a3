package bus

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTopic  Topic = "TEST_EVENT"
	testTopicX Topic = "TEST_EVENT_X"
)

type testEvent struct {
	Payload string
}

func (testEvent) Topic() Topic { return testTopic }

type otherEvent struct{}

func (otherEvent) Topic() Topic { return testTopicX }

func noop(Event) error { return nil }

func TestZeroValueQueries(t *testing.T) {
	var b Bus

	assert.Equal(t, 0, b.ListenerCount(testTopic))
	assert.False(t, b.HasListeners(testTopic))
	assert.Empty(t, b.Topics())
	b.Publish(testEvent{})
}

func TestPublishDeliversPayload(t *testing.T) {
	b := New()
	var got []string
	b.Subscribe(testTopic, func(e Event) error {
		got = append(got, e.(testEvent).Payload)
		return nil
	})

	b.Publish(testEvent{Payload: "Hello world!"})

	assert.Equal(t, []string{"Hello world!"}, got)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	b := New()

	first := b.Subscribe(testTopic, noop)
	assert.Equal(t, 1, b.ListenerCount(testTopic))
	assert.ElementsMatch(t, []Topic{testTopic}, b.Topics())

	second := b.Subscribe(testTopic, noop)
	assert.Equal(t, 2, b.ListenerCount(testTopic))

	third := b.Subscribe(testTopicX, noop)
	assert.ElementsMatch(t, []Topic{testTopic, testTopicX}, b.Topics())

	first.Unsubscribe()
	assert.Equal(t, 1, b.ListenerCount(testTopic))

	second.Unsubscribe()
	assert.False(t, b.HasListeners(testTopic))
	assert.ElementsMatch(t, []Topic{testTopicX}, b.Topics())

	b.Unsubscribe(third)
	third.Unsubscribe()
	assert.Empty(t, b.Topics())
	assert.Equal(t, 0, b.ListenerCount(testTopicX))
}

func TestSubscribeOnce(t *testing.T) {
	b := New()
	before := b.ListenerCount(testTopic)

	var calls atomic.Int32
	b.SubscribeOnce(testTopic, func(Event) error {
		calls.Add(1)
		return nil
	})
	assert.Equal(t, before+1, b.ListenerCount(testTopic))

	b.Publish(testEvent{})
	assert.Equal(t, before, b.ListenerCount(testTopic))
	assert.Empty(t, b.Topics())

	b.Publish(testEvent{})
	assert.Equal(t, int32(1), calls.Load())
}

func TestSubscribeOnceReentrantPublish(t *testing.T) {
	b := New()
	var calls atomic.Int32
	b.SubscribeOnce(testTopic, func(e Event) error {
		calls.Add(1)
		b.Publish(e)
		return nil
	})

	b.Publish(testEvent{})

	assert.Equal(t, int32(1), calls.Load())
}

func TestSubscribeOnceConcurrentPublish(t *testing.T) {
	b := New()
	var calls atomic.Int32
	b.SubscribeOnce(testTopic, func(Event) error {
		calls.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Publish(testEvent{})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, b.ListenerCount(testTopic))
}

func TestFailingHandlersAreIsolated(t *testing.T) {
	b := New()
	var delivered atomic.Int32

	b.Subscribe(testTopic, func(Event) error { return errors.New("boom") })
	b.Subscribe(testTopic, func(Event) error { panic("kaboom") })
	b.Subscribe(testTopic, func(Event) error {
		delivered.Add(1)
		return nil
	})

	assert.NotPanics(t, func() { b.Publish(testEvent{}) })
	assert.Equal(t, int32(1), delivered.Load())
}

func TestRemoveAll(t *testing.T) {
	b := New()
	b.Subscribe(testTopic, noop)
	b.Subscribe(testTopic, noop)
	b.Subscribe(testTopic, noop)
	b.Subscribe(testTopicX, noop)
	require.Equal(t, 3, b.ListenerCount(testTopic))

	b.RemoveAll(testTopic)
	assert.ElementsMatch(t, []Topic{testTopicX}, b.Topics())

	b.RemoveAll()
	assert.Empty(t, b.Topics())
}

func TestTypedSubscription(t *testing.T) {
	b := New()
	var got testEvent
	sub := On(b, func(e testEvent) error {
		got = e
		return nil
	})
	assert.Equal(t, testTopic, sub.Topic())

	b.Publish(testEvent{Payload: "typed"})
	b.Publish(otherEvent{})
	assert.Equal(t, "typed", got.Payload)

	var onceCalls int
	Once(b, func(otherEvent) error {
		onceCalls++
		return nil
	})
	b.Publish(otherEvent{})
	b.Publish(otherEvent{})
	assert.Equal(t, 1, onceCalls)
}

func TestConcurrentSubscribePublish(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := b.Subscribe(testTopic, noop)
			b.Publish(testEvent{})
			sub.Unsubscribe()
		}()
		go func() {
			defer wg.Done()
			b.Publish(testEvent{})
			_ = b.Topics()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, b.ListenerCount(testTopic))
}
