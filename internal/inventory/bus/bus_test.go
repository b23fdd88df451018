package bus_test

import (
	"testing"
	"time"

	"github.com/farmdash/farmdash-backend/internal/inventory/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesSubscribers(t *testing.T) {
	b := bus.New()

	ch1, cancel1 := b.Subscribe(bus.TopicConnectivity)
	defer cancel1()
	ch2, cancel2 := b.Subscribe(bus.TopicConnectivity)
	defer cancel2()

	b.Publish(bus.TopicConnectivity, bus.ConnectivityEvent{Online: true})

	for _, ch := range []<-chan bus.Event{ch1, ch2} {
		select {
		case ev := <-ch:
			payload, ok := ev.Payload.(bus.ConnectivityEvent)
			require.True(t, ok)
			assert.True(t, payload.Online)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestTopicsAreIsolated(t *testing.T) {
	b := bus.New()

	ch, cancel := b.Subscribe(bus.TopicAlert)
	defer cancel()

	b.Publish(bus.TopicConnectivity, bus.ConnectivityEvent{Online: false})

	select {
	case <-ch:
		t.Fatal("alert subscriber received connectivity event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelClosesChannel(t *testing.T) {
	b := bus.New()

	ch, cancel := b.Subscribe(bus.TopicConnectivity)
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// publishing after cancel must not panic
	b.Publish(bus.TopicConnectivity, bus.ConnectivityEvent{Online: true})
}

func TestPublishNeverBlocksOnFullBuffer(t *testing.T) {
	b := bus.New()

	_, cancel := b.Subscribe(bus.TopicConnectivity)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(bus.TopicConnectivity, bus.ConnectivityEvent{Online: true})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
