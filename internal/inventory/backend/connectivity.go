package backend

import (
	"context"
	"time"

	"github.com/farmdash/farmdash-backend/internal/inventory/bus"
	"github.com/farmdash/farmdash-backend/pkg/logger"
)

// Monitor probes the backend on an interval and publishes connectivity
// transitions on the event bus. Only transitions are published; steady
// state stays quiet.
type Monitor struct {
	client   *Client
	bus      *bus.Bus
	interval time.Duration
	cancel   context.CancelFunc
	logger   *logger.Logger
}

// NewMonitor creates a connectivity monitor
func NewMonitor(client *Client, b *bus.Bus, interval time.Duration, log *logger.Logger) *Monitor {
	return &Monitor{
		client:   client,
		bus:      b,
		interval: interval,
		logger:   log.WithComponent("connectivity-monitor"),
	}
}

// Start begins probing in a background goroutine
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	go func() {
		m.logger.Info().Dur("interval", m.interval).Msg("connectivity monitor started")

		last := m.client.Probe(ctx)
		m.publish(last)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				m.logger.Info().Msg("connectivity monitor stopped")
				return
			case <-ticker.C:
				online := m.client.Probe(ctx)
				if online != last {
					m.logger.Info().Bool("online", online).Msg("connectivity changed")
					m.publish(online)
					last = online
				}
			}
		}
	}()
}

// Stop stops the monitor goroutine
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Monitor) publish(online bool) {
	if m.bus != nil {
		m.bus.Publish(bus.TopicConnectivity, bus.ConnectivityEvent{Online: online})
	}
}
