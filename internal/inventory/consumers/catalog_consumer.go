// Package consumers wires RabbitMQ event handlers into the engine.
package consumers

import (
	"context"

	"github.com/farmdash/farmdash-backend/pkg/logger"
	"github.com/farmdash/farmdash-backend/pkg/messaging"
)

// CatalogRefresher applies catalog changes from the backend to local state
type CatalogRefresher interface {
	RefreshItem(ctx context.Context, itemID string) error
	RemoveItem(ctx context.Context, itemID string)
}

// CatalogConsumer keeps the local item catalog in step with backend
// catalog events.
type CatalogConsumer struct {
	consumer  *messaging.Consumer
	refresher CatalogRefresher
	logger    *logger.Logger
}

// NewCatalogConsumer creates and subscribes the catalog consumer
func NewCatalogConsumer(rmq *messaging.RabbitMQ, refresher CatalogRefresher, log *logger.Logger) (*CatalogConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "inventory-service.catalog-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeCatalogEvents, "catalog.item.*"); err != nil {
		return nil, err
	}

	c := &CatalogConsumer{
		consumer:  consumer,
		refresher: refresher,
		logger:    log.WithComponent("catalog-consumer"),
	}

	consumer.RegisterHandler(messaging.EventItemCreated, c.handleItemChanged)
	consumer.RegisterHandler(messaging.EventItemUpdated, c.handleItemChanged)
	consumer.RegisterHandler(messaging.EventItemDeleted, c.handleItemDeleted)

	return c, nil
}

// Start begins consuming catalog events
func (c *CatalogConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *CatalogConsumer) handleItemChanged(ctx context.Context, event *messaging.Event) error {
	var data messaging.ItemChangedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("item_id", data.ItemID).
		Str("event_type", event.Type).
		Msg("refreshing item from catalog event")

	return c.refresher.RefreshItem(ctx, data.ItemID)
}

func (c *CatalogConsumer) handleItemDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.ItemChangedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().Str("item_id", data.ItemID).Msg("removing item from catalog")
	c.refresher.RemoveItem(ctx, data.ItemID)
	return nil
}
