// Package events publishes inventory domain events to RabbitMQ. A nil
// publisher is a no-op so the engine runs unchanged when messaging is
// disabled.
package events

import (
	"context"

	"github.com/farmdash/farmdash-backend/internal/inventory/domain"
	"github.com/farmdash/farmdash-backend/pkg/logger"
	"github.com/farmdash/farmdash-backend/pkg/messaging"
)

// InventoryEventPublisher publishes inventory-related events
type InventoryEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}

	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishMovementRecorded publishes a movement recorded event
func (p *InventoryEventPublisher) PublishMovementRecorded(ctx context.Context, m *domain.Movement) {
	if p == nil {
		return
	}

	batchID := ""
	if m.BatchID != nil {
		batchID = *m.BatchID
	}

	data := messaging.MovementRecordedEvent{
		MovementID:   m.ID,
		Sequence:     m.Sequence,
		ItemID:       m.ItemID,
		BatchID:      batchID,
		MovementType: string(m.Type),
		Reason:       m.Reason,
		Quantity:     m.Quantity,
		UnitCost:     m.UnitCost,
		FromLocation: m.FromLocation,
		ToLocation:   m.ToLocation,
		PerformedBy:  m.PerformedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventMovementRecorded, data); err != nil {
		p.logger.Error().Err(err).Str("movement_id", m.ID).Msg("failed to publish movement recorded event")
	}
}

// PublishMovementReversed publishes a movement reversed event
func (p *InventoryEventPublisher) PublishMovementReversed(ctx context.Context, original, reversal *domain.Movement) {
	if p == nil {
		return
	}

	data := messaging.MovementReversedEvent{
		MovementID: original.ID,
		ReversalID: reversal.ID,
		ItemID:     original.ItemID,
		Reason:     reversal.Reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventMovementReversed, data); err != nil {
		p.logger.Error().Err(err).Str("movement_id", original.ID).Msg("failed to publish movement reversed event")
	}
}

// PublishStockAdjusted publishes a stock adjusted event
func (p *InventoryEventPublisher) PublishStockAdjusted(ctx context.Context, m *domain.Movement, newQuantity int) {
	if p == nil {
		return
	}

	data := messaging.StockAdjustedEvent{
		ItemID:      m.ItemID,
		LocationID:  m.ToLocation,
		Delta:       m.Quantity,
		NewQuantity: newQuantity,
		Reason:      m.Reason,
		PerformedBy: m.PerformedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockAdjusted, data); err != nil {
		p.logger.Error().Err(err).Str("item_id", m.ItemID).Msg("failed to publish stock adjusted event")
	}
}

// PublishStockTransferred publishes a stock transferred event
func (p *InventoryEventPublisher) PublishStockTransferred(ctx context.Context, m *domain.Movement) {
	if p == nil {
		return
	}

	data := messaging.StockTransferredEvent{
		MovementID:   m.ID,
		ItemID:       m.ItemID,
		Quantity:     m.Quantity,
		FromLocation: m.FromLocation,
		ToLocation:   m.ToLocation,
		PerformedBy:  m.PerformedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockTransferred, data); err != nil {
		p.logger.Error().Err(err).Str("movement_id", m.ID).Msg("failed to publish stock transferred event")
	}
}

// AlertRaised implements the alert engine's notifier
func (p *InventoryEventPublisher) AlertRaised(ctx context.Context, alert *domain.InventoryAlert) {
	if p == nil {
		return
	}

	data := messaging.AlertRaisedEvent{
		AlertID:      alert.ID,
		AlertType:    string(alert.AlertType),
		Priority:     string(alert.Priority),
		ItemID:       alert.ItemID,
		Message:      alert.Message,
		CurrentValue: alert.CurrentValue,
		Threshold:    alert.Threshold,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertRaised, data); err != nil {
		p.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert raised event")
	}
}

// AlertResolved implements the alert engine's notifier
func (p *InventoryEventPublisher) AlertResolved(ctx context.Context, alert *domain.InventoryAlert) {
	if p == nil {
		return
	}

	data := messaging.AlertResolvedEvent{
		AlertID:    alert.ID,
		AlertType:  string(alert.AlertType),
		ItemID:     alert.ItemID,
		ResolvedBy: alert.ResolvedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertResolved, data); err != nil {
		p.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert resolved event")
	}
}

// PublishOperationDeferred publishes a sync deferred event
func (p *InventoryEventPublisher) PublishOperationDeferred(ctx context.Context, op *domain.PendingOperation) {
	if p == nil {
		return
	}

	if err := p.publisher.Publish(ctx, messaging.EventOperationDeferred, op); err != nil {
		p.logger.Error().Err(err).Str("operation_id", op.ID).Msg("failed to publish operation deferred event")
	}
}

// OperationReplayed implements the offline queue's notifier
func (p *InventoryEventPublisher) OperationReplayed(ctx context.Context, op *domain.PendingOperation) {
	if p == nil {
		return
	}

	data := messaging.OperationReplayedEvent{
		OperationID:   op.ID,
		OperationType: string(op.Type),
	}

	if err := p.publisher.Publish(ctx, messaging.EventOperationReplayed, data); err != nil {
		p.logger.Error().Err(err).Str("operation_id", op.ID).Msg("failed to publish operation replayed event")
	}
}

// OperationDropped implements the offline queue's notifier
func (p *InventoryEventPublisher) OperationDropped(ctx context.Context, op *domain.PendingOperation, reason string) {
	if p == nil {
		return
	}

	data := messaging.OperationDroppedEvent{
		OperationID:   op.ID,
		OperationType: string(op.Type),
		Error:         reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventOperationDropped, data); err != nil {
		p.logger.Error().Err(err).Str("operation_id", op.ID).Msg("failed to publish operation dropped event")
	}
}
