// Package testutil provides shared fixtures for inventory engine tests.
package testutil

import (
	"fmt"
	"time"

	"github.com/farmdash/farmdash-backend/internal/inventory/domain"
	"github.com/google/uuid"
)

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

func (f *FixtureFactory) next() int {
	f.sequence++
	return f.sequence
}

// Item creates a catalog item with defaults, applying any overrides
func (f *FixtureFactory) Item(overrides ...func(*domain.Item)) *domain.Item {
	n := f.next()
	item := &domain.Item{
		ID:           uuid.New().String(),
		Name:         fmt.Sprintf("Test Item %d", n),
		Barcode:      fmt.Sprintf("890100000%04d", n),
		Category:     "feed",
		Unit:         "kg",
		MinimumStock: 20,
		MaximumStock: 200,
		ReorderPoint: 30,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	for _, o := range overrides {
		o(item)
	}
	return item
}

// ReceiptDraft creates an inbound receipt draft for the item
func (f *FixtureFactory) ReceiptDraft(itemID string, qty int, unitCost float64) *domain.MovementDraft {
	n := f.next()
	return &domain.MovementDraft{
		ItemID:      itemID,
		Type:        domain.MovementReceipt,
		Quantity:    qty,
		UnitCost:    unitCost,
		BatchNumber: fmt.Sprintf("LOT-%04d", n),
		PerformedBy: "tester",
	}
}

// UsageDraft creates an outbound usage draft for the item
func (f *FixtureFactory) UsageDraft(itemID string, qty int) *domain.MovementDraft {
	return &domain.MovementDraft{
		ItemID:      itemID,
		Type:        domain.MovementUsage,
		Quantity:    qty,
		Reason:      "feeding",
		PerformedBy: "tester",
	}
}

// ExpiringReceipt creates a receipt draft whose lot expires in the given
// number of days
func (f *FixtureFactory) ExpiringReceipt(itemID string, qty int, days int) *domain.MovementDraft {
	exp := time.Now().AddDate(0, 0, days)
	draft := f.ReceiptDraft(itemID, qty, 1.0)
	draft.ExpirationDate = &exp
	return draft
}
