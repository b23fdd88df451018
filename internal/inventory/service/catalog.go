package service

import (
	"context"
	"sync"

	"github.com/farmdash/farmdash-backend/internal/inventory/domain"
	"github.com/farmdash/farmdash-backend/internal/inventory/ledger"
	"github.com/farmdash/farmdash-backend/pkg/errors"
)

// Catalog is the engine's read-through copy of the backend item catalog.
// Thresholds flow into the ledger on every upsert so stock status stays
// consistent with the latest master data.
type Catalog struct {
	mu        sync.RWMutex
	items     map[string]*domain.Item
	byBarcode map[string]string
	ledger    *ledger.Ledger
}

// NewCatalog creates an empty catalog bound to the ledger
func NewCatalog(led *ledger.Ledger) *Catalog {
	return &Catalog{
		items:     make(map[string]*domain.Item),
		byBarcode: make(map[string]string),
		ledger:    led,
	}
}

// Item returns one item by ID. Satisfies the journal's catalog dependency.
func (c *Catalog) Item(ctx context.Context, itemID string) (*domain.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[itemID]
	if !ok {
		return nil, errors.NotFound("item")
	}
	cp := *item
	return &cp, nil
}

// ItemByBarcode returns one item by barcode
func (c *Catalog) ItemByBarcode(barcode string) (*domain.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.byBarcode[barcode]
	if !ok {
		return nil, errors.NotFound("item")
	}
	cp := *c.items[id]
	return &cp, nil
}

// Items returns copies of all active items
func (c *Catalog) Items() []*domain.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*domain.Item, 0, len(c.items))
	for _, item := range c.items {
		cp := *item
		out = append(out, &cp)
	}
	return out
}

// Upsert stores an item and pushes its thresholds into the ledger
func (c *Catalog) Upsert(item *domain.Item) {
	c.mu.Lock()
	cp := *item
	if old, ok := c.items[cp.ID]; ok && old.Barcode != "" && old.Barcode != cp.Barcode {
		delete(c.byBarcode, old.Barcode)
	}
	c.items[cp.ID] = &cp
	if cp.Barcode != "" {
		c.byBarcode[cp.Barcode] = cp.ID
	}
	c.mu.Unlock()

	c.ledger.SetItemThresholds(&cp)
}

// Remove drops an item from the catalog. Ledger history stays untouched.
func (c *Catalog) Remove(itemID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, ok := c.items[itemID]; ok {
		if item.Barcode != "" {
			delete(c.byBarcode, item.Barcode)
		}
		delete(c.items, itemID)
	}
}

// Len returns the number of items in the catalog
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
