package service

import (
	"context"
	"time"
)

// CategorySummary aggregates one item category
type CategorySummary struct {
	ItemCount  int     `json:"item_count"`
	TotalStock int     `json:"total_stock"`
	StockValue float64 `json:"stock_value"`
}

// DashboardSummary is the headline view of the whole inventory
type DashboardSummary struct {
	TotalItems        int                         `json:"total_items"`
	TotalStock        int                         `json:"total_stock"`
	TotalStockValue   float64                     `json:"total_stock_value"`
	LowStockCount     int                         `json:"low_stock_count"`
	OutOfStockCount   int                         `json:"out_of_stock_count"`
	ExpiringCount     int                         `json:"expiring_count"`
	ExpiredCount      int                         `json:"expired_count"`
	ActiveAlertCount  int                         `json:"active_alert_count"`
	PendingSyncCount  int                         `json:"pending_sync_count"`
	CategoryBreakdown map[string]*CategorySummary `json:"category_breakdown"`
	GeneratedAt       time.Time                   `json:"generated_at"`
}

// GetDashboardSummary computes dashboard statistics across the catalog,
// ledger, alert engine, and offline queue.
func (s *InventoryService) GetDashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	if v, ok := s.cache.Get("dashboard"); ok {
		return v.(*DashboardSummary), nil
	}

	items := s.catalog.Items()
	records := s.ledger.Records()

	summary := &DashboardSummary{
		TotalItems:        len(items),
		ActiveAlertCount:  len(s.alerts.Active()),
		PendingSyncCount:  s.queue.Depth(),
		CategoryBreakdown: make(map[string]*CategorySummary),
		GeneratedAt:       time.Now(),
	}

	categories := make(map[string]string, len(items))
	for _, item := range items {
		categories[item.ID] = item.Category
		if _, ok := summary.CategoryBreakdown[item.Category]; !ok {
			summary.CategoryBreakdown[item.Category] = &CategorySummary{}
		}
		summary.CategoryBreakdown[item.Category].ItemCount++
	}

	// per-item totals across locations, so low/out counts are not inflated
	// by multi-location records
	itemStock := make(map[string]int)
	itemMin := make(map[string]int)

	now := time.Now()
	for _, rec := range records {
		itemStock[rec.ItemID] += rec.CurrentStock
		itemMin[rec.ItemID] = rec.MinimumStock
		summary.TotalStock += rec.CurrentStock
		summary.TotalStockValue += rec.TotalValue

		for _, b := range rec.Batches {
			if b.ExpirationDate == nil || b.Available <= 0 {
				continue
			}
			days := int(b.ExpirationDate.Sub(now).Hours() / 24)
			switch {
			case days < 0:
				summary.ExpiredCount++
			case days <= 30:
				summary.ExpiringCount++
			}
		}

		if cat, ok := categories[rec.ItemID]; ok {
			cs := summary.CategoryBreakdown[cat]
			cs.TotalStock += rec.CurrentStock
			cs.StockValue += rec.TotalValue
		}
	}

	for itemID, stock := range itemStock {
		switch {
		case stock <= 0:
			summary.OutOfStockCount++
		case itemMin[itemID] > 0 && stock < itemMin[itemID]:
			summary.LowStockCount++
		}
	}

	s.cache.Set("dashboard", summary)
	return summary, nil
}
