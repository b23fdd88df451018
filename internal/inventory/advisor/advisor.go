// Package advisor recommends purchase quantities from reorder points and
// recent consumption velocity.
package advisor

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/farmdash/farmdash-backend/internal/inventory/domain"
	"github.com/farmdash/farmdash-backend/internal/inventory/journal"
	"github.com/farmdash/farmdash-backend/internal/inventory/ledger"
	"github.com/farmdash/farmdash-backend/pkg/logger"
)

// Config holds the planning horizons
type Config struct {
	// LeadTimeDays covers expected supplier delivery time
	LeadTimeDays int
	// ConsumptionWindowDays is the lookback for velocity
	ConsumptionWindowDays int
}

// Advisor computes reorder suggestions for items at or below their reorder
// point. Stateless between calls; everything is derived from the ledger and
// the journal.
type Advisor struct {
	ledger  *ledger.Ledger
	journal *journal.Journal
	catalog journal.Catalog
	cfg     Config
	now     func() time.Time
	logger  *logger.Logger
}

// New creates a reorder advisor
func New(led *ledger.Ledger, jnl *journal.Journal, catalog journal.Catalog, cfg Config, log *logger.Logger) *Advisor {
	if cfg.LeadTimeDays <= 0 {
		cfg.LeadTimeDays = 7
	}
	if cfg.ConsumptionWindowDays <= 0 {
		cfg.ConsumptionWindowDays = 30
	}
	return &Advisor{
		ledger:  led,
		journal: jnl,
		catalog: catalog,
		cfg:     cfg,
		now:     time.Now,
		logger:  log.WithComponent("reorder-advisor"),
	}
}

// Suggestions returns one suggestion per item whose aggregate stock sits at
// or below its reorder point, ordered most urgent first.
func (a *Advisor) Suggestions(ctx context.Context) []*domain.ReorderSuggestion {
	totals := make(map[string]int)
	for _, rec := range a.ledger.Records() {
		totals[rec.ItemID] += rec.CurrentStock
	}

	cutoff := a.now().AddDate(0, 0, -a.cfg.ConsumptionWindowDays)

	var out []*domain.ReorderSuggestion
	for itemID, current := range totals {
		item, err := a.catalog.Item(ctx, itemID)
		if err != nil {
			a.logger.Warn().Err(err).Str("item_id", itemID).Msg("skipping item with unknown catalog entry")
			continue
		}

		point := item.ReorderPoint
		if point <= 0 {
			point = item.MinimumStock
		}
		if point <= 0 || current > point {
			continue
		}

		daily := float64(a.journal.ConsumedSince(itemID, cutoff)) / float64(a.cfg.ConsumptionWindowDays)

		out = append(out, &domain.ReorderSuggestion{
			ItemID:            itemID,
			ItemName:          item.Name,
			CurrentStock:      current,
			ReorderPoint:      point,
			MaximumStock:      item.MaximumStock,
			DailyConsumption:  daily,
			SuggestedQuantity: a.suggestedQuantity(current, point, item.MaximumStock, daily),
			Priority:          urgency(current, point),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		ri, rj := rank(out[i].Priority), rank(out[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out
}

// suggestedQuantity restocks to the maximum when one is set, otherwise to
// twice the reorder point, then adds lead-time demand cover. Never suggests
// past the maximum.
func (a *Advisor) suggestedQuantity(current, point, max int, daily float64) int {
	target := max
	if target <= 0 {
		target = point * 2
	}

	qty := target - current
	qty += int(math.Ceil(daily * float64(a.cfg.LeadTimeDays)))

	if max > 0 && current+qty > max {
		qty = max - current
	}
	if qty < 1 {
		qty = 1
	}
	return qty
}

// urgency reuses the shared percentage bands so a suggestion carries the same
// priority the low-stock alert for that item would.
func urgency(current, point int) domain.AlertPriority {
	if current <= 0 {
		return domain.PriorityCritical
	}
	return domain.PriorityForPercentage(float64(current) / float64(point) * 100)
}

func rank(p domain.AlertPriority) int {
	switch p {
	case domain.PriorityCritical:
		return 0
	case domain.PriorityHigh:
		return 1
	case domain.PriorityMedium:
		return 2
	default:
		return 3
	}
}
