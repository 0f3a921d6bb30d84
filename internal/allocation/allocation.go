// Package allocation implements first-expired-first-out lot selection.
// It is pure computation over lot snapshots; callers apply the resulting
// plan inside their own transaction or lock.
package allocation

import (
	"sort"
	"time"

	"rotiku/backend/internal/domain"
)

type Allocation struct {
	LotID      string
	Quantity   float64
	ExpiryDate time.Time
	FullyUsed  bool
}

type Plan struct {
	Allocations    []Allocation
	TotalAvailable float64
	Shortfall      float64
}

// Eligible reports whether a lot may be allocated from at the given time.
// Expired lots are excluded even when they still show stock; they belong to
// a manual write-off path.
func Eligible(lot domain.IngredientLot, now time.Time) bool {
	return lot.CurrentStock > 0 && lot.ExpiryDate.After(now)
}

// Available sums the allocatable stock across lots.
func Available(lots []domain.IngredientLot, now time.Time) float64 {
	total := 0.0
	for _, lot := range lots {
		if Eligible(lot, now) {
			total += lot.CurrentStock
		}
	}
	return total
}

// SortFEFO orders lots ascending by expiry date, breaking ties by the
// earliest purchase date.
func SortFEFO(lots []domain.IngredientLot) {
	sort.SliceStable(lots, func(i, j int) bool {
		if lots[i].ExpiryDate.Equal(lots[j].ExpiryDate) {
			return lots[i].PurchaseDate.Before(lots[j].PurchaseDate)
		}
		return lots[i].ExpiryDate.Before(lots[j].ExpiryDate)
	})
}

// Select walks the eligible lots in FEFO order, taking from each the lesser
// of the remaining requirement and the lot's stock. If the eligible total
// cannot cover the requirement the plan carries the shortfall and no
// allocations, so a caller never applies a partial take.
func Select(lots []domain.IngredientLot, required float64, now time.Time) Plan {
	plan := Plan{TotalAvailable: Available(lots, now)}
	if required <= 0 {
		return plan
	}
	if plan.TotalAvailable < required {
		plan.Shortfall = required - plan.TotalAvailable
		return plan
	}

	ordered := make([]domain.IngredientLot, len(lots))
	copy(ordered, lots)
	SortFEFO(ordered)

	remaining := required
	for _, lot := range ordered {
		if remaining <= 0 {
			break
		}
		if !Eligible(lot, now) {
			continue
		}
		take := remaining
		if take > lot.CurrentStock {
			take = lot.CurrentStock
		}
		plan.Allocations = append(plan.Allocations, Allocation{
			LotID:      lot.ID,
			Quantity:   take,
			ExpiryDate: lot.ExpiryDate,
			FullyUsed:  take == lot.CurrentStock,
		})
		remaining -= take
	}
	return plan
}
