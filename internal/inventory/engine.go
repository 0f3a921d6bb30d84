// Package inventory holds the stock engine: requirement calculation,
// reservations, expiry-ordered deduction, and lot reporting.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rotiku/backend/internal/allocation"
	"rotiku/backend/internal/domain"
	"rotiku/backend/internal/store"
)

const DefaultExpirySoonDays = 7

type Engine struct {
	repo           store.Repository
	log            *zap.Logger
	expirySoonDays int
}

func NewEngine(repo store.Repository, log *zap.Logger, expirySoonDays int) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if expirySoonDays < 1 {
		expirySoonDays = DefaultExpirySoonDays
	}
	return &Engine{repo: repo, log: log, expirySoonDays: expirySoonDays}
}

// Reserve earmarks aggregate stock for every requirement, or earmarks
// nothing. Shortfalls come back as a failed result, not an error; storage
// failures propagate.
func (e *Engine) Reserve(ctx context.Context, requirements []domain.IngredientRequirement) (domain.ReservationResult, error) {
	demands := toDemands(requirements)
	if len(demands) == 0 {
		return domain.ReservationResult{Success: true}, nil
	}

	if err := e.repo.ReserveStock(ctx, demands); err != nil {
		var insufficient *store.InsufficientStockError
		if errors.As(err, &insufficient) {
			result := domain.ReservationResult{}
			for _, shortfall := range insufficient.Shortfalls {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: requested %.3f, available %.3f", shortfall.IngredientID, shortfall.Requested, shortfall.Available))
			}
			e.log.Warn("reservation rejected", zap.Int("shortfalls", len(insufficient.Shortfalls)))
			return result, nil
		}
		return domain.ReservationResult{}, err
	}

	result := domain.ReservationResult{Success: true}
	for _, demand := range demands {
		result.ReservedIngredients = append(result.ReservedIngredients, demand.IngredientID)
	}
	return result, nil
}

// Release returns earmarked stock. Reservations are clamped at zero so
// duplicate releases stay safe; each clamp is surfaced and logged because
// it usually means a double release upstream.
func (e *Engine) Release(ctx context.Context, requirements []domain.IngredientRequirement) (domain.ReleaseResult, error) {
	demands := toDemands(requirements)
	if len(demands) == 0 {
		return domain.ReleaseResult{Success: true}, nil
	}

	clamped, err := e.repo.ReleaseStock(ctx, demands)
	if err != nil {
		return domain.ReleaseResult{}, err
	}
	for _, ingredientID := range clamped {
		e.log.Warn("release clamped at zero", zap.String("ingredient_id", ingredientID))
	}
	return domain.ReleaseResult{Success: true, Clamped: clamped}, nil
}

// DeductForOrder commits real stock for a requirement batch. The batch is
// rejected outright, with no writes, if any requirement was calculated
// insufficient. Within an accepted batch an ingredient whose live lot total
// has since dropped is skipped with an error while the rest commit.
func (e *Engine) DeductForOrder(ctx context.Context, requirements []domain.IngredientRequirement) (domain.DeductionResult, error) {
	shortfalls := make([]store.Shortfall, 0)
	for _, requirement := range requirements {
		if !requirement.IsSufficient {
			shortfalls = append(shortfalls, store.Shortfall{
				IngredientID: requirement.IngredientID,
				Requested:    requirement.RequiredQuantity,
				Available:    requirement.CurrentStock - requirement.ReservedStock,
			})
		}
	}
	if len(shortfalls) > 0 {
		return domain.DeductionResult{}, &store.InsufficientStockError{Shortfalls: shortfalls}
	}

	demands := toDemands(requirements)
	if len(demands) == 0 {
		return domain.DeductionResult{Success: true}, nil
	}

	result, err := e.repo.DeductStock(ctx, demands)
	if err != nil {
		return domain.DeductionResult{}, err
	}
	for _, msg := range result.Errors {
		e.log.Warn("ingredient skipped during deduction", zap.String("detail", msg))
	}
	return *result, nil
}

// RecommendedLots reports, read-only, which lots a requirement would draw
// from and how urgent each is.
func (e *Engine) RecommendedLots(ctx context.Context, ingredientID string, required float64) (domain.RecommendedLotsResult, error) {
	lots, err := e.repo.ListLots(ctx, ingredientID, false)
	if err != nil {
		return domain.RecommendedLotsResult{}, err
	}

	now := time.Now().UTC()
	soonCutoff := now.Add(time.Duration(e.expirySoonDays) * 24 * time.Hour)

	result := domain.RecommendedLotsResult{
		Lots:           make([]domain.RecommendedLot, 0, len(lots)),
		TotalAvailable: allocation.Available(lots, now),
	}
	result.IsSufficient = result.TotalAvailable >= required
	for _, lot := range lots {
		result.Lots = append(result.Lots, domain.RecommendedLot{
			LotID:          lot.ID,
			CurrentStock:   lot.CurrentStock,
			ExpiryDate:     lot.ExpiryDate,
			PurchaseDate:   lot.PurchaseDate,
			IsExpired:      !lot.ExpiryDate.After(now),
			IsExpiringSoon: lot.ExpiryDate.After(now) && !lot.ExpiryDate.After(soonCutoff),
		})
	}
	return result, nil
}

// ExpiringLots lists lots that still hold stock and expire within the given
// number of days (engine default when days < 1).
func (e *Engine) ExpiringLots(ctx context.Context, days int, limit int) ([]domain.IngredientLot, error) {
	if days < 1 {
		days = e.expirySoonDays
	}
	return e.repo.ListLotsExpiringWithin(ctx, days, limit)
}

func toDemands(requirements []domain.IngredientRequirement) []domain.StockDemand {
	demands := make([]domain.StockDemand, 0, len(requirements))
	for _, requirement := range requirements {
		if requirement.RequiredQuantity <= 0 {
			continue
		}
		demands = append(demands, domain.StockDemand{
			IngredientID: requirement.IngredientID,
			Quantity:     requirement.RequiredQuantity,
		})
	}
	return demands
}
