package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"rotiku/backend/internal/allocation"
	"rotiku/backend/internal/domain"
	"rotiku/backend/internal/store"
)

// Catalog resolves order lines to products. The service wires a cached
// implementation in front of the repository.
type Catalog interface {
	GetProductByName(ctx context.Context, name string) (*domain.Product, error)
}

// Calculator turns an order's lines into per-ingredient requirements. It
// performs no writes; stock figures are read fresh on every call.
type Calculator struct {
	repo    store.Repository
	catalog Catalog
	log     *zap.Logger
}

func NewCalculator(repo store.Repository, catalog Catalog, log *zap.Logger) *Calculator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Calculator{repo: repo, catalog: catalog, log: log}
}

func (c *Calculator) Calculate(ctx context.Context, lines []domain.OrderLine) (domain.RequirementResult, error) {
	result := domain.RequirementResult{AllSufficient: true}

	required := make(map[string]float64)
	order := make([]string, 0, len(lines))
	for _, line := range lines {
		name := strings.TrimSpace(line.ProductName)
		if name == "" || line.Quantity <= 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("skipped invalid line %q", line.ProductName))
			continue
		}

		product, err := c.catalog.GetProductByName(ctx, name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				result.Warnings = append(result.Warnings, fmt.Sprintf("no product matches %q", name))
				c.log.Warn("unknown product in order", zap.String("product", name))
				continue
			}
			return domain.RequirementResult{}, err
		}
		if len(product.Recipe) == 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("product %q has no recipe", product.Name))
			c.log.Warn("product without recipe in order", zap.String("product", product.Name))
			continue
		}

		for _, component := range product.Recipe {
			if _, seen := required[component.IngredientID]; !seen {
				order = append(order, component.IngredientID)
			}
			required[component.IngredientID] += line.Quantity * component.QuantityPerUnit
		}
	}

	now := time.Now().UTC()
	for _, ingredientID := range order {
		ingredient, err := c.repo.GetIngredient(ctx, ingredientID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				result.Warnings = append(result.Warnings, fmt.Sprintf("ingredient %s not found", ingredientID))
				c.log.Warn("recipe references missing ingredient", zap.String("ingredient_id", ingredientID))
				continue
			}
			return domain.RequirementResult{}, err
		}

		// Expired lot stock is still counted in the aggregate but can never
		// be allocated, so usable stock comes from the eligible lot sum when
		// the ingredient is lot-tracked.
		usable := ingredient.CurrentStock
		lots, err := c.repo.ListLots(ctx, ingredientID, false)
		if err != nil {
			return domain.RequirementResult{}, err
		}
		if len(lots) > 0 {
			usable = allocation.Available(lots, now)
		}

		requirement := domain.IngredientRequirement{
			IngredientID:     ingredient.ID,
			IngredientName:   ingredient.Name,
			Unit:             ingredient.Unit,
			RequiredQuantity: required[ingredientID],
			CurrentStock:     usable,
			ReservedStock:    ingredient.ReservedStock,
			MinimumStock:     ingredient.MinimumStock,
		}
		available := usable - ingredient.ReservedStock
		requirement.IsSufficient = available >= requirement.RequiredQuantity
		if !requirement.IsSufficient {
			requirement.Shortage = requirement.RequiredQuantity - available
			result.AllSufficient = false
		}
		result.Requirements = append(result.Requirements, requirement)
	}

	// Most critical shortage first.
	sort.SliceStable(result.Requirements, func(i, j int) bool {
		return result.Requirements[i].Shortage > result.Requirements[j].Shortage
	})

	return result, nil
}
