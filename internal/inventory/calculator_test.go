package inventory

import (
	"context"
	"math"
	"testing"
	"time"

	"rotiku/backend/internal/domain"
	"rotiku/backend/internal/store/memory"
)

func newTestCalculator() (*Calculator, *memory.Store) {
	repo := memory.NewSeeded()
	return NewCalculator(repo, repo, nil), repo
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func findRequirement(t *testing.T, result domain.RequirementResult, ingredientID string) domain.IngredientRequirement {
	t.Helper()
	for _, req := range result.Requirements {
		if req.IngredientID == ingredientID {
			return req
		}
	}
	t.Fatalf("no requirement for %s in %+v", ingredientID, result.Requirements)
	return domain.IngredientRequirement{}
}

func TestCalculateAggregatesRecipeComponents(t *testing.T) {
	calc, _ := newTestCalculator()

	result, err := calc.Calculate(context.Background(), []domain.OrderLine{
		{ProductName: "Roti Tawar", Quantity: 10},
	})
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if !result.AllSufficient {
		t.Fatalf("expected all sufficient, got %+v", result.Requirements)
	}
	if len(result.Requirements) != 3 {
		t.Fatalf("expected 3 requirements, got %d", len(result.Requirements))
	}

	tepung := findRequirement(t, result, "ing-tepung")
	if !almostEqual(tepung.RequiredQuantity, 5) || tepung.CurrentStock != 41 {
		t.Fatalf("unexpected tepung requirement: %+v", tepung)
	}
	gula := findRequirement(t, result, "ing-gula")
	if !almostEqual(gula.RequiredQuantity, 0.5) {
		t.Fatalf("unexpected gula requirement: %+v", gula)
	}
	ragi := findRequirement(t, result, "ing-ragi")
	if !almostEqual(ragi.RequiredQuantity, 0.1) {
		t.Fatalf("unexpected ragi requirement: %+v", ragi)
	}
}

func TestCalculateSumsSharedIngredientAcrossLines(t *testing.T) {
	calc, _ := newTestCalculator()

	result, err := calc.Calculate(context.Background(), []domain.OrderLine{
		{ProductName: "Roti Tawar", Quantity: 10},
		{ProductName: "Croissant", Quantity: 10},
	})
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}

	tepung := findRequirement(t, result, "ing-tepung")
	if !almostEqual(tepung.RequiredQuantity, 5.8) {
		t.Fatalf("expected 5.8 kg tepung across both lines, got %v", tepung.RequiredQuantity)
	}
}

func TestCalculateSortsShortagesFirst(t *testing.T) {
	calc, _ := newTestCalculator()

	result, err := calc.Calculate(context.Background(), []domain.OrderLine{
		{ProductName: "Roti Tawar", Quantity: 100},
		{ProductName: "Brownies", Quantity: 50},
	})
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if result.AllSufficient {
		t.Fatalf("expected shortages")
	}

	if result.Requirements[0].IngredientID != "ing-telur" || !almostEqual(result.Requirements[0].Shortage, 60) {
		t.Fatalf("expected telur shortage 60 first, got %+v", result.Requirements[0])
	}
	if result.Requirements[1].IngredientID != "ing-tepung" || !almostEqual(result.Requirements[1].Shortage, 19) {
		t.Fatalf("expected tepung shortage 19 second, got %+v", result.Requirements[1])
	}
	if result.Requirements[2].IngredientID != "ing-coklat" || !almostEqual(result.Requirements[2].Shortage, 1) {
		t.Fatalf("expected coklat shortage 1 third, got %+v", result.Requirements[2])
	}

	gula := findRequirement(t, result, "ing-gula")
	if !gula.IsSufficient || gula.Shortage != 0 {
		t.Fatalf("gula should remain sufficient, got %+v", gula)
	}
}

func TestCalculateWarnsOnUnknownProduct(t *testing.T) {
	calc, _ := newTestCalculator()

	result, err := calc.Calculate(context.Background(), []domain.OrderLine{
		{ProductName: "Martabak", Quantity: 2},
	})
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", result.Warnings)
	}
	if len(result.Requirements) != 0 {
		t.Fatalf("unknown product must produce no requirements, got %+v", result.Requirements)
	}
	if !result.AllSufficient {
		t.Fatalf("nothing required means all sufficient")
	}
}

func TestCalculateSkipsInvalidLines(t *testing.T) {
	calc, _ := newTestCalculator()

	result, err := calc.Calculate(context.Background(), []domain.OrderLine{
		{ProductName: "  ", Quantity: 3},
		{ProductName: "Roti Tawar", Quantity: 0},
		{ProductName: "Roti Tawar", Quantity: 2},
	})
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", result.Warnings)
	}
	tepung := findRequirement(t, result, "ing-tepung")
	if !almostEqual(tepung.RequiredQuantity, 1) {
		t.Fatalf("only the valid line should count, got %v", tepung.RequiredQuantity)
	}
}

func TestCalculateCountsReservedStockAgainstAvailability(t *testing.T) {
	calc, repo := newTestCalculator()
	ctx := context.Background()

	if err := repo.ReserveStock(ctx, []domain.StockDemand{{IngredientID: "ing-tepung", Quantity: 40}}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	result, err := calc.Calculate(ctx, []domain.OrderLine{
		{ProductName: "Roti Tawar", Quantity: 10},
	})
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}

	tepung := findRequirement(t, result, "ing-tepung")
	if tepung.IsSufficient {
		t.Fatalf("reserved stock must reduce availability, got %+v", tepung)
	}
	if !almostEqual(tepung.Shortage, 4) {
		t.Fatalf("expected shortage 4 (need 5, 1 free), got %v", tepung.Shortage)
	}
}

func TestCalculateIgnoresExpiredLotStock(t *testing.T) {
	calc, repo := newTestCalculator()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := repo.CreateIngredient(ctx, domain.Ingredient{ID: "ing-vanila", Name: "Vanila", Unit: "kg"}); err != nil {
		t.Fatalf("create ingredient: %v", err)
	}
	if _, err := repo.CreateLot(ctx, domain.IngredientLot{
		ID:           "lot-vanila-expired",
		IngredientID: "ing-vanila",
		Quantity:     10,
		ExpiryDate:   now.Add(-24 * time.Hour),
		ExpirySource: domain.ExpirySourceExplicit,
		PurchaseDate: now.Add(-30 * 24 * time.Hour),
	}); err != nil {
		t.Fatalf("create lot: %v", err)
	}
	if _, err := repo.CreateProduct(ctx, domain.Product{
		Name:       "Kue Vanila",
		PriceCents: 25000,
		Recipe: []domain.RecipeComponent{
			{IngredientID: "ing-vanila", QuantityPerUnit: 0.2, Unit: "kg"},
		},
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	result, err := calc.Calculate(ctx, []domain.OrderLine{
		{ProductName: "Kue Vanila", Quantity: 5},
	})
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}

	vanila := findRequirement(t, result, "ing-vanila")
	if vanila.IsSufficient {
		t.Fatalf("expired lot stock must not satisfy a requirement, got %+v", vanila)
	}
	if vanila.CurrentStock != 0 {
		t.Fatalf("usable stock should be 0 with only an expired lot, got %v", vanila.CurrentStock)
	}
	if !almostEqual(vanila.Shortage, 1) {
		t.Fatalf("expected shortage 1, got %v", vanila.Shortage)
	}
}
