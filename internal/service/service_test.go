package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"rotiku/backend/internal/cache"
	"rotiku/backend/internal/domain"
	"rotiku/backend/internal/inventory"
	"rotiku/backend/internal/store"
	"rotiku/backend/internal/store/memory"
)

func newTestService() (*Service, *memory.Store) {
	repo := memory.NewSeeded()
	engine := inventory.NewEngine(repo, nil, inventory.DefaultExpirySoonDays)
	return New(repo, engine, cache.NewNoop(), nil, 7), repo
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func staffCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "staff", Role: "staff"})
}

func ingredientStock(t *testing.T, repo *memory.Store, id string) domain.Ingredient {
	t.Helper()
	ing, err := repo.GetIngredient(context.Background(), id)
	if err != nil {
		t.Fatalf("get ingredient %s: %v", id, err)
	}
	return *ing
}

func TestCreateOrderSufficientReservesStock(t *testing.T) {
	svc, repo := newTestService()

	order, err := svc.CreateOrder(staffCtx(), domain.OrderCreateRequest{
		CustomerName: "Bu Rina",
		Lines:        []domain.OrderLine{{ProductName: "Roti Tawar", Quantity: 10}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.Status != domain.OrderStatusNew {
		t.Fatalf("expected status %q, got %q", domain.OrderStatusNew, order.Status)
	}
	if order.StockCalculation == nil || !order.StockCalculation.AllSufficient {
		t.Fatalf("expected sufficient calculation snapshot, got %+v", order.StockCalculation)
	}

	tepung := ingredientStock(t, repo, "ing-tepung")
	if tepung.ReservedStock != 5 {
		t.Fatalf("expected 5 kg tepung reserved, got %v", tepung.ReservedStock)
	}
	if tepung.CurrentStock != 41 {
		t.Fatalf("reservation must not reduce current stock, got %v", tepung.CurrentStock)
	}
}

func TestCreateOrderInsufficientParksPending(t *testing.T) {
	svc, repo := newTestService()

	order, err := svc.CreateOrder(staffCtx(), domain.OrderCreateRequest{
		Lines: []domain.OrderLine{{ProductName: "Roti Tawar", Quantity: 100}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected status %q, got %q", domain.OrderStatusPending, order.Status)
	}
	if order.StockCalculation == nil || order.StockCalculation.AllSufficient {
		t.Fatalf("expected insufficient snapshot, got %+v", order.StockCalculation)
	}

	tepung := ingredientStock(t, repo, "ing-tepung")
	if tepung.ReservedStock != 0 {
		t.Fatalf("pending order must reserve nothing, got %v", tepung.ReservedStock)
	}
}

func TestStartProcessingDeductsAndReleases(t *testing.T) {
	svc, repo := newTestService()

	order, err := svc.CreateOrder(staffCtx(), domain.OrderCreateRequest{
		Lines: []domain.OrderLine{{ProductName: "Roti Tawar", Quantity: 10}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	processed, err := svc.StartProcessing(staffCtx(), order.ID)
	if err != nil {
		t.Fatalf("start processing failed: %v", err)
	}
	if processed.Status != domain.OrderStatusOnProcess {
		t.Fatalf("expected status %q, got %q", domain.OrderStatusOnProcess, processed.Status)
	}
	if processed.LotUsage == nil || len(processed.LotUsage.LotsUsed) == 0 {
		t.Fatalf("expected lot usage persisted on order, got %+v", processed.LotUsage)
	}

	tepung := ingredientStock(t, repo, "ing-tepung")
	if tepung.CurrentStock != 36 {
		t.Fatalf("expected tepung 36 after deduction, got %v", tepung.CurrentStock)
	}
	if tepung.ReservedStock != 0 {
		t.Fatalf("expected reservation released, got %v", tepung.ReservedStock)
	}
}

func TestReevaluatePendingAfterRestock(t *testing.T) {
	svc, repo := newTestService()
	futureDate := time.Now().UTC().Add(60 * 24 * time.Hour).Format("2006-01-02")

	order, err := svc.CreateOrder(staffCtx(), domain.OrderCreateRequest{
		Lines: []domain.OrderLine{{ProductName: "Croissant", Quantity: 200}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending order, got %q", order.Status)
	}

	for _, restock := range []domain.LotReceiveRequest{
		{IngredientID: "ing-mentega", Quantity: 20, ExpiryDate: futureDate},
		{IngredientID: "ing-telur", Quantity: 200, ExpiryDate: futureDate},
	} {
		if _, err := svc.ReceiveLot(adminCtx(), restock); err != nil {
			t.Fatalf("receive lot for %s failed: %v", restock.IngredientID, err)
		}
	}

	reevaluated, err := svc.ReevaluateOrder(staffCtx(), order.ID)
	if err != nil {
		t.Fatalf("reevaluate failed: %v", err)
	}
	if reevaluated.Status != domain.OrderStatusNew {
		t.Fatalf("expected status %q after restock, got %q", domain.OrderStatusNew, reevaluated.Status)
	}
	if reevaluated.LotUsage == nil {
		t.Fatalf("expected lot usage after reevaluation deduction")
	}

	mentega := ingredientStock(t, repo, "ing-mentega")
	if mentega.CurrentStock != 18 {
		t.Fatalf("expected mentega 18 after deduction, got %v", mentega.CurrentStock)
	}
	telur := ingredientStock(t, repo, "ing-telur")
	if telur.CurrentStock != 90 {
		t.Fatalf("expected telur 90 after deduction, got %v", telur.CurrentStock)
	}
}

func TestReevaluateStillInsufficientStaysPending(t *testing.T) {
	svc, _ := newTestService()

	order, err := svc.CreateOrder(staffCtx(), domain.OrderCreateRequest{
		Lines: []domain.OrderLine{{ProductName: "Croissant", Quantity: 200}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	_, err = svc.ReevaluateOrder(staffCtx(), order.ID)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	current, err := svc.GetOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if current.Status != domain.OrderStatusPending {
		t.Fatalf("failed reevaluation must keep status Pending, got %q", current.Status)
	}
}

func TestCancelReleasesReservationOnly(t *testing.T) {
	svc, repo := newTestService()

	order, err := svc.CreateOrder(staffCtx(), domain.OrderCreateRequest{
		Lines: []domain.OrderLine{{ProductName: "Roti Tawar", Quantity: 10}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	cancelled, err := svc.CancelOrder(staffCtx(), order.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected status %q, got %q", domain.OrderStatusCancelled, cancelled.Status)
	}

	tepung := ingredientStock(t, repo, "ing-tepung")
	if tepung.ReservedStock != 0 {
		t.Fatalf("expected reservation released, got %v", tepung.ReservedStock)
	}
	if tepung.CurrentStock != 41 {
		t.Fatalf("cancel before processing must not touch stock, got %v", tepung.CurrentStock)
	}
}

func TestCancelAfterProcessingKeepsDeductedStock(t *testing.T) {
	svc, repo := newTestService()

	order, err := svc.CreateOrder(staffCtx(), domain.OrderCreateRequest{
		Lines: []domain.OrderLine{{ProductName: "Roti Tawar", Quantity: 10}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if _, err := svc.StartProcessing(staffCtx(), order.ID); err != nil {
		t.Fatalf("start processing failed: %v", err)
	}

	cancelled, err := svc.CancelOrder(staffCtx(), order.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected status %q, got %q", domain.OrderStatusCancelled, cancelled.Status)
	}

	// Lots were physically consumed when production started; cancellation
	// does not restock them.
	tepung := ingredientStock(t, repo, "ing-tepung")
	if tepung.CurrentStock != 36 {
		t.Fatalf("expected deducted stock kept at 36, got %v", tepung.CurrentStock)
	}
	if tepung.ReservedStock != 0 {
		t.Fatalf("reserved stock must stay clamped at zero, got %v", tepung.ReservedStock)
	}
}

func TestIllegalTransitionsRejected(t *testing.T) {
	svc, _ := newTestService()

	order, err := svc.CreateOrder(staffCtx(), domain.OrderCreateRequest{
		Lines: []domain.OrderLine{{ProductName: "Roti Tawar", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	if _, err := svc.CompleteOrder(staffCtx(), order.ID); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("completing a New Order must be rejected, got %v", err)
	}

	if _, err := svc.StartProcessing(staffCtx(), order.ID); err != nil {
		t.Fatalf("start processing failed: %v", err)
	}
	completed, err := svc.CompleteOrder(staffCtx(), order.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected status %q, got %q", domain.OrderStatusCompleted, completed.Status)
	}

	if _, err := svc.CancelOrder(staffCtx(), order.ID); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("cancelling a Completed order must be rejected, got %v", err)
	}
}

func TestReceiveLotExpirySources(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	explicit, err := svc.ReceiveLot(ctx, domain.LotReceiveRequest{
		IngredientID: "ing-tepung",
		Quantity:     5,
		ExpiryDate:   time.Now().UTC().Add(30 * 24 * time.Hour).Format("2006-01-02"),
	})
	if err != nil {
		t.Fatalf("receive explicit lot failed: %v", err)
	}
	if explicit.ExpirySource != domain.ExpirySourceExplicit {
		t.Fatalf("expected explicit source, got %s", explicit.ExpirySource)
	}

	catalog, err := svc.ReceiveLot(ctx, domain.LotReceiveRequest{
		IngredientID: "ing-tepung",
		Quantity:     5,
	})
	if err != nil {
		t.Fatalf("receive catalog-default lot failed: %v", err)
	}
	if catalog.ExpirySource != domain.ExpirySourceCatalogDefault {
		t.Fatalf("expected catalog_default source, got %s", catalog.ExpirySource)
	}

	created, err := svc.CreateIngredient(ctx, domain.IngredientCreateRequest{Name: "Pewarna", Unit: "ml"})
	if err != nil {
		t.Fatalf("create ingredient failed: %v", err)
	}
	fallback, err := svc.ReceiveLot(ctx, domain.LotReceiveRequest{
		IngredientID: created.ID,
		Quantity:     100,
	})
	if err != nil {
		t.Fatalf("receive fallback lot failed: %v", err)
	}
	if fallback.ExpirySource != domain.ExpirySourceFallbackDefault {
		t.Fatalf("expected fallback_default source, got %s", fallback.ExpirySource)
	}
}

func TestProductWritesRequireAdmin(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateProduct(staffCtx(), domain.ProductCreateRequest{
		Name:       "Donat",
		PriceCents: 8000,
	})
	if err == nil {
		t.Fatalf("expected staff product creation to be rejected")
	}

	created, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:       "Donat",
		PriceCents: 8000,
		Recipe: []domain.RecipeComponent{
			{IngredientID: "ing-tepung", QuantityPerUnit: 0.05, Unit: "kg"},
		},
	})
	if err != nil {
		t.Fatalf("admin product creation failed: %v", err)
	}

	newPrice := int64(9000)
	updated, err := svc.UpdateProduct(adminCtx(), created.ID, domain.ProductUpdateRequest{PriceCents: &newPrice})
	if err != nil {
		t.Fatalf("update product failed: %v", err)
	}
	if updated.PriceCents != 9000 {
		t.Fatalf("expected price 9000, got %d", updated.PriceCents)
	}
}

func TestAuditLogsRecorded(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.CreateOrder(staffCtx(), domain.OrderCreateRequest{
		Lines: []domain.OrderLine{{ProductName: "Roti Tawar", Quantity: 1}},
	}); err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	logs, err := svc.ListAuditLogs(context.Background(), time.Now().UTC().Format("2006-01-02"), 10)
	if err != nil {
		t.Fatalf("list audit logs failed: %v", err)
	}
	if len(logs) == 0 {
		t.Fatalf("expected an audit entry for order creation")
	}
	if logs[0].Action != "order_create" || logs[0].ActorUsername != "staff" {
		t.Fatalf("unexpected audit entry: %+v", logs[0])
	}
}
