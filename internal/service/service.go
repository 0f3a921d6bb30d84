package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"rotiku/backend/internal/cache"
	"rotiku/backend/internal/domain"
	"rotiku/backend/internal/inventory"
	"rotiku/backend/internal/store"
	"rotiku/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo                 store.Repository
	calc                 *inventory.Calculator
	engine               *inventory.Engine
	products             cache.ProductCache
	log                  *zap.Logger
	defaultShelfLifeDays int
}

func New(repo store.Repository, engine *inventory.Engine, products cache.ProductCache, log *zap.Logger, defaultShelfLifeDays int) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if products == nil {
		products = cache.NewNoop()
	}
	if defaultShelfLifeDays < 1 {
		defaultShelfLifeDays = 7
	}

	catalog := &cachedCatalog{repo: repo, cache: products, log: log}
	return &Service{
		repo:                 repo,
		calc:                 inventory.NewCalculator(repo, catalog, log),
		engine:               engine,
		products:             products,
		log:                  log,
		defaultShelfLifeDays: defaultShelfLifeDays,
	}
}

// cachedCatalog fronts product-by-name lookups with the product cache.
// Cache failures degrade to repository reads, never to request failures.
type cachedCatalog struct {
	repo  store.Repository
	cache cache.ProductCache
	log   *zap.Logger
}

func (c *cachedCatalog) GetProductByName(ctx context.Context, name string) (*domain.Product, error) {
	key := strings.ToLower(strings.TrimSpace(name))

	cached, found, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.Warn("product cache read failed", zap.String("product", key), zap.Error(err))
	} else if found {
		return cached, nil
	}

	product, err := c.repo.GetProductByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, product); err != nil {
		c.log.Warn("product cache write failed", zap.String("product", key), zap.Error(err))
	}
	return product, nil
}

func (s *Service) invalidateProduct(ctx context.Context, name string) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return
	}
	if err := s.products.Delete(ctx, key); err != nil {
		s.log.Warn("product cache invalidation failed", zap.String("product", key), zap.Error(err))
	}
}

// orderEvent is the closed set of triggers the fulfillment state machine
// accepts. Order creation is not an event; it picks the initial status.
type orderEvent string

const (
	eventReevaluate      orderEvent = "reevaluate"
	eventStartProcessing orderEvent = "start_processing"
	eventComplete        orderEvent = "complete"
	eventCancel          orderEvent = "cancel"
)

type stockEffect int

const (
	effectNone stockEffect = iota
	effectDeduct
	effectDeductAndRelease
	effectReleaseReservation
)

type transitionKey struct {
	status string
	event  orderEvent
}

type transition struct {
	next   string
	effect stockEffect
}

// orderTransitions is the full fulfillment state machine. A (status, event)
// pair absent from this table is an illegal transition.
//
// Cancelling an order that is already On Process keeps the deducted stock:
// the lots were physically consumed when production started, so only the
// reservation (already released, clamped at zero) is touched. Restocking
// after such a cancellation is a manual decision.
var orderTransitions = map[transitionKey]transition{
	{domain.OrderStatusPending, eventReevaluate}:      {domain.OrderStatusNew, effectDeduct},
	{domain.OrderStatusNew, eventStartProcessing}:     {domain.OrderStatusOnProcess, effectDeductAndRelease},
	{domain.OrderStatusPending, eventStartProcessing}: {domain.OrderStatusOnProcess, effectDeductAndRelease},
	{domain.OrderStatusOnProcess, eventComplete}:      {domain.OrderStatusCompleted, effectNone},
	{domain.OrderStatusNew, eventCancel}:              {domain.OrderStatusCancelled, effectReleaseReservation},
	{domain.OrderStatusPending, eventCancel}:          {domain.OrderStatusCancelled, effectReleaseReservation},
	{domain.OrderStatusOnProcess, eventCancel}:        {domain.OrderStatusCancelled, effectReleaseReservation},
}

func (s *Service) CreateIngredient(ctx context.Context, req domain.IngredientCreateRequest) (domain.Ingredient, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Ingredient{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Unit = strings.TrimSpace(req.Unit)
	if req.Name == "" || req.Unit == "" {
		return domain.Ingredient{}, store.ErrInvalidInput
	}
	if req.MinimumStock < 0 || req.DefaultShelfLifeDays < 0 {
		return domain.Ingredient{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateIngredient(ctx, domain.Ingredient{
		Name:                 req.Name,
		Unit:                 req.Unit,
		MinimumStock:         req.MinimumStock,
		DefaultShelfLifeDays: req.DefaultShelfLifeDays,
	})
	if err != nil {
		return domain.Ingredient{}, err
	}

	s.logAudit(ctx, "ingredient_create", "ingredient", created.ID, fmt.Sprintf("name=%s,unit=%s", created.Name, created.Unit))
	return *created, nil
}

func (s *Service) GetIngredient(ctx context.Context, id string) (domain.Ingredient, error) {
	ingredient, err := s.repo.GetIngredient(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Ingredient{}, err
	}
	return *ingredient, nil
}

func (s *Service) ListIngredients(ctx context.Context) ([]domain.Ingredient, error) {
	return s.repo.ListIngredients(ctx)
}

// ReceiveLot records a purchased batch. Expiry resolution order: an explicit
// date on the request, then the ingredient's catalog shelf life, then the
// configured fallback shelf life.
func (s *Service) ReceiveLot(ctx context.Context, req domain.LotReceiveRequest) (domain.IngredientLot, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.IngredientLot{}, fmt.Errorf("admin role required")
	}

	req.IngredientID = strings.TrimSpace(req.IngredientID)
	if req.IngredientID == "" || req.Quantity <= 0 {
		return domain.IngredientLot{}, store.ErrInvalidInput
	}

	ingredient, err := s.repo.GetIngredient(ctx, req.IngredientID)
	if err != nil {
		return domain.IngredientLot{}, err
	}

	now := time.Now().UTC()

	purchaseDate := now
	if strings.TrimSpace(req.PurchaseDate) != "" {
		parsed, err := time.Parse("2006-01-02", req.PurchaseDate)
		if err != nil {
			return domain.IngredientLot{}, store.ErrInvalidInput
		}
		purchaseDate = parsed.UTC()
	}

	var expiryDate time.Time
	expirySource := domain.ExpirySourceExplicit
	switch {
	case strings.TrimSpace(req.ExpiryDate) != "":
		parsed, err := time.Parse("2006-01-02", req.ExpiryDate)
		if err != nil {
			return domain.IngredientLot{}, store.ErrInvalidInput
		}
		expiryDate = parsed.UTC()
	case ingredient.DefaultShelfLifeDays > 0:
		expiryDate = purchaseDate.Add(time.Duration(ingredient.DefaultShelfLifeDays) * 24 * time.Hour)
		expirySource = domain.ExpirySourceCatalogDefault
	default:
		expiryDate = purchaseDate.Add(time.Duration(s.defaultShelfLifeDays) * 24 * time.Hour)
		expirySource = domain.ExpirySourceFallbackDefault
	}

	lot, err := s.repo.CreateLot(ctx, domain.IngredientLot{
		ID:           xid.New("lot"),
		IngredientID: req.IngredientID,
		Quantity:     req.Quantity,
		CurrentStock: req.Quantity,
		Unit:         ingredient.Unit,
		ExpiryDate:   expiryDate,
		ExpirySource: expirySource,
		PurchaseDate: purchaseDate,
		Supplier:     strings.TrimSpace(req.Supplier),
		CostCents:    req.CostCents,
	})
	if err != nil {
		return domain.IngredientLot{}, err
	}

	s.logAudit(ctx, "lot_receive", "ingredient_lot", lot.ID,
		fmt.Sprintf("ingredient=%s,qty=%.3f,expiry=%s,source=%s", lot.IngredientID, lot.Quantity, lot.ExpiryDate.Format("2006-01-02"), lot.ExpirySource))
	return *lot, nil
}

func (s *Service) ListLots(ctx context.Context, ingredientID string, includeExhausted bool) ([]domain.IngredientLot, error) {
	ingredientID = strings.TrimSpace(ingredientID)
	if ingredientID == "" {
		return nil, store.ErrInvalidInput
	}
	return s.repo.ListLots(ctx, ingredientID, includeExhausted)
}

func (s *Service) ExpiringLots(ctx context.Context, days int, limit int) ([]domain.IngredientLot, error) {
	return s.engine.ExpiringLots(ctx, days, limit)
}

func (s *Service) RecommendedLots(ctx context.Context, ingredientID string, required float64) (domain.RecommendedLotsResult, error) {
	ingredientID = strings.TrimSpace(ingredientID)
	if ingredientID == "" || required < 0 {
		return domain.RecommendedLotsResult{}, store.ErrInvalidInput
	}
	return s.engine.RecommendedLots(ctx, ingredientID, required)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.PriceCents < 1 {
		return domain.Product{}, store.ErrInvalidInput
	}
	for _, component := range req.Recipe {
		if strings.TrimSpace(component.IngredientID) == "" || component.QuantityPerUnit <= 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:       req.Name,
		PriceCents: req.PriceCents,
		Recipe:     req.Recipe,
		Active:     true,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateProduct(ctx, created.Name)
	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d,components=%d", created.Name, created.PriceCents, len(created.Recipe)))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	if req.Recipe != nil {
		for _, component := range *req.Recipe {
			if strings.TrimSpace(component.IngredientID) == "" || component.QuantityPerUnit <= 0 {
				return domain.Product{}, store.ErrInvalidInput
			}
		}
		updated.Recipe = *req.Recipe
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateProduct(ctx, existing.Name)
	s.invalidateProduct(ctx, saved.Name)
	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("name=%s,active=%t,price=%d", saved.Name, saved.Active, saved.PriceCents))
	return *saved, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

// CalculateRequirements is the read-only sufficiency check exposed to the
// front office; it never reserves or deducts anything.
func (s *Service) CalculateRequirements(ctx context.Context, lines []domain.OrderLine) (domain.RequirementResult, error) {
	if len(lines) == 0 {
		return domain.RequirementResult{}, store.ErrInvalidInput
	}
	return s.calc.Calculate(ctx, lines)
}

// CreateOrder runs the requirement calculation and picks the initial status:
// sufficient orders start at New Order with stock reserved, insufficient ones
// start at Pending with no inventory side effect. The calculation snapshot is
// persisted on the order either way.
func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.Order, error) {
	if len(req.Lines) == 0 {
		return domain.Order{}, store.ErrInvalidInput
	}

	result, err := s.calc.Calculate(ctx, req.Lines)
	if err != nil {
		return domain.Order{}, err
	}

	status := domain.OrderStatusPending
	if result.AllSufficient {
		reservation, err := s.engine.Reserve(ctx, result.Requirements)
		if err != nil {
			return domain.Order{}, err
		}
		// Stock may have moved between calculation and reservation; a
		// rejected reservation parks the order as Pending.
		if reservation.Success {
			status = domain.OrderStatusNew
		}
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:           xid.New("ord"),
		CustomerName: strings.TrimSpace(req.CustomerName),
		Status:       status,
		Lines:        req.Lines,
		StockCalculation: &domain.StockCalculationMetadata{
			Requirements:  result.Requirements,
			AllSufficient: result.AllSufficient,
			Warnings:      result.Warnings,
			CalculatedAt:  now,
		},
		CreatedAt: now,
	}

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, "order_create", "order", created.ID, fmt.Sprintf("status=%s,lines=%d,sufficient=%t", created.Status, len(created.Lines), result.AllSufficient))
	return *created, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

func (s *Service) ListOrders(ctx context.Context, status string, limit int) ([]domain.Order, error) {
	return s.repo.ListOrders(ctx, strings.TrimSpace(status), limit)
}

// ReevaluateOrder retries a Pending order after restock. When the recomputed
// requirements are sufficient, stock is deducted immediately and the order
// advances to New Order; otherwise it stays Pending and the shortfall is
// returned as the error.
func (s *Service) ReevaluateOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.transitionOrder(ctx, id, eventReevaluate)
}

// StartProcessing moves an order into production: requirements are recomputed,
// stock is deducted lot by lot, and the creation-time reservation is released.
func (s *Service) StartProcessing(ctx context.Context, id string) (domain.Order, error) {
	return s.transitionOrder(ctx, id, eventStartProcessing)
}

func (s *Service) CompleteOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.transitionOrder(ctx, id, eventComplete)
}

func (s *Service) CancelOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.transitionOrder(ctx, id, eventCancel)
}

func (s *Service) transitionOrder(ctx context.Context, id string, event orderEvent) (domain.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Order{}, store.ErrInvalidInput
	}

	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	tr, legal := orderTransitions[transitionKey{status: order.Status, event: event}]
	if !legal {
		return domain.Order{}, fmt.Errorf("%w: cannot %s an order in status %q", store.ErrInvalidInput, event, order.Status)
	}

	switch tr.effect {
	case effectDeduct, effectDeductAndRelease:
		result, err := s.calc.Calculate(ctx, order.Lines)
		if err != nil {
			return domain.Order{}, err
		}
		deduction, err := s.engine.DeductForOrder(ctx, result.Requirements)
		if err != nil {
			return domain.Order{}, err
		}
		if deduction.LotUsage != nil {
			order.LotUsage = deduction.LotUsage
		}
		order.StockCalculation = &domain.StockCalculationMetadata{
			Requirements:  result.Requirements,
			AllSufficient: result.AllSufficient,
			Warnings:      result.Warnings,
			CalculatedAt:  time.Now().UTC(),
		}
		if tr.effect == effectDeductAndRelease {
			if _, err := s.engine.Release(ctx, result.Requirements); err != nil {
				return domain.Order{}, err
			}
		}
	case effectReleaseReservation:
		if order.StockCalculation != nil {
			if _, err := s.engine.Release(ctx, order.StockCalculation.Requirements); err != nil {
				return domain.Order{}, err
			}
		}
	case effectNone:
	}

	order.Status = tr.next
	saved, err := s.repo.UpdateOrder(ctx, *order)
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, "order_"+string(event), "order", saved.ID, fmt.Sprintf("status=%s", saved.Status))
	return *saved, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidInput
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.String("entity_id", entityID), zap.Error(err))
	}
}
