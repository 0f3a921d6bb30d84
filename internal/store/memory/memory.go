package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"rotiku/backend/internal/allocation"
	"rotiku/backend/internal/domain"
	"rotiku/backend/internal/store"
	"rotiku/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	ingredients     map[string]domain.Ingredient
	lotsByIng       map[string][]domain.IngredientLot
	productsByID    map[string]domain.Product
	ordersByID      map[string]domain.Order
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD; unset
// variables fall back to hardcoded dev defaults with a warning. The memory
// store is never used when DATABASE_URL is set.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"staff", staffPwd, "staff"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		ingredients:     make(map[string]domain.Ingredient),
		lotsByIng:       make(map[string][]domain.IngredientLot),
		productsByID:    make(map[string]domain.Product),
		ordersByID:      make(map[string]domain.Order),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

// NewSeeded returns a store preloaded with a small bakery fixture set:
// ingredients with lots at staggered expiries, and products with recipes.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	day := 24 * time.Hour

	ingredients := []domain.Ingredient{
		{ID: "ing-tepung", Name: "Tepung Terigu", Unit: "kg", MinimumStock: 10, DefaultShelfLifeDays: 180},
		{ID: "ing-gula", Name: "Gula Pasir", Unit: "kg", MinimumStock: 5, DefaultShelfLifeDays: 365},
		{ID: "ing-mentega", Name: "Mentega", Unit: "kg", MinimumStock: 3, DefaultShelfLifeDays: 90},
		{ID: "ing-telur", Name: "Telur", Unit: "butir", MinimumStock: 30, DefaultShelfLifeDays: 21},
		{ID: "ing-ragi", Name: "Ragi Instan", Unit: "kg", MinimumStock: 1, DefaultShelfLifeDays: 120},
		{ID: "ing-coklat", Name: "Coklat Bubuk", Unit: "kg", MinimumStock: 2, DefaultShelfLifeDays: 240},
	}
	lots := []domain.IngredientLot{
		{ID: "lot-tepung-1", IngredientID: "ing-tepung", Quantity: 20, CurrentStock: 20, Unit: "kg", ExpiryDate: now.Add(150 * day), ExpirySource: domain.ExpirySourceExplicit, PurchaseDate: now.Add(-3 * day), Supplier: "PT Boga Sari"},
		{ID: "lot-tepung-2", IngredientID: "ing-tepung", Quantity: 15, CurrentStock: 15, Unit: "kg", ExpiryDate: now.Add(120 * day), ExpirySource: domain.ExpirySourceExplicit, PurchaseDate: now.Add(-10 * day), Supplier: "PT Boga Sari"},
		{ID: "lot-tepung-3", IngredientID: "ing-tepung", Quantity: 6, CurrentStock: 6, Unit: "kg", ExpiryDate: now.Add(90 * day), ExpirySource: domain.ExpirySourceCatalogDefault, PurchaseDate: now.Add(-20 * day)},
		{ID: "lot-gula-1", IngredientID: "ing-gula", Quantity: 12, CurrentStock: 12, Unit: "kg", ExpiryDate: now.Add(300 * day), ExpirySource: domain.ExpirySourceExplicit, PurchaseDate: now.Add(-5 * day)},
		{ID: "lot-mentega-1", IngredientID: "ing-mentega", Quantity: 8, CurrentStock: 8, Unit: "kg", ExpiryDate: now.Add(45 * day), ExpirySource: domain.ExpirySourceExplicit, PurchaseDate: now.Add(-2 * day), Supplier: "CV Susu Segar"},
		{ID: "lot-telur-1", IngredientID: "ing-telur", Quantity: 90, CurrentStock: 90, Unit: "butir", ExpiryDate: now.Add(14 * day), ExpirySource: domain.ExpirySourceCatalogDefault, PurchaseDate: now.Add(-1 * day)},
		{ID: "lot-ragi-1", IngredientID: "ing-ragi", Quantity: 2, CurrentStock: 2, Unit: "kg", ExpiryDate: now.Add(100 * day), ExpirySource: domain.ExpirySourceFallbackDefault, PurchaseDate: now.Add(-7 * day)},
	}

	for _, ing := range ingredients {
		ing.CreatedAt = now
		ing.UpdatedAt = now
		s.ingredients[ing.ID] = ing
	}
	for _, l := range lots {
		s.lotsByIng[l.IngredientID] = append(s.lotsByIng[l.IngredientID], l)
		ing := s.ingredients[l.IngredientID]
		ing.CurrentStock += l.CurrentStock
		s.ingredients[l.IngredientID] = ing
	}

	// Coklat Bubuk deliberately has no lot records to cover the legacy
	// direct-decrement path.
	coklat := s.ingredients["ing-coklat"]
	coklat.CurrentStock = 4
	s.ingredients["ing-coklat"] = coklat

	products := []domain.Product{
		{ID: "prd-roti-tawar", Name: "Roti Tawar", PriceCents: 18000, Active: true, CreatedAt: now, Recipe: []domain.RecipeComponent{
			{IngredientID: "ing-tepung", QuantityPerUnit: 0.5, Unit: "kg"},
			{IngredientID: "ing-gula", QuantityPerUnit: 0.05, Unit: "kg"},
			{IngredientID: "ing-ragi", QuantityPerUnit: 0.01, Unit: "kg"},
		}},
		{ID: "prd-croissant", Name: "Croissant", PriceCents: 12000, Active: true, CreatedAt: now, Recipe: []domain.RecipeComponent{
			{IngredientID: "ing-tepung", QuantityPerUnit: 0.08, Unit: "kg"},
			{IngredientID: "ing-mentega", QuantityPerUnit: 0.05, Unit: "kg"},
			{IngredientID: "ing-telur", QuantityPerUnit: 1, Unit: "butir"},
		}},
		{ID: "prd-brownies", Name: "Brownies", PriceCents: 35000, Active: true, CreatedAt: now, Recipe: []domain.RecipeComponent{
			{IngredientID: "ing-tepung", QuantityPerUnit: 0.2, Unit: "kg"},
			{IngredientID: "ing-coklat", QuantityPerUnit: 0.1, Unit: "kg"},
			{IngredientID: "ing-telur", QuantityPerUnit: 3, Unit: "butir"},
		}},
	}
	for _, p := range products {
		s.productsByID[p.ID] = p
	}

	return s
}

func (s *Store) CreateIngredient(_ context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(ingredient.Name) == "" || strings.TrimSpace(ingredient.Unit) == "" {
		return nil, store.ErrInvalidInput
	}
	if ingredient.MinimumStock < 0 || ingredient.CurrentStock < 0 || ingredient.ReservedStock < 0 {
		return nil, store.ErrInvalidInput
	}
	if ingredient.ID == "" {
		ingredient.ID = xid.New("ing")
	}
	if _, exists := s.ingredients[ingredient.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	now := time.Now().UTC()
	if ingredient.CreatedAt.IsZero() {
		ingredient.CreatedAt = now
	}
	ingredient.UpdatedAt = now

	s.ingredients[ingredient.ID] = ingredient
	created := ingredient
	return &created, nil
}

func (s *Store) GetIngredient(_ context.Context, id string) (*domain.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ingredient, exists := s.ingredients[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := ingredient
	return &copied, nil
}

func (s *Store) ListIngredients(_ context.Context) ([]domain.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ingredients := make([]domain.Ingredient, 0, len(s.ingredients))
	for _, ing := range s.ingredients {
		ingredients = append(ingredients, ing)
	}
	slices.SortFunc(ingredients, func(a, b domain.Ingredient) int {
		return cmpString(a.Name, b.Name)
	})
	return ingredients, nil
}

func (s *Store) CreateLot(_ context.Context, lot domain.IngredientLot) (*domain.IngredientLot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lot.IngredientID == "" || lot.Quantity <= 0 {
		return nil, store.ErrInvalidInput
	}
	ingredient, exists := s.ingredients[lot.IngredientID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if lot.ID == "" {
		lot.ID = xid.New("lot")
	}
	if lot.CurrentStock == 0 {
		lot.CurrentStock = lot.Quantity
	}
	if lot.CurrentStock < 0 || lot.CurrentStock > lot.Quantity {
		return nil, store.ErrInvalidInput
	}
	if lot.Unit == "" {
		lot.Unit = ingredient.Unit
	}
	if lot.PurchaseDate.IsZero() {
		lot.PurchaseDate = time.Now().UTC()
	}
	if lot.ExpiryDate.IsZero() || lot.ExpirySource == "" {
		return nil, store.ErrInvalidInput
	}

	s.lotsByIng[lot.IngredientID] = append(s.lotsByIng[lot.IngredientID], lot)
	ingredient.CurrentStock += lot.CurrentStock
	ingredient.UpdatedAt = time.Now().UTC()
	s.ingredients[lot.IngredientID] = ingredient

	created := lot
	return &created, nil
}

func (s *Store) ListLots(_ context.Context, ingredientID string, includeExhausted bool) ([]domain.IngredientLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.ingredients[ingredientID]; !exists {
		return nil, store.ErrNotFound
	}

	lots := make([]domain.IngredientLot, 0, len(s.lotsByIng[ingredientID]))
	for _, lot := range s.lotsByIng[ingredientID] {
		if !includeExhausted && lot.CurrentStock <= 0 {
			continue
		}
		lots = append(lots, lot)
	}
	allocation.SortFEFO(lots)
	return lots, nil
}

func (s *Store) ListLotsExpiringWithin(_ context.Context, days int, limit int) ([]domain.IngredientLot, error) {
	if days < 0 {
		return nil, store.ErrInvalidInput
	}
	if limit < 1 {
		limit = 200
	}
	cutoff := time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour)

	s.mu.RLock()
	defer s.mu.RUnlock()

	lots := make([]domain.IngredientLot, 0, 32)
	for _, ingLots := range s.lotsByIng {
		for _, lot := range ingLots {
			if lot.CurrentStock <= 0 {
				continue
			}
			if !lot.ExpiryDate.After(cutoff) {
				lots = append(lots, lot)
			}
		}
	}
	allocation.SortFEFO(lots)
	if len(lots) > limit {
		lots = lots[:limit]
	}
	return lots, nil
}

func (s *Store) ReserveStock(_ context.Context, demands []domain.StockDemand) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	shortfalls := make([]store.Shortfall, 0)
	for _, demand := range demands {
		if demand.Quantity <= 0 {
			return store.ErrInvalidInput
		}
		ingredient, exists := s.ingredients[demand.IngredientID]
		if !exists {
			return store.ErrNotFound
		}
		available := ingredient.CurrentStock - ingredient.ReservedStock
		if available < demand.Quantity {
			shortfalls = append(shortfalls, store.Shortfall{
				IngredientID: demand.IngredientID,
				Requested:    demand.Quantity,
				Available:    available,
			})
		}
	}
	if len(shortfalls) > 0 {
		return &store.InsufficientStockError{Shortfalls: shortfalls}
	}

	now := time.Now().UTC()
	for _, demand := range demands {
		ingredient := s.ingredients[demand.IngredientID]
		ingredient.ReservedStock += demand.Quantity
		ingredient.UpdatedAt = now
		s.ingredients[demand.IngredientID] = ingredient
	}
	return nil
}

func (s *Store) ReleaseStock(_ context.Context, demands []domain.StockDemand) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	clamped := make([]string, 0)
	for _, demand := range demands {
		if demand.Quantity <= 0 {
			return nil, store.ErrInvalidInput
		}
		ingredient, exists := s.ingredients[demand.IngredientID]
		if !exists {
			return nil, store.ErrNotFound
		}
		next := ingredient.ReservedStock - demand.Quantity
		if next < 0 {
			next = 0
			clamped = append(clamped, demand.IngredientID)
		}
		ingredient.ReservedStock = next
		ingredient.UpdatedAt = now
		s.ingredients[demand.IngredientID] = ingredient
	}
	return clamped, nil
}

func (s *Store) DeductStock(_ context.Context, demands []domain.StockDemand) (*domain.DeductionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	result := &domain.DeductionResult{
		DeductedIngredients: make([]domain.DeductedIngredient, 0, len(demands)),
	}
	usages := make([]domain.LotUsage, 0, len(demands))

	for _, demand := range demands {
		if demand.Quantity <= 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: invalid quantity", demand.IngredientID))
			continue
		}
		ingredient, exists := s.ingredients[demand.IngredientID]
		if !exists {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: ingredient not found", demand.IngredientID))
			continue
		}

		lots := s.lotsByIng[demand.IngredientID]
		if len(lots) == 0 {
			// Legacy ingredient without lot tracking: direct conditional
			// decrement, no usage entry.
			if ingredient.CurrentStock < demand.Quantity {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: insufficient stock", demand.IngredientID))
				continue
			}
			ingredient.CurrentStock -= demand.Quantity
			ingredient.UpdatedAt = now
			s.ingredients[demand.IngredientID] = ingredient
			result.DeductedIngredients = append(result.DeductedIngredients, domain.DeductedIngredient{
				IngredientID: demand.IngredientID,
				Deducted:     demand.Quantity,
				NewStock:     ingredient.CurrentStock,
			})
			continue
		}

		plan := allocation.Select(lots, demand.Quantity, now)
		if plan.Shortfall > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: insufficient lot stock, short %.3f", demand.IngredientID, plan.Shortfall))
			continue
		}

		for _, alloc := range plan.Allocations {
			for i := range lots {
				if lots[i].ID != alloc.LotID {
					continue
				}
				lots[i].CurrentStock -= alloc.Quantity
				break
			}
			usages = append(usages, domain.LotUsage{
				LotID:        alloc.LotID,
				IngredientID: demand.IngredientID,
				Quantity:     alloc.Quantity,
				ExpiryDate:   alloc.ExpiryDate,
				FullyUsed:    alloc.FullyUsed,
			})
		}
		s.lotsByIng[demand.IngredientID] = lots

		// Re-derive the aggregate from the lot sum under the same lock.
		sum := 0.0
		for _, lot := range lots {
			sum += lot.CurrentStock
		}
		ingredient.CurrentStock = sum
		ingredient.UpdatedAt = now
		s.ingredients[demand.IngredientID] = ingredient

		result.DeductedIngredients = append(result.DeductedIngredients, domain.DeductedIngredient{
			IngredientID: demand.IngredientID,
			Deducted:     demand.Quantity,
			NewStock:     sum,
		})
	}

	if len(usages) > 0 {
		result.LotUsage = &domain.LotUsageMetadata{LotsUsed: usages, DeductedAt: now}
	}
	result.Success = len(result.Errors) == 0
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(product.Name) == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.productsByID {
		if strings.EqualFold(existing.Name, product.Name) {
			return nil, store.ErrInvalidInput
		}
	}
	for _, component := range product.Recipe {
		if _, exists := s.ingredients[component.IngredientID]; !exists {
			return nil, store.ErrNotFound
		}
		if component.QuantityPerUnit <= 0 {
			return nil, store.ErrInvalidInput
		}
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.Active = true

	s.productsByID[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.productsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := product
	return &copied, nil
}

func (s *Store) GetProductByName(_ context.Context, name string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, product := range s.productsByID {
		if strings.EqualFold(product.Name, strings.TrimSpace(name)) {
			copied := product
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(product.Name) == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.productsByID[product.ID]; !exists {
		return nil, store.ErrNotFound
	}
	for _, component := range product.Recipe {
		if _, exists := s.ingredients[component.IngredientID]; !exists {
			return nil, store.ErrNotFound
		}
	}

	s.productsByID[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, product := range s.productsByID {
		if !product.Active {
			continue
		}
		products = append(products, product)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(order.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	s.ordersByID[order.ID] = order
	created := order
	return &created, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.ordersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := order
	return &copied, nil
}

func (s *Store) UpdateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ordersByID[order.ID]; !exists {
		return nil, store.ErrNotFound
	}
	order.UpdatedAt = time.Now().UTC()
	s.ordersByID[order.ID] = order
	updated := order
	return &updated, nil
}

func (s *Store) ListOrders(_ context.Context, status string, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0, len(s.ordersByID))
	for _, order := range s.ordersByID {
		if status != "" && order.Status != status {
			continue
		}
		orders = append(orders, order)
	}
	slices.SortFunc(orders, func(a, b domain.Order) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, limit)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
	}
	slices.SortFunc(logs, func(a, b domain.AuditLog) int {
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return 1
		}
		return cmpString(b.ID, a.ID)
	})
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidInput
	}
	user.Username = username
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	if strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
