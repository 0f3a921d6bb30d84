package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"rotiku/backend/internal/allocation"
	"rotiku/backend/internal/domain"
	"rotiku/backend/internal/store"
	"rotiku/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateIngredient(ctx context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error) {
	ingredient.Name = strings.TrimSpace(ingredient.Name)
	ingredient.Unit = strings.TrimSpace(ingredient.Unit)
	if ingredient.Name == "" || ingredient.Unit == "" {
		return nil, store.ErrInvalidInput
	}
	if ingredient.MinimumStock < 0 || ingredient.CurrentStock < 0 || ingredient.ReservedStock < 0 {
		return nil, store.ErrInvalidInput
	}
	if ingredient.ID == "" {
		ingredient.ID = xid.New("ing")
	}
	now := time.Now().UTC()
	if ingredient.CreatedAt.IsZero() {
		ingredient.CreatedAt = now
	}
	ingredient.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingredients (
			id, name, unit, current_stock, reserved_stock, minimum_stock,
			default_shelf_life_days, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, ingredient.ID, ingredient.Name, ingredient.Unit, ingredient.CurrentStock, ingredient.ReservedStock,
		ingredient.MinimumStock, ingredient.DefaultShelfLifeDays, ingredient.CreatedAt, ingredient.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := ingredient
	return &created, nil
}

func (s *Store) GetIngredient(ctx context.Context, id string) (*domain.Ingredient, error) {
	var ingredient domain.Ingredient
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, unit, current_stock, reserved_stock, minimum_stock,
			default_shelf_life_days, created_at, updated_at
		FROM ingredients
		WHERE id = $1
	`, id).Scan(
		&ingredient.ID,
		&ingredient.Name,
		&ingredient.Unit,
		&ingredient.CurrentStock,
		&ingredient.ReservedStock,
		&ingredient.MinimumStock,
		&ingredient.DefaultShelfLifeDays,
		&ingredient.CreatedAt,
		&ingredient.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	ingredient.CreatedAt = ingredient.CreatedAt.UTC()
	ingredient.UpdatedAt = ingredient.UpdatedAt.UTC()
	return &ingredient, nil
}

func (s *Store) ListIngredients(ctx context.Context) ([]domain.Ingredient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, unit, current_stock, reserved_stock, minimum_stock,
			default_shelf_life_days, created_at, updated_at
		FROM ingredients
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ingredients := make([]domain.Ingredient, 0, 64)
	for rows.Next() {
		var ingredient domain.Ingredient
		if err := rows.Scan(
			&ingredient.ID,
			&ingredient.Name,
			&ingredient.Unit,
			&ingredient.CurrentStock,
			&ingredient.ReservedStock,
			&ingredient.MinimumStock,
			&ingredient.DefaultShelfLifeDays,
			&ingredient.CreatedAt,
			&ingredient.UpdatedAt,
		); err != nil {
			return nil, err
		}
		ingredient.CreatedAt = ingredient.CreatedAt.UTC()
		ingredient.UpdatedAt = ingredient.UpdatedAt.UTC()
		ingredients = append(ingredients, ingredient)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ingredients, nil
}

func (s *Store) CreateLot(ctx context.Context, lot domain.IngredientLot) (*domain.IngredientLot, error) {
	if strings.TrimSpace(lot.IngredientID) == "" || lot.Quantity <= 0 {
		return nil, store.ErrInvalidInput
	}
	if lot.ExpiryDate.IsZero() || lot.ExpirySource == "" {
		return nil, store.ErrInvalidInput
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
	if lot.PurchaseDate.IsZero() {
		lot.PurchaseDate = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var unit string
	err = tx.QueryRowContext(ctx, `
		SELECT unit FROM ingredients WHERE id = $1 FOR UPDATE
	`, lot.IngredientID).Scan(&unit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if lot.Unit == "" {
		lot.Unit = unit
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ingredient_lots (
			id, ingredient_id, quantity, current_stock, unit, expiry_date,
			expiry_source, purchase_date, supplier, cost_cents, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
	`, lot.ID, lot.IngredientID, lot.Quantity, lot.CurrentStock, lot.Unit, lot.ExpiryDate,
		lot.ExpirySource, lot.PurchaseDate, nullIfEmpty(lot.Supplier), lot.CostCents)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE ingredients
		SET current_stock = current_stock + $1, updated_at = now()
		WHERE id = $2
	`, lot.CurrentStock, lot.IngredientID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := lot
	return &created, nil
}

func (s *Store) ListLots(ctx context.Context, ingredientID string, includeExhausted bool) ([]domain.IngredientLot, error) {
	if strings.TrimSpace(ingredientID) == "" {
		return nil, store.ErrInvalidInput
	}

	query := `
		SELECT id, ingredient_id, quantity, current_stock, unit, expiry_date,
			expiry_source, purchase_date, supplier, cost_cents
		FROM ingredient_lots
		WHERE ingredient_id = $1
	`
	if !includeExhausted {
		query += ` AND current_stock > 0`
	}
	query += `
		ORDER BY expiry_date ASC, purchase_date ASC
	`

	rows, err := s.db.QueryContext(ctx, query, ingredientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lots, err := scanLots(rows)
	if err != nil {
		return nil, err
	}
	if len(lots) == 0 {
		if _, err := s.GetIngredient(ctx, ingredientID); err != nil {
			return nil, err
		}
	}
	return lots, nil
}

func (s *Store) ListLotsExpiringWithin(ctx context.Context, days int, limit int) ([]domain.IngredientLot, error) {
	if days < 0 {
		return nil, store.ErrInvalidInput
	}
	if limit < 1 {
		limit = 200
	}
	cutoff := time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ingredient_id, quantity, current_stock, unit, expiry_date,
			expiry_source, purchase_date, supplier, cost_cents
		FROM ingredient_lots
		WHERE current_stock > 0 AND expiry_date <= $1
		ORDER BY expiry_date ASC, purchase_date ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLots(rows)
}

func (s *Store) ReserveStock(ctx context.Context, demands []domain.StockDemand) error {
	ids, err := demandIDs(demands)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	available, err := lockAvailability(ctx, tx, ids)
	if err != nil {
		return err
	}

	shortfalls := make([]store.Shortfall, 0)
	for _, demand := range demands {
		avail, exists := available[demand.IngredientID]
		if !exists {
			return store.ErrNotFound
		}
		if avail < demand.Quantity {
			shortfalls = append(shortfalls, store.Shortfall{
				IngredientID: demand.IngredientID,
				Requested:    demand.Quantity,
				Available:    avail,
			})
		}
	}
	if len(shortfalls) > 0 {
		return &store.InsufficientStockError{Shortfalls: shortfalls}
	}

	for _, demand := range demands {
		_, err := tx.ExecContext(ctx, `
			UPDATE ingredients
			SET reserved_stock = reserved_stock + $1, updated_at = now()
			WHERE id = $2
		`, demand.Quantity, demand.IngredientID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) ReleaseStock(ctx context.Context, demands []domain.StockDemand) ([]string, error) {
	ids, err := demandIDs(demands)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	reserved := make(map[string]float64, len(ids))
	rows, err := tx.QueryContext(ctx, `
		SELECT id, reserved_stock
		FROM ingredients
		WHERE id = ANY($1)
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id string
		var amount float64
		if err := rows.Scan(&id, &amount); err != nil {
			_ = rows.Close()
			return nil, err
		}
		reserved[id] = amount
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	clamped := make([]string, 0)
	for _, demand := range demands {
		amount, exists := reserved[demand.IngredientID]
		if !exists {
			return nil, store.ErrNotFound
		}
		if amount < demand.Quantity {
			clamped = append(clamped, demand.IngredientID)
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE ingredients
			SET reserved_stock = GREATEST(reserved_stock - $1, 0), updated_at = now()
			WHERE id = $2
		`, demand.Quantity, demand.IngredientID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return clamped, nil
}

func (s *Store) DeductStock(ctx context.Context, demands []domain.StockDemand) (*domain.DeductionResult, error) {
	if len(demands) == 0 {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

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

		var currentStock float64
		err := tx.QueryRowContext(ctx, `
			SELECT current_stock FROM ingredients WHERE id = $1 FOR UPDATE
		`, demand.IngredientID).Scan(&currentStock)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: ingredient not found", demand.IngredientID))
				continue
			}
			return nil, err
		}

		lotRows, err := tx.QueryContext(ctx, `
			SELECT id, ingredient_id, quantity, current_stock, unit, expiry_date,
				expiry_source, purchase_date, supplier, cost_cents
			FROM ingredient_lots
			WHERE ingredient_id = $1
			ORDER BY expiry_date ASC, purchase_date ASC
			FOR UPDATE
		`, demand.IngredientID)
		if err != nil {
			return nil, err
		}
		lots, err := scanLots(lotRows)
		_ = lotRows.Close()
		if err != nil {
			return nil, err
		}

		if len(lots) == 0 {
			// Legacy ingredient without lot tracking: direct conditional
			// decrement, no usage entry.
			var newStock float64
			err := tx.QueryRowContext(ctx, `
				UPDATE ingredients
				SET current_stock = current_stock - $1, updated_at = now()
				WHERE id = $2 AND current_stock >= $1
				RETURNING current_stock
			`, demand.Quantity, demand.IngredientID).Scan(&newStock)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					result.Errors = append(result.Errors, fmt.Sprintf("%s: insufficient stock", demand.IngredientID))
					continue
				}
				return nil, err
			}
			result.DeductedIngredients = append(result.DeductedIngredients, domain.DeductedIngredient{
				IngredientID: demand.IngredientID,
				Deducted:     demand.Quantity,
				NewStock:     newStock,
			})
			continue
		}

		plan := allocation.Select(lots, demand.Quantity, now)
		if plan.Shortfall > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: insufficient lot stock, short %.3f", demand.IngredientID, plan.Shortfall))
			continue
		}

		for _, alloc := range plan.Allocations {
			_, err := tx.ExecContext(ctx, `
				UPDATE ingredient_lots
				SET current_stock = current_stock - $1, updated_at = now()
				WHERE id = $2
			`, alloc.Quantity, alloc.LotID)
			if err != nil {
				return nil, err
			}
			usages = append(usages, domain.LotUsage{
				LotID:        alloc.LotID,
				IngredientID: demand.IngredientID,
				Quantity:     alloc.Quantity,
				ExpiryDate:   alloc.ExpiryDate,
				FullyUsed:    alloc.FullyUsed,
			})
		}

		// Re-derive the aggregate from the lot sum inside this transaction.
		var newStock float64
		err = tx.QueryRowContext(ctx, `
			UPDATE ingredients
			SET current_stock = (
				SELECT COALESCE(SUM(current_stock), 0)
				FROM ingredient_lots
				WHERE ingredient_id = $1
			), updated_at = now()
			WHERE id = $1
			RETURNING current_stock
		`, demand.IngredientID).Scan(&newStock)
		if err != nil {
			return nil, err
		}

		result.DeductedIngredients = append(result.DeductedIngredients, domain.DeductedIngredient{
			IngredientID: demand.IngredientID,
			Deducted:     demand.Quantity,
			NewStock:     newStock,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if len(usages) > 0 {
		result.LotUsage = &domain.LotUsageMetadata{LotsUsed: usages, DeductedAt: now}
	}
	result.Success = len(result.Errors) == 0
	return result, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	for _, component := range product.Recipe {
		if component.IngredientID == "" || component.QuantityPerUnit <= 0 {
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

	recipeJSON, err := json.Marshal(product.Recipe)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price_cents, active, recipe, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, product.ID, product.Name, product.PriceCents, product.Active, recipeJSON, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	var recipeJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price_cents, active, recipe, created_at
		FROM products
		WHERE id = $1
	`, id).Scan(
		&product.ID,
		&product.Name,
		&product.PriceCents,
		&product.Active,
		&recipeJSON,
		&product.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if len(recipeJSON) > 0 {
		if err := json.Unmarshal(recipeJSON, &product.Recipe); err != nil {
			return nil, err
		}
	}
	product.CreatedAt = product.CreatedAt.UTC()
	return &product, nil
}

func (s *Store) GetProductByName(ctx context.Context, name string) (*domain.Product, error) {
	var product domain.Product
	var recipeJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price_cents, active, recipe, created_at
		FROM products
		WHERE lower(name) = lower($1)
	`, strings.TrimSpace(name)).Scan(
		&product.ID,
		&product.Name,
		&product.PriceCents,
		&product.Active,
		&recipeJSON,
		&product.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if len(recipeJSON) > 0 {
		if err := json.Unmarshal(recipeJSON, &product.Recipe); err != nil {
			return nil, err
		}
	}
	product.CreatedAt = product.CreatedAt.UTC()
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.ID == "" || product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}

	recipeJSON, err := json.Marshal(product.Recipe)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, price_cents = $3, active = $4, recipe = $5, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, product.PriceCents, product.Active, recipeJSON)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price_cents, active, recipe, created_at
		FROM products
		WHERE active = true
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var product domain.Product
		var recipeJSON []byte
		if err := rows.Scan(&product.ID, &product.Name, &product.PriceCents, &product.Active, &recipeJSON, &product.CreatedAt); err != nil {
			return nil, err
		}
		if len(recipeJSON) > 0 {
			if err := json.Unmarshal(recipeJSON, &product.Recipe); err != nil {
				return nil, err
			}
		}
		product.CreatedAt = product.CreatedAt.UTC()
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
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

	linesJSON, err := json.Marshal(order.Lines)
	if err != nil {
		return nil, err
	}
	calcJSON, err := marshalNullable(order.StockCalculation)
	if err != nil {
		return nil, err
	}
	usageJSON, err := marshalNullable(order.LotUsage)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, customer_name, status, lines, stock_calculation, lot_usage, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, order.ID, nullIfEmpty(order.CustomerName), order.Status, linesJSON, calcJSON, usageJSON, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := order
	return &created, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(customer_name,''), status, lines, stock_calculation, lot_usage, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id)
	return scanOrder(row)
}

func (s *Store) UpdateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if order.ID == "" {
		return nil, store.ErrInvalidInput
	}
	order.UpdatedAt = time.Now().UTC()

	linesJSON, err := json.Marshal(order.Lines)
	if err != nil {
		return nil, err
	}
	calcJSON, err := marshalNullable(order.StockCalculation)
	if err != nil {
		return nil, err
	}
	usageJSON, err := marshalNullable(order.LotUsage)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET customer_name = $2, status = $3, lines = $4, stock_calculation = $5, lot_usage = $6, updated_at = $7
		WHERE id = $1
	`, order.ID, nullIfEmpty(order.CustomerName), order.Status, linesJSON, calcJSON, usageJSON, order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := order
	return &updated, nil
}

func (s *Store) ListOrders(ctx context.Context, status string, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(customer_name,''), status, lines, stock_calculation, lot_usage, created_at, updated_at
		FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, limit)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1
			AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var linesJSON []byte
	var calcJSON []byte
	var usageJSON []byte
	err := row.Scan(
		&order.ID,
		&order.CustomerName,
		&order.Status,
		&linesJSON,
		&calcJSON,
		&usageJSON,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if len(linesJSON) > 0 {
		if err := json.Unmarshal(linesJSON, &order.Lines); err != nil {
			return nil, err
		}
	}
	if len(calcJSON) > 0 {
		if err := json.Unmarshal(calcJSON, &order.StockCalculation); err != nil {
			return nil, err
		}
	}
	if len(usageJSON) > 0 {
		if err := json.Unmarshal(usageJSON, &order.LotUsage); err != nil {
			return nil, err
		}
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return &order, nil
}

func scanLots(rows *sql.Rows) ([]domain.IngredientLot, error) {
	lots := make([]domain.IngredientLot, 0, 16)
	for rows.Next() {
		var lot domain.IngredientLot
		var supplier sql.NullString
		if err := rows.Scan(
			&lot.ID,
			&lot.IngredientID,
			&lot.Quantity,
			&lot.CurrentStock,
			&lot.Unit,
			&lot.ExpiryDate,
			&lot.ExpirySource,
			&lot.PurchaseDate,
			&supplier,
			&lot.CostCents,
		); err != nil {
			return nil, err
		}
		if supplier.Valid {
			lot.Supplier = supplier.String
		}
		lot.ExpiryDate = lot.ExpiryDate.UTC()
		lot.PurchaseDate = lot.PurchaseDate.UTC()
		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lots, nil
}

func lockAvailability(ctx context.Context, tx *sql.Tx, ids []string) (map[string]float64, error) {
	available := make(map[string]float64, len(ids))
	rows, err := tx.QueryContext(ctx, `
		SELECT id, current_stock - reserved_stock
		FROM ingredients
		WHERE id = ANY($1)
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var avail float64
		if err := rows.Scan(&id, &avail); err != nil {
			return nil, err
		}
		available[id] = avail
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return available, nil
}

func demandIDs(demands []domain.StockDemand) ([]string, error) {
	if len(demands) == 0 {
		return nil, store.ErrInvalidInput
	}
	ids := make([]string, 0, len(demands))
	for _, demand := range demands {
		if demand.IngredientID == "" || demand.Quantity <= 0 {
			return nil, store.ErrInvalidInput
		}
		ids = append(ids, demand.IngredientID)
	}
	return ids, nil
}

func marshalNullable(v any) (any, error) {
	switch val := v.(type) {
	case *domain.StockCalculationMetadata:
		if val == nil {
			return nil, nil
		}
	case *domain.LotUsageMetadata:
		if val == nil {
			return nil, nil
		}
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
