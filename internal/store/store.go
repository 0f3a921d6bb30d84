package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rotiku/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Shortfall reports one ingredient whose available stock could not cover a
// requested quantity.
type Shortfall struct {
	IngredientID string
	Requested    float64
	Available    float64
}

// InsufficientStockError carries the full shortfall list for a rejected
// reserve or deduct batch. It unwraps to ErrInsufficientStock.
type InsufficientStockError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s: requested %.3f, available %.3f", s.IngredientID, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

type Repository interface {
	CreateIngredient(ctx context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error)
	GetIngredient(ctx context.Context, id string) (*domain.Ingredient, error)
	ListIngredients(ctx context.Context) ([]domain.Ingredient, error)

	CreateLot(ctx context.Context, lot domain.IngredientLot) (*domain.IngredientLot, error)
	ListLots(ctx context.Context, ingredientID string, includeExhausted bool) ([]domain.IngredientLot, error)
	ListLotsExpiringWithin(ctx context.Context, days int, limit int) ([]domain.IngredientLot, error)

	// ReserveStock validates every demand against available stock
	// (current - reserved) and applies all of them in one unit, or applies
	// nothing and returns an *InsufficientStockError.
	ReserveStock(ctx context.Context, demands []domain.StockDemand) error
	// ReleaseStock decrements reservations, clamping each at zero, and
	// reports which ingredients were clamped.
	ReleaseStock(ctx context.Context, demands []domain.StockDemand) ([]string, error)
	// DeductStock consumes lots in expiry order and re-derives each
	// ingredient aggregate from its lot sum in the same unit of work.
	// Ingredients without lot records are decremented directly. A demand
	// whose live lot total falls short is skipped with an error recorded
	// while the rest of the batch still commits.
	DeductStock(ctx context.Context, demands []domain.StockDemand) (*domain.DeductionResult, error)

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByName(ctx context.Context, name string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)

	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	UpdateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	ListOrders(ctx context.Context, status string, limit int) ([]domain.Order, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
