package domain

import "time"

type Ingredient struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Unit                 string    `json:"unit"`
	CurrentStock         float64   `json:"current_stock"`
	ReservedStock        float64   `json:"reserved_stock"`
	MinimumStock         float64   `json:"minimum_stock"`
	DefaultShelfLifeDays int       `json:"default_shelf_life_days,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type IngredientCreateRequest struct {
	Name                 string  `json:"name"`
	Unit                 string  `json:"unit"`
	MinimumStock         float64 `json:"minimum_stock"`
	DefaultShelfLifeDays int     `json:"default_shelf_life_days,omitempty"`
}

// IngredientLot is one purchased batch of an ingredient. CurrentStock only
// ever decreases after creation; an exhausted lot (CurrentStock == 0) is
// retained for audit and never allocated from again.
type IngredientLot struct {
	ID           string    `json:"id"`
	IngredientID string    `json:"ingredient_id"`
	Quantity     float64   `json:"quantity"`
	CurrentStock float64   `json:"current_stock"`
	Unit         string    `json:"unit"`
	ExpiryDate   time.Time `json:"expiry_date"`
	ExpirySource string    `json:"expiry_source"`
	PurchaseDate time.Time `json:"purchase_date"`
	Supplier     string    `json:"supplier,omitempty"`
	CostCents    int64     `json:"cost_cents,omitempty"`
}

type LotReceiveRequest struct {
	IngredientID string  `json:"ingredient_id"`
	Quantity     float64 `json:"quantity"`
	ExpiryDate   string  `json:"expiry_date,omitempty"`
	PurchaseDate string  `json:"purchase_date,omitempty"`
	Supplier     string  `json:"supplier,omitempty"`
	CostCents    int64   `json:"cost_cents,omitempty"`
}

type RecipeComponent struct {
	IngredientID    string  `json:"ingredient_id"`
	QuantityPerUnit float64 `json:"quantity_per_unit"`
	Unit            string  `json:"unit"`
}

type Product struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	PriceCents int64             `json:"price_cents"`
	Active     bool              `json:"active"`
	Recipe     []RecipeComponent `json:"recipe,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

type ProductCreateRequest struct {
	Name       string            `json:"name"`
	PriceCents int64             `json:"price_cents"`
	Recipe     []RecipeComponent `json:"recipe,omitempty"`
}

type ProductUpdateRequest struct {
	Name       *string            `json:"name,omitempty"`
	PriceCents *int64             `json:"price_cents,omitempty"`
	Active     *bool              `json:"active,omitempty"`
	Recipe     *[]RecipeComponent `json:"recipe,omitempty"`
}

type OrderLine struct {
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
}

type Order struct {
	ID               string                    `json:"id"`
	CustomerName     string                    `json:"customer_name,omitempty"`
	Status           string                    `json:"status"`
	Lines            []OrderLine               `json:"lines"`
	StockCalculation *StockCalculationMetadata `json:"stock_calculation,omitempty"`
	LotUsage         *LotUsageMetadata         `json:"lot_usage,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

type OrderCreateRequest struct {
	CustomerName string      `json:"customer_name,omitempty"`
	Lines        []OrderLine `json:"lines"`
}

// IngredientRequirement is computed fresh per order and never cached. Stock
// fields are a snapshot from calculation time.
type IngredientRequirement struct {
	IngredientID     string  `json:"ingredient_id"`
	IngredientName   string  `json:"ingredient_name"`
	Unit             string  `json:"unit"`
	RequiredQuantity float64 `json:"required_quantity"`
	CurrentStock     float64 `json:"current_stock"`
	ReservedStock    float64 `json:"reserved_stock"`
	MinimumStock     float64 `json:"minimum_stock"`
	IsSufficient     bool    `json:"is_sufficient"`
	Shortage         float64 `json:"shortage"`
}

type RequirementResult struct {
	Requirements  []IngredientRequirement `json:"requirements"`
	AllSufficient bool                    `json:"all_sufficient"`
	Warnings      []string                `json:"warnings,omitempty"`
}

// StockCalculationMetadata is the requirement snapshot persisted on the order
// at acceptance time, kept for historical display only.
type StockCalculationMetadata struct {
	Requirements  []IngredientRequirement `json:"requirements"`
	AllSufficient bool                    `json:"all_sufficient"`
	Warnings      []string                `json:"warnings,omitempty"`
	CalculatedAt  time.Time               `json:"calculated_at"`
}

type LotUsage struct {
	LotID        string    `json:"lot_id"`
	IngredientID string    `json:"ingredient_id"`
	Quantity     float64   `json:"quantity"`
	ExpiryDate   time.Time `json:"expiry_date"`
	FullyUsed    bool      `json:"fully_used"`
}

type LotUsageMetadata struct {
	LotsUsed   []LotUsage `json:"lots_used"`
	DeductedAt time.Time  `json:"deducted_at"`
}

type StockDemand struct {
	IngredientID string  `json:"ingredient_id"`
	Quantity     float64 `json:"quantity"`
}

type DeductedIngredient struct {
	IngredientID string  `json:"ingredient_id"`
	Deducted     float64 `json:"deducted"`
	NewStock     float64 `json:"new_stock"`
}

type DeductionResult struct {
	Success             bool                 `json:"success"`
	DeductedIngredients []DeductedIngredient `json:"deducted_ingredients"`
	LotUsage            *LotUsageMetadata    `json:"lot_usage,omitempty"`
	Errors              []string             `json:"errors,omitempty"`
}

type ReservationResult struct {
	Success             bool     `json:"success"`
	ReservedIngredients []string `json:"reserved_ingredients,omitempty"`
	Errors              []string `json:"errors,omitempty"`
}

type ReleaseResult struct {
	Success bool     `json:"success"`
	Clamped []string `json:"clamped,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

type RecommendedLot struct {
	LotID          string    `json:"lot_id"`
	CurrentStock   float64   `json:"current_stock"`
	ExpiryDate     time.Time `json:"expiry_date"`
	PurchaseDate   time.Time `json:"purchase_date"`
	IsExpiringSoon bool      `json:"is_expiring_soon"`
	IsExpired      bool      `json:"is_expired"`
}

type RecommendedLotsResult struct {
	Lots           []RecommendedLot `json:"lots"`
	TotalAvailable float64          `json:"total_available"`
	IsSufficient   bool             `json:"is_sufficient"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	OrderStatusNew       = "New Order"
	OrderStatusPending   = "Pending"
	OrderStatusOnProcess = "On Process"
	OrderStatusCompleted = "Completed"
	OrderStatusCancelled = "Cancelled"
)

const (
	ExpirySourceExplicit        = "explicit"
	ExpirySourceCatalogDefault  = "catalog_default"
	ExpirySourcePredicted       = "predicted"
	ExpirySourceFallbackDefault = "fallback_default"
)
