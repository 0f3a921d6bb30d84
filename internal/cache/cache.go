package cache

import (
	"context"

	"rotiku/backend/internal/domain"
)

// ProductCache fronts product-by-name lookups during requirement
// calculation. Keys are lowercased product names.
type ProductCache interface {
	Get(ctx context.Context, key string) (*domain.Product, bool, error)
	Set(ctx context.Context, key string, value *domain.Product) error
	Delete(ctx context.Context, key string) error
}

type NoopProductCache struct{}

func NewNoop() NoopProductCache {
	return NoopProductCache{}
}

func (NoopProductCache) Get(_ context.Context, _ string) (*domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopProductCache) Set(_ context.Context, _ string, _ *domain.Product) error {
	return nil
}

func (NoopProductCache) Delete(_ context.Context, _ string) error {
	return nil
}
