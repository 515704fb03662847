package cache

import (
	"context"

	"kiosk-pos/internal/domain"
)

// ProductSearchCache stores catalog search results keyed by the query text.
// Any catalog or stock change must call Invalidate.
type ProductSearchCache interface {
	Get(ctx context.Context, query string) ([]*domain.Product, bool, error)
	Set(ctx context.Context, query string, products []*domain.Product) error
	Invalidate(ctx context.Context) error
}

// NoopProductSearchCache never hits; used when Redis is disabled
type NoopProductSearchCache struct{}

func (NoopProductSearchCache) Get(_ context.Context, _ string) ([]*domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopProductSearchCache) Set(_ context.Context, _ string, _ []*domain.Product) error {
	return nil
}

func (NoopProductSearchCache) Invalidate(_ context.Context) error {
	return nil
}
