package service

import (
	"context"
	"testing"
	"time"

	"kiosk-pos/internal/cache"
	"kiosk-pos/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCatalogService(db *memDB, searchCache cache.ProductSearchCache, limit int) CatalogService {
	return NewCatalogService(db.Stores(), searchCache, limit, zap.NewNop())
}

func TestSearchPutsCodeMatchFirstWithoutDuplicates(t *testing.T) {
	db := newMemDB()
	svc := newTestCatalogService(db, cache.NoopProductSearchCache{}, 10)

	coded := db.addProduct("Water 1L", "2.00", 5)
	db.addProduct("Mineral water", "1.00", 5)
	db.addProduct("Water 500ml", "1.50", 5)

	results, err := svc.Search(context.Background(), coded.BarcodeValue())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, coded.ID, results[0].ID)

	results, err = svc.Search(context.Background(), "WATER")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Mineral water", results[0].Name)

	seen := map[uuid.UUID]bool{}
	for _, p := range results {
		assert.False(t, seen[p.ID], "duplicate %s", p.Name)
		seen[p.ID] = true
	}

	results, err = svc.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchHonoursLimitAndSkipsInactive(t *testing.T) {
	db := newMemDB()
	svc := newTestCatalogService(db, cache.NoopProductSearchCache{}, 2)

	for _, name := range []string{"Shoe A", "Shoe B", "Shoe C"} {
		db.addProduct(name, "10", 1)
	}
	hidden := db.addProduct("Shoe 0", "10", 1)
	p := db.state.products[hidden.ID]
	p.Active = false
	db.state.products[hidden.ID] = p

	results, err := svc.Search(context.Background(), "shoe")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Shoe A", results[0].Name)
	assert.Equal(t, "Shoe B", results[1].Name)
}

func TestSearchCacheIsInvalidatedBySales(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	searchCache := cache.NewRedisProductSearchCache(client, time.Minute)

	db := newMemDB()
	catalog := newTestCatalogService(db, searchCache, 10)
	sales := NewSaleService(db, db.Stores(), searchCache, 100, zap.NewNop())
	item := db.addProduct("Flip flop", "12", 6)

	results, err := catalog.Search(context.Background(), "flip")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 6, results[0].Stock)

	_, err = sales.RecordSale(context.Background(), cashier, RecordSaleInput{
		PaymentMethod: "debit",
		Lines:         []SaleLineInput{{ProductID: item.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	results, err = catalog.Search(context.Background(), "flip")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 4, results[0].Stock)
}

func TestCatalogAdministrationRequiresPrivilege(t *testing.T) {
	db := newMemDB()
	svc := newTestCatalogService(db, cache.NoopProductSearchCache{}, 10)
	ctx := context.Background()

	input := ProductInput{Name: "Boot", Barcode: "B-1", Price: mustDecimal("99.999"), Stock: 3, Active: true}

	_, err := svc.CreateProduct(ctx, cashier, input)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	product, err := svc.CreateProduct(ctx, manager, input)
	require.NoError(t, err)
	assert.True(t, product.Price.Equal(mustDecimal("100.00")))

	_, err = svc.CreateProduct(ctx, manager, input)
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	_, err = svc.CreateProduct(ctx, manager, ProductInput{Name: "", Price: mustDecimal("1")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	input.Stock = 10
	_, err = svc.UpdateProduct(ctx, cashier, product.ID, input)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	updated, err := svc.UpdateProduct(ctx, manager, product.ID, input)
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Stock)

	assert.ErrorIs(t, svc.DeleteProduct(ctx, cashier, product.ID), domain.ErrPermissionDenied)
	require.NoError(t, svc.DeleteProduct(ctx, manager, product.ID))
	_, err = svc.GetProduct(ctx, product.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteProductInUse(t *testing.T) {
	db := newMemDB()
	svc := newTestCatalogService(db, cache.NoopProductSearchCache{}, 10)
	sales := newTestSaleService(db)
	item := db.addProduct("Boot", "50", 4)

	_, err := sales.RecordSale(context.Background(), cashier, RecordSaleInput{
		PaymentMethod: "debit",
		Lines:         []SaleLineInput{{ProductID: item.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteProduct(context.Background(), manager, item.ID), domain.ErrProductInUse)
}

func TestCategoryAdministration(t *testing.T) {
	db := newMemDB()
	svc := newTestCatalogService(db, cache.NoopProductSearchCache{}, 10)
	ctx := context.Background()

	_, err := svc.CreateCategory(ctx, cashier, "Shoes", "")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	category, err := svc.CreateCategory(ctx, manager, " Shoes ", "all footwear")
	require.NoError(t, err)
	assert.Equal(t, "Shoes", category.Name)

	_, err = svc.CreateCategory(ctx, manager, "Shoes", "")
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	product, err := svc.CreateProduct(ctx, manager, ProductInput{
		Name: "Boot", Price: mustDecimal("10"), CategoryID: &category.ID, Active: true,
	})
	require.NoError(t, err)

	categories, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 1)

	require.NoError(t, svc.DeleteCategory(ctx, manager, category.ID))
	reloaded, err := svc.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.CategoryID)
}
