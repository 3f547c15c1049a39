package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/domain"
)

func setupTestDB(t *testing.T) *catalog.Repository {
	// Use in-memory database for tests
	repo, err := catalog.NewRepository(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test repository: %v", err)
	}

	if err := repo.RunMigrations("./migrations"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return repo
}

func TestFetchProduct_ReturnsSeededProduct(t *testing.T) {
	repo := setupTestDB(t)
	defer repo.Close()

	product, err := repo.FetchProduct(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, int64(1), product.ID)
	assert.Equal(t, "Canvas Tote Bag", product.Name)
	assert.Equal(t, "24.90", product.Price)
	assert.Equal(t, domain.StockInStock, product.StockStatus)
	assert.True(t, product.StockManaged)
	assert.Equal(t, 40, product.StockQuantity)
}

func TestFetchProduct_NotFound(t *testing.T) {
	repo := setupTestDB(t)
	defer repo.Close()

	_, err := repo.FetchProduct(context.Background(), 9999)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFetchProduct_OutOfStockStatus(t *testing.T) {
	repo := setupTestDB(t)
	defer repo.Close()

	product, err := repo.FetchProduct(context.Background(), 3)

	require.NoError(t, err)
	assert.Equal(t, domain.StockOutOfStock, product.StockStatus)
}

func TestFetchVariant_ReturnsVariantWithOptions(t *testing.T) {
	repo := setupTestDB(t)
	defer repo.Close()

	variant, err := repo.FetchVariant(context.Background(), 4, 42)

	require.NoError(t, err)
	assert.Equal(t, int64(42), variant.ID)
	assert.Equal(t, int64(4), variant.ProductID)
	assert.Equal(t, "25.00", variant.SalePrice)
	assert.Equal(t, []string{"Medium", "Forest Green"}, variant.Options)
}

func TestFetchVariant_WrongProductNotFound(t *testing.T) {
	repo := setupTestDB(t)
	defer repo.Close()

	// Variant 42 belongs to product 4, not product 1.
	_, err := repo.FetchVariant(context.Background(), 1, 42)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListCategories_ReturnsSeededRecords(t *testing.T) {
	repo := setupTestDB(t)
	defer repo.Close()

	categories, err := repo.ListCategories(context.Background())

	require.NoError(t, err)
	require.Len(t, categories, 6)

	byID := map[int64]domain.Category{}
	for _, c := range categories {
		byID[c.ID] = c
	}
	assert.Equal(t, int64(0), byID[10].ParentID)
	assert.Equal(t, int64(10), byID[11].ParentID)
	assert.Equal(t, "tops", byID[11].Slug)
}

func TestListCategories_CancelledContext(t *testing.T) {
	repo := setupTestDB(t)
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.ListCategories(ctx)
	assert.Error(t, err)
}
