package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"

	"github.com/fjod/go_storefront/internal/domain"
)

// Repository serves product, variant and category lookups from the local
// catalog database.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) FetchProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		SELECT id, name, slug, description, price, sale_price, stock_status,
		       stock_managed, stock_quantity, has_variants, image_url, created_at
		FROM products
		WHERE id = $1
	`

	p := &domain.Product{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.Price,
		&p.SalePrice,
		&p.StockStatus,
		&p.StockManaged,
		&p.StockQuantity,
		&p.HasVariants,
		&p.ImageURL,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return p, nil
}

func (r *Repository) FetchVariant(ctx context.Context, productID, variantID int64) (*domain.Variant, error) {
	query := `
		SELECT id, product_id, price, sale_price, image_url, options, created_at
		FROM variants
		WHERE id = $1 AND product_id = $2
	`

	v := &domain.Variant{}
	var options string
	err := r.db.QueryRowContext(ctx, query, variantID, productID).Scan(
		&v.ID,
		&v.ProductID,
		&v.Price,
		&v.SalePrice,
		&v.ImageURL,
		&options,
		&v.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query variant: %w", err)
	}

	if options != "" {
		if err := json.Unmarshal([]byte(options), &v.Options); err != nil {
			return nil, fmt.Errorf("failed to decode variant options: %w", err)
		}
	}
	return v, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	query := `
		SELECT id, name, slug, parent_id, sort_order, product_count
		FROM categories
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Slug,
			&c.ParentID,
			&c.SortOrder,
			&c.Count,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return categories, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
