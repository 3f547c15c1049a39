package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned by catalog lookups for unknown products,
// variants or categories.
var ErrNotFound = errors.New("not found")

// StockStatus mirrors the commerce backend's stock status strings.
type StockStatus string

const (
	StockInStock     StockStatus = "instock"
	StockOutOfStock  StockStatus = "outofstock"
	StockOnBackorder StockStatus = "onbackorder"
)

type Product struct {
	ID            int64
	Name          string
	Slug          string
	Description   string
	Price         string
	SalePrice     string
	StockStatus   StockStatus
	StockManaged  bool
	StockQuantity int
	HasVariants   bool
	ImageURL      string
	CreatedAt     time.Time
}

type Variant struct {
	ID        int64
	ProductID int64
	Price     string
	SalePrice string
	ImageURL  string
	Options   []string
	CreatedAt time.Time
}

// Snapshot denormalizes the product into the form cached per cart line.
func (p *Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ProductID:       p.ID,
		Name:            p.Name,
		Price:           p.Price,
		SalePrice:       p.SalePrice,
		StockStatus:     p.StockStatus,
		StockManaged:    p.StockManaged,
		StockQuantity:   p.StockQuantity,
		RequiresVariant: p.HasVariants,
		ImageURL:        p.ImageURL,
	}
}

// Snapshot denormalizes the variant into the form cached per cart line.
func (v *Variant) Snapshot() VariantSnapshot {
	return VariantSnapshot{
		VariantID: v.ID,
		Price:     v.Price,
		SalePrice: v.SalePrice,
		ImageURL:  v.ImageURL,
		Options:   v.Options,
	}
}
