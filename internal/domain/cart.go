package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LineKey identifies one cart line: a product plus an optional variant.
// The string form uses a ':' delimiter so the key can always be decomposed
// back into its parts (decimal ids never contain ':').
type LineKey struct {
	ProductID int64
	VariantID int64 // 0 = no variant
}

func (k LineKey) String() string {
	if k.VariantID == 0 {
		return strconv.FormatInt(k.ProductID, 10)
	}
	return strconv.FormatInt(k.ProductID, 10) + ":" + strconv.FormatInt(k.VariantID, 10)
}

// ParseLineKey inverts LineKey.String exactly.
func ParseLineKey(s string) (LineKey, error) {
	productPart, variantPart, hasVariant := strings.Cut(s, ":")

	productID, err := strconv.ParseInt(productPart, 10, 64)
	if err != nil || productID <= 0 {
		return LineKey{}, fmt.Errorf("invalid line key %q", s)
	}
	if !hasVariant {
		return LineKey{ProductID: productID}, nil
	}

	variantID, err := strconv.ParseInt(variantPart, 10, 64)
	if err != nil || variantID <= 0 {
		return LineKey{}, fmt.Errorf("invalid line key %q", s)
	}
	return LineKey{ProductID: productID, VariantID: variantID}, nil
}

// CartLine is one (product, optional variant) entry with its quantity.
type CartLine struct {
	Key      LineKey `json:"key"`
	Quantity int     `json:"quantity"`
}

// ProductSnapshot is the denormalized base-product data cached per cart line
// so the line can be priced and rendered without a catalog call.
type ProductSnapshot struct {
	ProductID       int64       `json:"product_id"`
	Name            string      `json:"name"`
	Price           string      `json:"price"`
	SalePrice       string      `json:"sale_price,omitempty"`
	StockStatus     StockStatus `json:"stock_status"`
	StockManaged    bool        `json:"stock_managed"`
	StockQuantity   int         `json:"stock_quantity"`
	RequiresVariant bool        `json:"requires_variant"`
	ImageURL        string      `json:"image_url,omitempty"`
}

// VariantSnapshot carries a variant's overrides on top of its base product.
type VariantSnapshot struct {
	VariantID int64    `json:"variant_id"`
	Price     string   `json:"price"`
	SalePrice string   `json:"sale_price,omitempty"`
	ImageURL  string   `json:"image_url,omitempty"`
	Options   []string `json:"options,omitempty"`
}

// LineSnapshot is the cached pricing data for one cart line.
type LineSnapshot struct {
	Product    ProductSnapshot  `json:"product"`
	Variant    *VariantSnapshot `json:"variant,omitempty"`
	CapturedAt time.Time        `json:"captured_at"`
}

// UnitPrice returns the effective unit price for the line: the variant's
// sale price if set and parseable, else the variant's price, else the base
// product's sale price, else the base price. Unparseable candidates fall
// through; if nothing parses the price is zero.
func (s LineSnapshot) UnitPrice() decimal.Decimal {
	var candidates []string
	if s.Variant != nil {
		candidates = append(candidates, s.Variant.SalePrice, s.Variant.Price)
	}
	candidates = append(candidates, s.Product.SalePrice, s.Product.Price)

	for _, c := range candidates {
		if c == "" {
			continue
		}
		if p, err := decimal.NewFromString(c); err == nil {
			return p
		}
	}
	return decimal.Zero
}
