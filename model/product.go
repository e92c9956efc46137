package model

import "github.com/shopspring/decimal"

func init() {
	// Prices go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

const MaxProductNameLen = 255

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Images      []string        `json:"images"`
	Price       decimal.Decimal `json:"price"`
	Categories  []string        `json:"categories"`
	Stock       int             `json:"stock"`
}

// PrimaryCategory is the category that decides where the product's images
// are stored, or "" when the product has none.
func (p Product) PrimaryCategory() string {
	if len(p.Categories) == 0 {
		return ""
	}
	return p.Categories[0]
}

// ProductFilter narrows a product listing. Empty fields match everything.
type ProductFilter struct {
	CategoryIDs []string
	Search      string
}
