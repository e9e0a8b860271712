package models

import (
	"strings"
	"time"
)

// Size is a product size label. Single-size items such as hats use SizeFree.
type Size string

const (
	SizeM    Size = "M"
	SizeL    Size = "L"
	SizeXL   Size = "XL"
	SizeFree Size = "FREE"
)

// ParseSize upper-cases s and reports whether it names a known size.
func ParseSize(s string) (Size, bool) {
	size := Size(strings.ToUpper(strings.TrimSpace(s)))
	return size, size.Valid()
}

func (s Size) Valid() bool {
	switch s {
	case SizeM, SizeL, SizeXL, SizeFree:
		return true
	}
	return false
}

type Product struct {
	ID          string       `bson:"_id" json:"id"`
	Name        string       `bson:"name" json:"name"`
	Description string       `bson:"description" json:"description"`
	Category    string       `bson:"category" json:"category"`
	Price       int64        `bson:"price" json:"price"`
	Stock       map[Size]int `bson:"stock" json:"stock"`
	Images      []string     `bson:"images" json:"images"`
	CreatedAt   time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `bson:"updated_at" json:"updated_at"`
}

// StockFor returns the stock count for size and whether the product is sold
// in that size at all.
func (p *Product) StockFor(size Size) (int, bool) {
	n, ok := p.Stock[size]
	return n, ok
}

func (p *Product) TotalStock() int {
	total := 0
	for _, n := range p.Stock {
		total += n
	}
	return total
}

// ProductFilter narrows a catalog listing. Zero values mean no constraint.
type ProductFilter struct {
	Category    string
	Query       string
	MinPrice    int64
	MaxPrice    int64
	InStockOnly bool
	Page        int
	PageSize    int
}

// Normalize clamps paging to sane bounds.
func (f ProductFilter) Normalize() ProductFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	return f
}

// Matches applies every constraint except paging.
func (f ProductFilter) Matches(p *Product) bool {
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Query)) {
		return false
	}
	if f.MinPrice > 0 && p.Price < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && p.Price > f.MaxPrice {
		return false
	}
	if f.InStockOnly && p.TotalStock() == 0 {
		return false
	}
	return true
}
