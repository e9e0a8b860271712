package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSize(t *testing.T) {
	size, ok := ParseSize(" xl ")
	assert.True(t, ok)
	assert.Equal(t, SizeXL, size)

	_, ok = ParseSize("XXL")
	assert.False(t, ok)
}

func TestProductFilter_Matches(t *testing.T) {
	tee := &Product{Name: "Basic Tee", Category: "shirts", Price: 150000, Stock: map[Size]int{SizeM: 0, SizeL: 3}}
	hat := &Product{Name: "Logo Cap", Category: "hats", Price: 90000, Stock: map[Size]int{SizeFree: 0}}

	tests := []struct {
		name   string
		filter ProductFilter
		want   []bool
	}{
		{"empty", ProductFilter{}, []bool{true, true}},
		{"category", ProductFilter{Category: "HATS"}, []bool{false, true}},
		{"query", ProductFilter{Query: "tee"}, []bool{true, false}},
		{"price range", ProductFilter{MinPrice: 100000}, []bool{true, false}},
		{"max price", ProductFilter{MaxPrice: 100000}, []bool{false, true}},
		{"in stock", ProductFilter{InStockOnly: true}, []bool{true, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want[0], tt.filter.Matches(tee))
			assert.Equal(t, tt.want[1], tt.filter.Matches(hat))
		})
	}
}

func TestProductFilter_Normalize(t *testing.T) {
	f := ProductFilter{Page: 0, PageSize: 1000}.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 100, f.PageSize)
}

func TestSubtotal(t *testing.T) {
	lines := []CartLine{{Quantity: 2, UnitPrice: 100}, {Quantity: 1, UnitPrice: 50}}
	assert.Equal(t, int64(250), Subtotal(lines))
}
