package models

// CartLine is one product+size entry of a cart. UnitPrice is a snapshot taken
// when the line was added.
type CartLine struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Size      Size   `json:"size"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

func (l CartLine) Total() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Subtotal sums the line totals.
func Subtotal(lines []CartLine) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.Total()
	}
	return sum
}
