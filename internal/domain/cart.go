package domain

import "github.com/shopspring/decimal"

// CartLineItem is one product-plus-quantity row. Display fields are a
// snapshot taken when the product was first added.
type CartLineItem struct {
	ProductID int64    `json:"id"`
	Name      string   `json:"name"`
	Image     string   `json:"img"`
	Price     Price    `json:"price"`
	Quantity  Quantity `json:"quantity"`
}

// NewLineItem snapshots the display fields of p.
func NewLineItem(p Product, quantity Quantity) CartLineItem {
	return CartLineItem{
		ProductID: p.ID,
		Name:      p.Name,
		Image:     p.Image,
		Price:     p.Price,
		Quantity:  quantity,
	}
}

// CartSnapshot is a read-only view of the cart. Total is derived on every
// read and is never persisted.
type CartSnapshot struct {
	Items []CartLineItem  `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

func (s CartSnapshot) IsEmpty() bool {
	return len(s.Items) == 0
}
