package domain

import "time"

// Product is a catalog record returned by product search.
type Product struct {
	ID     string   `json:"id" yaml:"id"`
	Title  string   `json:"title" yaml:"title"`
	Price  float64  `json:"price" yaml:"price"`
	Tags   []string `json:"tags" yaml:"tags"`
	Sizes  []string `json:"sizes" yaml:"sizes"`
	Color  string   `json:"color,omitempty" yaml:"color"`
	Fabric string   `json:"fabric,omitempty" yaml:"fabric"`
}

// LineItem is one product line of an order.
type LineItem struct {
	ProductID string  `json:"product_id" yaml:"product_id"`
	Title     string  `json:"title" yaml:"title"`
	Size      string  `json:"size,omitempty" yaml:"size"`
	Quantity  int     `json:"quantity" yaml:"quantity"`
	Price     float64 `json:"price" yaml:"price"`
}

// Order is read-only to the agent; it is only ever observed through
// order_lookup results.
type Order struct {
	OrderID   string     `json:"order_id" yaml:"order_id"`
	Email     string     `json:"email" yaml:"email"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
	Total     float64    `json:"total" yaml:"total"`
	Items     []LineItem `json:"items" yaml:"items"`
}

// SizeAdvice is the size_recommender payload.
type SizeAdvice struct {
	Size      string `json:"size"`
	Rationale string `json:"rationale"`
}

// ShippingEstimate is the eta payload.
type ShippingEstimate struct {
	ZipCode string `json:"zip_code"`
	Window  string `json:"window"`
}

// CancelPreview is the advisory verdict returned by the order_cancel tool.
// The policy guard recomputes eligibility on its own; nothing downstream
// reads Eligible from here.
type CancelPreview struct {
	OrderID           string `json:"order_id"`
	Eligible          bool   `json:"eligible"`
	MinutesSinceOrder int    `json:"minutes_since_order"`
	Reason            string `json:"reason"`
	Policy            string `json:"policy"`
}
