package domain

type Review struct {
	User   string  `json:"user"`
	Text   string  `json:"text"`
	Rating float64 `json:"rating"`
}

// Product is supplied by the catalog and never mutated by the storefront.
type Product struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Price       Price    `json:"price"`
	Image       string   `json:"img"`
	Description string   `json:"description,omitempty"`
	HowToUse    string   `json:"howToUse,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	Reviews     []Review `json:"reviews,omitempty"`
}
