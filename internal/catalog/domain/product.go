package domain

// Product is the read-only catalog shape the checkout core consumes. Prices are minor units.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Currency    string    `json:"currency"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"image_url,omitempty"`
	CategoryID  string    `json:"category_id"`
	Available   bool      `json:"available"`
	Variants    []Variant `json:"variants"`
}

type Variant struct {
	ID              string `json:"id"`
	Color           string `json:"color"`
	PriceAdjustment int64  `json:"price_adjustment"`
	Stock           int    `json:"stock"`
	ImageURL        string `json:"image_url,omitempty"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (p *Product) Variant(id string) (*Variant, bool) {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i], true
		}
	}
	return nil, false
}
