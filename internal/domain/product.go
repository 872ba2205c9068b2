package domain

import "time"

// PlaceholderImageURL is used whenever a record carries no image so consumers never branch on a missing URL
const PlaceholderImageURL = "/static/img/product-placeholder.png"

// Offer is a single vendor listing for a product
type Offer struct {
	VendorName string  `json:"vendorName"`
	Price      float64 `json:"price"`
	URL        string  `json:"url,omitempty"`
}

// Product is the canonical, normalized catalog entry.
// Category always holds the canonical (storage) name; translation happens at presentation boundaries.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Brand         string    `json:"brand"`
	Category      string    `json:"category"`
	Rating        *float64  `json:"rating"`
	Price         *float64  `json:"price"`
	Dimensions    string    `json:"dimensions,omitempty"`
	Weight        string    `json:"weight,omitempty"`
	Material      string    `json:"material,omitempty"`
	Features      []string  `json:"features"`
	ImageURL      string    `json:"imageUrl"`
	ASIN          string    `json:"asin,omitempty"`
	AffiliateLink string    `json:"affiliateLink,omitempty"`
	Offers        []Offer   `json:"offers"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

// BestOffer returns the lowest-priced offer. The first offer wins on ties.
func (p Product) BestOffer() (Offer, bool) {
	if len(p.Offers) == 0 {
		return Offer{}, false
	}
	best := p.Offers[0]
	for _, offer := range p.Offers[1:] {
		if offer.Price < best.Price {
			best = offer
		}
	}
	return best, true
}

// BestPrice returns the best offer price, falling back to the list price.
// The second return value is false when no price can be determined.
func (p Product) BestPrice() (float64, bool) {
	if offer, ok := p.BestOffer(); ok {
		return offer.Price, true
	}
	if p.Price != nil {
		return *p.Price, true
	}
	return 0, false
}

// KitItem is one product selection in a kit. Quantity is always >= 1.
type KitItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// KitSnapshot is the serialisable form of a kit used for session persistence
type KitSnapshot struct {
	Items     []KitItem `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// KitSummary is the presentation view of a kit
type KitSummary struct {
	SessionID      string         `json:"sessionId"`
	Items          []KitItem      `json:"items"`
	CategoryTotals map[string]int `json:"categoryTotals"`
	TotalQuantity  int            `json:"totalQuantity"`
	EstimatedTotal float64        `json:"estimatedTotal"`
}

// Category is one row of the category translation table
type Category struct {
	Canonical string `json:"canonical"`
	Display   string `json:"display"`
}
