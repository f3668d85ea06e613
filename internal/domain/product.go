package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

type Product struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Price           decimal.Decimal     `json:"price"`
	OriginalPrice   decimal.NullDecimal `json:"original_price"`
	DiscountPercent decimal.NullDecimal `json:"discount_percent"`
	Rating          float64             `json:"rating"`
	Reviews         int                 `json:"reviews"`
	Stock           int                 `json:"stock"`
	ImageURL        string              `json:"image_url"`
	Category        string              `json:"category"`
}

// EffectivePrice applies DiscountPercent to Price when a discount is set.
func (p Product) EffectivePrice() decimal.Decimal {
	if !p.DiscountPercent.Valid || p.DiscountPercent.Decimal.IsZero() {
		return p.Price
	}
	return p.Price.Mul(hundred.Sub(p.DiscountPercent.Decimal)).Div(hundred)
}

func (p Product) InStock() bool {
	return p.Stock > 0
}
