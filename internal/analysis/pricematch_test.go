package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adoralabs/dropwatch/internal/models"
)

func TestBadProductURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		bad  bool
	}{
		{
			name: "AliExpress affiliate shortener",
			url:  "https://s.click.aliexpress.com/e/_DdpmVxz",
			bad:  true,
		},
		{
			name: "Bitly shortener",
			url:  "https://bit.ly/3xYzAbCd",
			bad:  true,
		},
		{
			name: "Temu shortener",
			url:  "https://temu.to/k/xyz987",
			bad:  true,
		},
		{
			name: "Collection listing",
			url:  "https://shop.example.com/collections/summer-sale",
			bad:  true,
		},
		{
			name: "Category listing",
			url:  "https://shop.example.com/category/kitchen/",
			bad:  true,
		},
		{
			name: "Product under a collection",
			url:  "https://shop.example.com/collections/sale/products/blender",
			bad:  false,
		},
		{
			name: "Regular product page",
			url:  "https://shop.example.com/products/magic-blender",
			bad:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.bad, BadProductURL(tt.url))
		})
	}
}

func TestMarkup(t *testing.T) {
	matches := []models.PriceMatch{
		{Source: "AliExpress", PriceUSD: 8.50},
		{Source: "Temu", PriceUSD: 6.00},
		{Source: "Alibaba", PriceUSD: 0}, // unknown price, ignored
	}

	// 299 ILS ≈ $80.73; cheapest match $6 ≈ 22.2 ILS.
	markup := Markup(299, matches)
	assert.InDelta(t, 13.45, markup, 0.1)
}

func TestMarkupNoPricedMatches(t *testing.T) {
	assert.Zero(t, Markup(299, nil))
	assert.Zero(t, Markup(299, []models.PriceMatch{{PriceUSD: 0}}))
	assert.Zero(t, Markup(0, []models.PriceMatch{{PriceUSD: 5}}))
}
