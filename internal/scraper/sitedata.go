package scraper

// SiteData is the structured extraction result of one scrape. It lives only
// long enough to build the scoring prompt and is discarded afterwards.
type SiteData struct {
	URL   string
	Title string

	ProductName  string
	ProductPrice float64

	ShippingTime string

	BusinessID string
	Phone      string
	Email      string

	HasCountdownTimer bool
	HasScarcityWidget bool
	HasWhatsAppOnly   bool

	PageText string
	TOSText  string

	Error string
}
