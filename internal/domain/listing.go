package domain

import "strings"

// Lang enumerates supported output languages for generated listings.
type Lang string

const (
	LangRU Lang = "ru"
	LangKZ Lang = "kz"
	LangEN Lang = "en"
)

// Langs returns the supported language tags in canonical order.
func Langs() []Lang {
	return []Lang{LangRU, LangKZ, LangEN}
}

// ParseLang normalizes a free-form tag into a supported Lang.
func ParseLang(s string) (Lang, bool) {
	switch Lang(strings.ToLower(strings.TrimSpace(s))) {
	case LangRU:
		return LangRU, true
	case LangKZ:
		return LangKZ, true
	case LangEN:
		return LangEN, true
	}
	return "", false
}

// Marketplace enumerates the target listing platforms.
type Marketplace string

const (
	MarketplaceOLX         Marketplace = "olx"
	MarketplaceWildberries Marketplace = "wildberries"
	MarketplaceOzon        Marketplace = "ozon"
)

// Marketplaces returns all target platforms in canonical order. A valid
// ListingBundle carries one variant per entry.
func Marketplaces() []Marketplace {
	return []Marketplace{MarketplaceOLX, MarketplaceWildberries, MarketplaceOzon}
}

// UniversalProduct captures marketplace-agnostic attributes inferred from the
// photos. Nullable fields stay nil when the model could not tell.
type UniversalProduct struct {
	ProductType   string   `json:"product_type"`
	Brand         *string  `json:"brand"`
	Model         *string  `json:"model"`
	Color         *string  `json:"color"`
	Material      *string  `json:"material"`
	Condition     *string  `json:"condition"`
	KeyAttributes []string `json:"key_attributes"`
	DetectedText  []string `json:"detected_text"`
	Uncertainty   []string `json:"uncertainty"`
}

// ListingVariant is the marketplace-specific listing text.
type ListingVariant struct {
	Title           string            `json:"title"`
	Bullets         []string          `json:"bullets"`
	Description     string            `json:"description"`
	Keywords        []string          `json:"keywords"`
	Attributes      map[string]string `json:"attributes"`
	ComplianceTodos []string          `json:"compliance_todos"`
	Uncertainty     []string          `json:"uncertainty"`
}

// ListingBundle is the complete validated output of one generation: the
// universal product plus one variant per marketplace.
type ListingBundle struct {
	Lang      Lang                           `json:"lang"`
	Universal UniversalProduct               `json:"universal"`
	Listings  map[Marketplace]ListingVariant `json:"listings"`
}

// ImageInput is one uploaded product photo. Data is forwarded to the model
// verbatim; the core never inspects pixels.
type ImageInput struct {
	Filename string
	MIME     string
	Data     []byte
}

// GenerationRequest is the pipeline input built per incoming call.
type GenerationRequest struct {
	Lang   Lang
	Hint   string
	Images []ImageInput
}
