package integration

import "strings"

const (
	// WholesaleTagPrefix marks the remote tag carrying the wholesale pricing tier
	WholesaleTagPrefix = "wholesale::"
	// DefaultWholesaleTag is used for new products and products without a tier tag
	DefaultWholesaleTag = "wholesale::18"
)

// ExistingVariant is the remote state of one variant
type ExistingVariant struct {
	ID                string
	SKU               string
	InventoryPolicy   string
	InventoryQuantity int
	InStock           bool // the in_stock metafield has a value
}

// ExistingProduct is a snapshot of a remote product, fetched before an
// update or delete so remote-only state survives the overwrite.
type ExistingProduct struct {
	ID           string
	Tags         []string
	WholesaleTag string
	Variants     []ExistingVariant
}

// EmptyExistingProduct is the snapshot of a product that does not exist remotely
func EmptyExistingProduct() *ExistingProduct {
	return &ExistingProduct{
		Tags:         []string{},
		WholesaleTag: DefaultWholesaleTag,
		Variants:     []ExistingVariant{},
	}
}

// NewExistingProduct builds a snapshot and derives the wholesale tag from the
// first tag carrying the wholesale prefix.
func NewExistingProduct(id string, tags []string, variants []ExistingVariant) *ExistingProduct {
	if tags == nil {
		tags = []string{}
	}
	if variants == nil {
		variants = []ExistingVariant{}
	}
	return &ExistingProduct{
		ID:           id,
		Tags:         tags,
		WholesaleTag: deriveWholesaleTag(tags),
		Variants:     variants,
	}
}

func deriveWholesaleTag(tags []string) string {
	for _, tag := range tags {
		if strings.HasPrefix(tag, WholesaleTagPrefix) {
			return tag
		}
	}
	return DefaultWholesaleTag
}

// Exists reports whether the snapshot refers to a real remote product
func (e *ExistingProduct) Exists() bool {
	return e.ID != ""
}

// MatchingTag returns the first remote tag equal, ignoring case, to one of
// the candidates.
func (e *ExistingProduct) MatchingTag(candidates []string) (string, bool) {
	for _, tag := range e.Tags {
		for _, c := range candidates {
			if strings.EqualFold(tag, c) {
				return tag, true
			}
		}
	}
	return "", false
}

// VariantBySKU returns the remote variant with the given SKU
func (e *ExistingProduct) VariantBySKU(sku string) (ExistingVariant, bool) {
	for _, v := range e.Variants {
		if v.SKU == sku {
			return v, true
		}
	}
	return ExistingVariant{}, false
}

// FirstVariant returns the first remote variant, if any
func (e *ExistingProduct) FirstVariant() (ExistingVariant, bool) {
	if len(e.Variants) == 0 {
		return ExistingVariant{}, false
	}
	return e.Variants[0], true
}
