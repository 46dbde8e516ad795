package integration

import "github.com/shopspring/decimal"

// ProductStatus is the remote lifecycle status of a product
type ProductStatus string

const (
	ProductStatusActive ProductStatus = "ACTIVE"
	ProductStatusDraft  ProductStatus = "DRAFT"
)

// InventoryPolicy controls whether a variant can be sold when out of stock
type InventoryPolicy string

const (
	// InventoryPolicyContinue allows backorders
	InventoryPolicyContinue InventoryPolicy = "CONTINUE"
	// InventoryPolicyDeny stops selling at zero stock
	InventoryPolicyDeny InventoryPolicy = "DENY"
)

// Metafield value types
const (
	MetafieldTypeBoolean              = "boolean"
	MetafieldTypeSingleLineText       = "single_line_text_field"
	MetafieldTypeProductReferenceList = "list.product_reference"
)

// MetafieldNamespaceCustom is the namespace of all metafields written by the sync
const MetafieldNamespaceCustom = "custom"

// ProductSetVariables are the variables of the productSet upsert mutation.
// A nil Identifier creates a new product.
type ProductSetVariables struct {
	Identifier *ProductIdentifier `json:"identifier"`
	Input      ProductSetInput    `json:"input"`
}

// ProductIdentifier addresses an existing remote product by handle
type ProductIdentifier struct {
	Handle string `json:"handle"`
}

// ProductSetInput is the full desired state of a remote product
type ProductSetInput struct {
	Title           string           `json:"title"`
	DescriptionHTML string           `json:"descriptionHtml"`
	Files           []FileInput      `json:"files"`
	Handle          string           `json:"handle"`
	Status          ProductStatus    `json:"status"`
	Metafields      []MetafieldInput `json:"metafields"`
	Tags            []string         `json:"tags"`
	ProductOptions  []OptionInput    `json:"productOptions"`
	Variants        []VariantInput   `json:"variants"`
}

// FileInput attaches a media file by URL
type FileInput struct {
	ContentType    string `json:"contentType"`
	OriginalSource string `json:"originalSource"`
}

// MetafieldInput sets one metafield
type MetafieldInput struct {
	Key       string `json:"key"`
	Namespace string `json:"namespace"`
	Value     string `json:"value"`
	Type      string `json:"type"`
}

// OptionInput declares a product option and its values
type OptionInput struct {
	Position int               `json:"position"`
	Name     string            `json:"name"`
	Values   []OptionValueName `json:"values"`
}

// OptionValueName names an option value
type OptionValueName struct {
	Name string `json:"name"`
}

// VariantInput is the desired state of one variant
type VariantInput struct {
	OptionValues    []VariantOptionValue `json:"optionValues"`
	Price           decimal.NullDecimal  `json:"price"`
	InventoryItem   InventoryItemInput   `json:"inventoryItem"`
	InventoryPolicy InventoryPolicy      `json:"inventoryPolicy"`
	Metafields      []MetafieldInput     `json:"metafields"`
}

// VariantOptionValue selects the option value a variant stands for
type VariantOptionValue struct {
	Name       string `json:"name"`
	OptionName string `json:"optionName"`
}

// InventoryItemInput describes the inventory item behind a variant
type InventoryItemInput struct {
	Tracked     bool                  `json:"tracked"`
	SKU         string                `json:"sku,omitempty"`
	Cost        decimal.NullDecimal   `json:"cost"`
	Measurement *InventoryMeasurement `json:"measurement,omitempty"`
}

// InventoryMeasurement carries the shipping weight of an inventory item
type InventoryMeasurement struct {
	Weight Weight `json:"weight"`
}

// Weight is a value with a unit, e.g. GRAMS
type Weight struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}
