package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
)

const (
	// DefaultOptionName names the option of products without their own option name
	DefaultOptionName = "Title"
	// DefaultVariantName is the single variant of products without option rows
	DefaultVariantName = "Default Title"
	// FilterTagPrefix namespaces local tags so the storefront can filter on them
	FilterTagPrefix = "filter::"

	imageContentType = "IMAGE"
	weightUnitGrams  = "GRAMS"
)

// weightUnits maps stored weight units to remote unit names
var weightUnits = map[string]string{
	"g":  "GRAMS",
	"kg": "KILOGRAMS",
	"oz": "OUNCES",
	"lb": "POUNDS",
}

// ProductTransformer turns stored products into upsert payloads, looking up
// the remote state the payload depends on.
type ProductTransformer struct {
	platform integration.CatalogPlatform
}

// NewProductTransformer creates a new ProductTransformer
func NewProductTransformer(platform integration.CatalogPlatform) *ProductTransformer {
	return &ProductTransformer{platform: platform}
}

// Snapshot returns the remote state of the product. Creates never look the
// product up and get the empty snapshot.
func (t *ProductTransformer) Snapshot(ctx context.Context, product *catalog.Product) (*integration.ExistingProduct, error) {
	if !product.ActionRequired.TargetsExisting() {
		return integration.EmptyExistingProduct(), nil
	}
	existing, err := t.platform.FetchExisting(ctx, product.Handle, true)
	if err != nil {
		return nil, fmt.Errorf("fetch existing product %q: %w", product.Handle, err)
	}
	if existing == nil {
		return integration.EmptyExistingProduct(), nil
	}
	return existing, nil
}

// Transform resolves the product's accessories and builds its payload
func (t *ProductTransformer) Transform(
	ctx context.Context,
	product *catalog.Product,
	existing *integration.ExistingProduct,
) (integration.ProductSetVariables, error) {
	accessoryIDs := []string{}
	if product.HasAccessories() {
		ids, err := t.platform.ResolveHandles(ctx, product.Accessories)
		if err != nil {
			return integration.ProductSetVariables{}, fmt.Errorf("resolve accessories of %q: %w", product.Handle, err)
		}
		accessoryIDs = ids
	}
	return BuildProductSetInput(product, existing, accessoryIDs), nil
}

// BuildProductSetInput maps a product, its remote snapshot and its resolved
// accessory IDs to the upsert payload. It performs no I/O and is
// deterministic for equal inputs.
func BuildProductSetInput(
	product *catalog.Product,
	existing *integration.ExistingProduct,
	accessoryIDs []string,
) integration.ProductSetVariables {
	if existing == nil {
		existing = integration.EmptyExistingProduct()
	}

	var identifier *integration.ProductIdentifier
	if product.ActionRequired.TargetsExisting() {
		identifier = &integration.ProductIdentifier{Handle: product.Handle}
	}

	status := integration.ProductStatusActive
	if product.ActionRequired == catalog.ActionDelete {
		status = integration.ProductStatusDraft
	}

	return integration.ProductSetVariables{
		Identifier: identifier,
		Input: integration.ProductSetInput{
			Title:           product.Title,
			DescriptionHTML: product.Description,
			Files:           buildFiles(product.ImageURLs),
			Handle:          product.Handle,
			Status:          status,
			Metafields:      []integration.MetafieldInput{accessoriesMetafield(accessoryIDs)},
			Tags:            buildTags(product, existing.WholesaleTag),
			ProductOptions:  []integration.OptionInput{buildOption(product)},
			Variants:        buildVariants(product, existing),
		},
	}
}

// ShippingWeightText formats a weight and unit as "<weight> <UNIT>".
// Known short units are spelled out, others are upper-cased.
func ShippingWeightText(weight decimal.NullDecimal, unit string) string {
	if !weight.Valid {
		return ""
	}
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return weight.Decimal.String()
	}
	name, ok := weightUnits[strings.ToLower(unit)]
	if !ok {
		name = strings.ToUpper(unit)
	}
	return weight.Decimal.String() + " " + name
}

func optionName(product *catalog.Product) string {
	if product.OptionName != "" {
		return product.OptionName
	}
	return DefaultOptionName
}

func buildFiles(urls []string) []integration.FileInput {
	files := make([]integration.FileInput, 0, len(urls))
	for _, u := range urls {
		files = append(files, integration.FileInput{ContentType: imageContentType, OriginalSource: u})
	}
	return files
}

func buildTags(product *catalog.Product, wholesaleTag string) []string {
	tags := make([]string, 0, len(product.Tags)+2)
	if wholesaleTag == "" {
		wholesaleTag = integration.DefaultWholesaleTag
	}
	tags = append(tags, wholesaleTag)
	if product.ShippingClass != "" {
		tags = append(tags, product.ShippingClass)
	}
	for _, tag := range product.Tags {
		if tag != "" {
			tags = append(tags, FilterTagPrefix+tag)
		}
	}
	return tags
}

func buildOption(product *catalog.Product) integration.OptionInput {
	opt := integration.OptionInput{Position: 1, Name: optionName(product)}
	if !product.HasVariants() {
		opt.Values = []integration.OptionValueName{{Name: DefaultVariantName}}
		return opt
	}
	opt.Values = make([]integration.OptionValueName, 0, len(product.OptionValues))
	for _, ov := range product.OptionValues {
		opt.Values = append(opt.Values, integration.OptionValueName{Name: ov.VariantValue})
	}
	return opt
}

func buildVariants(product *catalog.Product, existing *integration.ExistingProduct) []integration.VariantInput {
	weightText := ShippingWeightText(product.MaxShippingWeight, product.WeightUnit)

	if !product.HasVariants() {
		remote, _ := existing.FirstVariant()
		return []integration.VariantInput{{
			OptionValues:    []integration.VariantOptionValue{{Name: DefaultVariantName, OptionName: optionName(product)}},
			Price:           product.SalesPrice,
			InventoryItem:   inventoryItem(product.SKU, product.BuyPrice, product.ActualWeight),
			InventoryPolicy: inventoryPolicy(remote.InventoryQuantity, product.InStock),
			Metafields:      variantMetafields(product, product.InStock, product.ShelfSpace, weightText),
		}}
	}

	name := optionName(product)
	variants := make([]integration.VariantInput, 0, len(product.OptionValues))
	for _, ov := range product.OptionValues {
		remote, _ := existing.VariantBySKU(ov.SKU)
		variants = append(variants, integration.VariantInput{
			OptionValues:    []integration.VariantOptionValue{{Name: ov.VariantValue, OptionName: name}},
			Price:           ov.SalesPrice,
			InventoryItem:   inventoryItem(ov.SKU, ov.BuyPrice, product.ActualWeight),
			InventoryPolicy: inventoryPolicy(remote.InventoryQuantity, ov.InStock),
			Metafields:      variantMetafields(product, ov.InStock, ov.ShelfSpace, weightText),
		})
	}
	return variants
}

func inventoryItem(sku string, cost, actualWeight decimal.NullDecimal) integration.InventoryItemInput {
	item := integration.InventoryItemInput{Tracked: true, SKU: sku, Cost: cost}
	if actualWeight.Valid && !actualWeight.Decimal.IsZero() {
		item.Measurement = &integration.InventoryMeasurement{
			Weight: integration.Weight{Value: actualWeight.Decimal.InexactFloat64(), Unit: weightUnitGrams},
		}
	}
	return item
}

// inventoryPolicy allows backorders while the remote still holds stock or
// the local record says the item is in stock.
func inventoryPolicy(remoteQuantity int, inStock bool) integration.InventoryPolicy {
	if remoteQuantity > 0 || inStock {
		return integration.InventoryPolicyContinue
	}
	return integration.InventoryPolicyDeny
}

func variantMetafields(product *catalog.Product, inStock bool, shelfSpace, weightText string) []integration.MetafieldInput {
	stock := "false"
	if inStock {
		stock = "true"
	}
	return []integration.MetafieldInput{
		customMetafield("in_stock", stock, integration.MetafieldTypeBoolean),
		customMetafield("shelf_space", shelfSpace, integration.MetafieldTypeSingleLineText),
		customMetafield("specification", product.Specification, integration.MetafieldTypeSingleLineText),
		customMetafield("shipping_class", product.ShippingClass, integration.MetafieldTypeSingleLineText),
		customMetafield("shipping_class_weight", weightText, integration.MetafieldTypeSingleLineText),
	}
}

func accessoriesMetafield(ids []string) integration.MetafieldInput {
	if ids == nil {
		ids = []string{}
	}
	// marshalling a []string cannot fail
	value, _ := json.Marshal(ids)
	return customMetafield("accessories", string(value), integration.MetafieldTypeProductReferenceList)
}

func customMetafield(key, value, typ string) integration.MetafieldInput {
	return integration.MetafieldInput{
		Key:       key,
		Namespace: integration.MetafieldNamespaceCustom,
		Value:     value,
		Type:      typ,
	}
}
