package models

import (
	"fmt"
	"time"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for the Product domain entity.
type ProductModel struct {
	ID                int64                     `gorm:"primaryKey;autoIncrement"`
	Title             *string                   `gorm:"type:text"`
	URLHandle         *string                   `gorm:"column:url_handle;type:text;uniqueIndex"`
	Description       *string                   `gorm:"type:text"`
	Specification     *string                   `gorm:"type:text"`
	ShelfSpace        *string                   `gorm:"type:text"`
	ShippingClass     *string                   `gorm:"type:text"`
	NoLoginPrice      decimal.NullDecimal       `gorm:"type:decimal(12,2)"`
	BuyPrice          decimal.NullDecimal       `gorm:"type:decimal(12,2)"`
	SalesPrice        decimal.NullDecimal       `gorm:"type:decimal(12,2)"`
	CurrencySign      *string                   `gorm:"type:varchar(8)"`
	Currency          *string                   `gorm:"type:varchar(8)"`
	InStock           *bool                     `gorm:""`
	SKU               *string                   `gorm:"column:sku;type:text"`
	MaxShippingWeight decimal.NullDecimal       `gorm:"type:decimal(12,3)"`
	WeightUnit        *string                   `gorm:"type:varchar(16)"`
	ActualWeight      decimal.NullDecimal       `gorm:"type:decimal(12,3)"`
	ImageURLs         pq.StringArray            `gorm:"column:image_urls;type:text[]"`
	OptionName        *string                   `gorm:"type:text"`
	Tags              pq.StringArray            `gorm:"type:text[]"`
	Accessories       pq.StringArray            `gorm:"type:text[]"`
	ActionRequired    *string                   `gorm:"type:varchar(16);index"`
	OptionValues      []ProductOptionValueModel `gorm:"foreignKey:ProductID"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() (*catalog.Product, error) {
	action, err := catalog.ParsePendingAction(str(m.ActionRequired))
	if err != nil {
		return nil, fmt.Errorf("product %d: %w: %q", m.ID, err, str(m.ActionRequired))
	}

	p := &catalog.Product{
		ID:                m.ID,
		Title:             str(m.Title),
		Handle:            str(m.URLHandle),
		Description:       str(m.Description),
		Specification:     str(m.Specification),
		ShelfSpace:        str(m.ShelfSpace),
		ShippingClass:     str(m.ShippingClass),
		NoLoginPrice:      m.NoLoginPrice,
		BuyPrice:          m.BuyPrice,
		SalesPrice:        m.SalesPrice,
		Currency:          str(m.Currency),
		CurrencySign:      str(m.CurrencySign),
		InStock:           m.InStock != nil && *m.InStock,
		SKU:               str(m.SKU),
		MaxShippingWeight: m.MaxShippingWeight,
		WeightUnit:        str(m.WeightUnit),
		ActualWeight:      m.ActualWeight,
		ImageURLs:         []string(m.ImageURLs),
		OptionName:        str(m.OptionName),
		Tags:              []string(m.Tags),
		Accessories:       []string(m.Accessories),
		ActionRequired:    action,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	for i := range m.OptionValues {
		p.OptionValues = append(p.OptionValues, m.OptionValues[i].ToDomain())
	}
	return p, nil
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.ID = p.ID
	m.Title = ptr(p.Title)
	m.URLHandle = ptr(p.Handle)
	m.Description = ptr(p.Description)
	m.Specification = ptr(p.Specification)
	m.ShelfSpace = ptr(p.ShelfSpace)
	m.ShippingClass = ptr(p.ShippingClass)
	m.NoLoginPrice = p.NoLoginPrice
	m.BuyPrice = p.BuyPrice
	m.SalesPrice = p.SalesPrice
	m.Currency = ptr(p.Currency)
	m.CurrencySign = ptr(p.CurrencySign)
	inStock := p.InStock
	m.InStock = &inStock
	m.SKU = ptr(p.SKU)
	m.MaxShippingWeight = p.MaxShippingWeight
	m.WeightUnit = ptr(p.WeightUnit)
	m.ActualWeight = p.ActualWeight
	m.ImageURLs = pq.StringArray(p.ImageURLs)
	m.OptionName = ptr(p.OptionName)
	m.Tags = pq.StringArray(p.Tags)
	m.Accessories = pq.StringArray(p.Accessories)
	m.ActionRequired = ptr(string(p.ActionRequired))
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt

	m.OptionValues = make([]ProductOptionValueModel, 0, len(p.OptionValues))
	for i := range p.OptionValues {
		ov := ProductOptionValueModel{}
		ov.FromDomain(&p.OptionValues[i])
		m.OptionValues = append(m.OptionValues, ov)
	}
}

// ProductModelFromDomain creates a new persistence model from a domain Product entity.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}

// ProductOptionValueModel is the persistence model for one variant row of a product.
type ProductOptionValueModel struct {
	ID           int64               `gorm:"primaryKey;autoIncrement"`
	ProductID    int64               `gorm:"not null;index"`
	VariantValue *string             `gorm:"type:text"`
	SKU          *string             `gorm:"column:sku;type:text"`
	SalesPrice   decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	BuyPrice     decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	InStock      *bool               `gorm:""`
	ShelfSpace   *string             `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ProductOptionValueModel) TableName() string {
	return "product_option_values"
}

// ToDomain converts the persistence model to a domain OptionValue.
func (m *ProductOptionValueModel) ToDomain() catalog.OptionValue {
	return catalog.OptionValue{
		ID:           m.ID,
		ProductID:    m.ProductID,
		VariantValue: str(m.VariantValue),
		SKU:          str(m.SKU),
		SalesPrice:   m.SalesPrice,
		BuyPrice:     m.BuyPrice,
		InStock:      m.InStock != nil && *m.InStock,
		ShelfSpace:   str(m.ShelfSpace),
	}
}

// FromDomain populates the persistence model from a domain OptionValue.
func (m *ProductOptionValueModel) FromDomain(o *catalog.OptionValue) {
	m.ID = o.ID
	m.ProductID = o.ProductID
	m.VariantValue = ptr(o.VariantValue)
	m.SKU = ptr(o.SKU)
	m.SalesPrice = o.SalesPrice
	m.BuyPrice = o.BuyPrice
	inStock := o.InStock
	m.InStock = &inStock
	m.ShelfSpace = ptr(o.ShelfSpace)
}

// str dereferences a nullable column, NULL reads as ""
func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ptr stores "" as NULL
func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
