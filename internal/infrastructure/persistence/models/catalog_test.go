package models

import (
	"testing"
	"time"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductModel_RoundTrip(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	p := &catalog.Product{
		ID:                42,
		Title:             "Desk Lamp",
		Handle:            "desk-lamp",
		SalesPrice:        decimal.NewNullDecimal(decimal.RequireFromString("19.99")),
		InStock:           true,
		MaxShippingWeight: decimal.NewNullDecimal(decimal.NewFromInt(500)),
		WeightUnit:        "g",
		ImageURLs:         []string{"https://cdn.example.com/lamp.jpg"},
		OptionName:        "Color",
		OptionValues: []catalog.OptionValue{
			{ID: 1, ProductID: 42, VariantValue: "Black", SKU: "LAMP-B", InStock: true},
		},
		Tags:           []string{"lighting"},
		ActionRequired: catalog.ActionUpdate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	m := ProductModelFromDomain(p)
	require.NotNil(t, m.URLHandle)
	assert.Equal(t, "desk-lamp", *m.URLHandle)
	assert.Nil(t, m.Description)
	require.NotNil(t, m.ActionRequired)
	assert.Equal(t, "update", *m.ActionRequired)

	back, err := m.ToDomain()
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestProductModel_ToDomain_Nulls(t *testing.T) {
	m := &ProductModel{ID: 7}

	p, err := m.ToDomain()
	require.NoError(t, err)
	assert.Equal(t, catalog.ActionNone, p.ActionRequired)
	assert.False(t, p.InStock)
	assert.Empty(t, p.Handle)
	assert.False(t, p.SalesPrice.Valid)
	assert.Nil(t, p.OptionValues)
}

func TestProductModel_ToDomain_InvalidAction(t *testing.T) {
	bad := "archive"
	m := &ProductModel{ID: 9, ActionRequired: &bad}

	_, err := m.ToDomain()
	require.ErrorIs(t, err, catalog.ErrInvalidPendingAction)
	assert.Contains(t, err.Error(), "product 9")
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "products", ProductModel{}.TableName())
	assert.Equal(t, "product_option_values", ProductOptionValueModel{}.TableName())
}
