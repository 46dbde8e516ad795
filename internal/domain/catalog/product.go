package catalog

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPendingAction = errors.New("catalog: invalid pending action")
	ErrInvalidPageSize      = errors.New("catalog: page size must be positive")
)

// PendingAction is the remote change still owed for a product
type PendingAction string

const (
	ActionNone   PendingAction = ""
	ActionCreate PendingAction = "create"
	ActionUpdate PendingAction = "update"
	ActionDelete PendingAction = "delete"
)

// ParsePendingAction converts a stored marker to a PendingAction
func ParsePendingAction(s string) (PendingAction, error) {
	a := PendingAction(strings.ToLower(strings.TrimSpace(s)))
	if !a.IsValid() {
		return ActionNone, ErrInvalidPendingAction
	}
	return a, nil
}

// IsValid returns true for none, create, update and delete
func (a PendingAction) IsValid() bool {
	switch a {
	case ActionNone, ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// TargetsExisting reports whether the action addresses a product that already
// exists remotely, keyed by its handle.
func (a PendingAction) TargetsExisting() bool {
	return a == ActionUpdate || a == ActionDelete
}

func (a PendingAction) String() string {
	if a == ActionNone {
		return "none"
	}
	return string(a)
}

// OptionValue is one variant row of a product
type OptionValue struct {
	ID           int64
	ProductID    int64
	VariantValue string
	SKU          string
	SalesPrice   decimal.NullDecimal
	BuyPrice     decimal.NullDecimal
	InStock      bool
	ShelfSpace   string
}

// Product is a locally stored catalog record
type Product struct {
	ID                int64
	Title             string
	Handle            string
	Description       string
	Specification     string
	ShelfSpace        string
	ShippingClass     string
	NoLoginPrice      decimal.NullDecimal
	BuyPrice          decimal.NullDecimal
	SalesPrice        decimal.NullDecimal
	Currency          string
	CurrencySign      string
	InStock           bool
	SKU               string
	MaxShippingWeight decimal.NullDecimal
	WeightUnit        string
	ActualWeight      decimal.NullDecimal // grams
	ImageURLs         []string
	OptionName        string
	OptionValues      []OptionValue
	Tags              []string
	Accessories       []string // handles of accessory products
	ActionRequired    PendingAction
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasPendingAction reports whether the product is owed a remote change
func (p *Product) HasPendingAction() bool {
	return p.ActionRequired != ActionNone
}

// HasVariants reports whether the product has explicit option rows.
// Without rows it is synced as a single "Default Title" variant.
func (p *Product) HasVariants() bool {
	return len(p.OptionValues) > 0
}

// HasAccessories reports whether accessory handles need resolving
func (p *Product) HasAccessories() bool {
	return len(p.Accessories) > 0
}
