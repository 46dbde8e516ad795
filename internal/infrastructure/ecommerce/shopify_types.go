package ecommerce

import (
	"encoding/json"
	"strings"
)

// ---------------------------------------------------------------------------
// GraphQL documents
// ---------------------------------------------------------------------------

const productSetMutation = `
mutation productSet($identifier: ProductSetIdentifiers, $input: ProductSetInput!) {
  productSet(synchronous: true, identifier: $identifier, input: $input) {
    product {
      id
    }
    userErrors {
      field
      message
      code
    }
  }
}`

const productByIdentifierQuery = `
query getProductByIdentifier($handle: String!, $includeVariants: Boolean!) {
  productByIdentifier(identifier: {handle: $handle}) {
    id
    tags
    variants(first: 250) @include(if: $includeVariants) {
      nodes {
        id
        inventoryPolicy
        inventoryQuantity
        metafield(namespace: "custom", key: "in_stock") {
          key
          value
        }
        sku
      }
    }
  }
}`

const productsQuery = `
query getProducts($query: String = "", $first: Int!) {
  products(first: $first, query: $query) {
    nodes {
      id
    }
  }
}`

// shopifyPageLimit is the largest connection page the Admin API serves
const shopifyPageLimit = 250

// ---------------------------------------------------------------------------
// Envelope
// ---------------------------------------------------------------------------

// graphQLRequest is the POST body of every Admin API call
type graphQLRequest struct {
	Query     string `json:"query"`
	Variables any    `json:"variables,omitempty"`
}

// graphQLResponse is the common response envelope
type graphQLResponse struct {
	Data       json.RawMessage   `json:"data"`
	Errors     []graphQLError    `json:"errors,omitempty"`
	Extensions *shopifyExtension `json:"extensions,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type shopifyExtension struct {
	Cost struct {
		RequestedQueryCost int `json:"requestedQueryCost"`
		ThrottleStatus     struct {
			MaximumAvailable   float64 `json:"maximumAvailable"`
			CurrentlyAvailable float64 `json:"currentlyAvailable"`
			RestoreRate        float64 `json:"restoreRate"`
		} `json:"throttleStatus"`
	} `json:"cost"`
}

// isThrottled reports whether any error is the API's cost-based throttle
func (r *graphQLResponse) isThrottled() bool {
	for _, e := range r.Errors {
		if e.Extensions.Code == "THROTTLED" {
			return true
		}
	}
	return false
}

func (r *graphQLResponse) errorMessages() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// ---------------------------------------------------------------------------
// Operation payloads
// ---------------------------------------------------------------------------

type productSetData struct {
	ProductSet *struct {
		Product *struct {
			ID string `json:"id"`
		} `json:"product"`
		UserErrors []struct {
			Field   []string `json:"field"`
			Message string   `json:"message"`
			Code    string   `json:"code"`
		} `json:"userErrors"`
	} `json:"productSet"`
}

type productByIdentifierData struct {
	ProductByIdentifier *struct {
		ID       string   `json:"id"`
		Tags     []string `json:"tags"`
		Variants *struct {
			Nodes []shopifyVariantNode `json:"nodes"`
		} `json:"variants"`
	} `json:"productByIdentifier"`
}

type shopifyVariantNode struct {
	ID                string `json:"id"`
	InventoryPolicy   string `json:"inventoryPolicy"`
	InventoryQuantity *int   `json:"inventoryQuantity"`
	Metafield         *struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"metafield"`
	SKU *string `json:"sku"`
}

type productsData struct {
	Products struct {
		Nodes []struct {
			ID string `json:"id"`
		} `json:"nodes"`
	} `json:"products"`
}
