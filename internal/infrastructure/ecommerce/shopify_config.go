package ecommerce

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// ShopifyDefaultAPIVersion is the Admin API version the queries are written against
	ShopifyDefaultAPIVersion = "2025-04"

	shopifyDefaultTimeout       = 30 * time.Second
	shopifyDefaultRetryAttempts = 3
	shopifyDefaultRetryDelay    = 2 * time.Second
)

// Errors for Shopify configuration
var (
	ErrShopifyConfigMissingStore = errors.New("shopify: store domain is required")
	ErrShopifyConfigMissingToken = errors.New("shopify: access token is required")
)

// ShopifyConfig holds configuration for the Shopify Admin GraphQL API
type ShopifyConfig struct {
	// StoreDomain is the shop's myshopify.com domain, e.g. "acme.myshopify.com"
	StoreDomain string
	// AccessToken is the Admin API access token of the custom app
	AccessToken string
	// APIVersion is the dated Admin API version
	APIVersion string
	// BaseURL overrides "https://<StoreDomain>", used against mock servers
	BaseURL string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
	// RetryAttempts is the total number of attempts for throttled or unavailable requests
	RetryAttempts int
	// RetryDelay is the base backoff between attempts, multiplied by the attempt number
	RetryDelay time.Duration
}

// NewShopifyConfig creates a Shopify configuration with defaults
func NewShopifyConfig(storeDomain, accessToken string) *ShopifyConfig {
	return &ShopifyConfig{
		StoreDomain:   storeDomain,
		AccessToken:   accessToken,
		APIVersion:    ShopifyDefaultAPIVersion,
		Timeout:       shopifyDefaultTimeout,
		RetryAttempts: shopifyDefaultRetryAttempts,
		RetryDelay:    shopifyDefaultRetryDelay,
	}
}

// Validate validates the configuration and fills in defaults
func (c *ShopifyConfig) Validate() error {
	if c.StoreDomain == "" && c.BaseURL == "" {
		return ErrShopifyConfigMissingStore
	}
	if c.AccessToken == "" {
		return ErrShopifyConfigMissingToken
	}
	if c.APIVersion == "" {
		c.APIVersion = ShopifyDefaultAPIVersion
	}
	if c.Timeout <= 0 {
		c.Timeout = shopifyDefaultTimeout
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 1
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	return nil
}

// GraphQLEndpoint returns the Admin GraphQL endpoint URL
func (c *ShopifyConfig) GraphQLEndpoint() string {
	base := c.BaseURL
	if base == "" {
		domain := strings.TrimPrefix(strings.TrimPrefix(c.StoreDomain, "https://"), "http://")
		base = "https://" + strings.TrimSuffix(domain, "/")
	}
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", strings.TrimSuffix(base, "/"), c.APIVersion)
}
