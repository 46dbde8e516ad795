package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/integration"
)

// maxResponseSize is the maximum allowed response size from the Admin API (10MB)
const maxResponseSize = 10 * 1024 * 1024

const tracerName = "github.com/catalogsync/backend/internal/infrastructure/ecommerce"

// ShopifyAdapter implements integration.CatalogPlatform against the Shopify Admin GraphQL API
type ShopifyAdapter struct {
	config     *ShopifyConfig
	httpClient *http.Client
	logger     *zap.Logger
	tracer     trace.Tracer
}

// ShopifyAdapterOption configures a ShopifyAdapter
type ShopifyAdapterOption func(*ShopifyAdapter)

// WithShopifyHTTPClient replaces the default HTTP client
func WithShopifyHTTPClient(c *http.Client) ShopifyAdapterOption {
	return func(a *ShopifyAdapter) {
		a.httpClient = c
	}
}

// WithShopifyLogger sets the logger used for retry and throttle messages
func WithShopifyLogger(l *zap.Logger) ShopifyAdapterOption {
	return func(a *ShopifyAdapter) {
		a.logger = l
	}
}

// WithShopifyTracerProvider records a client span per Admin API operation
func WithShopifyTracerProvider(tp trace.TracerProvider) ShopifyAdapterOption {
	return func(a *ShopifyAdapter) {
		a.tracer = tp.Tracer(tracerName)
	}
}

// NewShopifyAdapter creates a new Shopify adapter with the given configuration
func NewShopifyAdapter(config *ShopifyConfig, opts ...ShopifyAdapterOption) (*ShopifyAdapter, error) {
	if config == nil {
		return nil, integration.ErrPlatformNotConfigured
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", integration.ErrPlatformNotConfigured, err)
	}

	a := &ShopifyAdapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     zap.NewNop(),
		tracer:     otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("shopify")
	return a, nil
}

var _ integration.CatalogPlatform = (*ShopifyAdapter)(nil)

// ---------------------------------------------------------------------------
// CatalogPlatform
// ---------------------------------------------------------------------------

// UpsertProduct runs the productSet mutation synchronously. A create has no
// identifier to dedupe on, so it is only retried when the API reports it was
// throttled and therefore not applied.
func (a *ShopifyAdapter) UpsertProduct(ctx context.Context, vars integration.ProductSetVariables) (*integration.UpsertResult, error) {
	policy := retryThrottledOrUnavailable
	if vars.Identifier == nil {
		policy = retryThrottledOnly
	}

	var data productSetData
	raw, err := a.execute(ctx, "productSet", policy, productSetMutation, vars, &data)
	if err != nil {
		return nil, err
	}
	if data.ProductSet == nil {
		return nil, fmt.Errorf("%w: productSet missing from response", integration.ErrPlatformInvalidResponse)
	}

	result := &integration.UpsertResult{Raw: raw}
	if data.ProductSet.Product != nil {
		result.ProductID = data.ProductSet.Product.ID
	}
	for _, ue := range data.ProductSet.UserErrors {
		result.UserErrors = append(result.UserErrors, integration.UserError{
			Field:   ue.Field,
			Message: ue.Message,
			Code:    ue.Code,
		})
	}
	return result, nil
}

// FetchExisting looks up a product by handle. A missing product is not an error.
func (a *ShopifyAdapter) FetchExisting(ctx context.Context, handle string, includeVariants bool) (*integration.ExistingProduct, error) {
	vars := map[string]any{
		"handle":          handle,
		"includeVariants": includeVariants,
	}

	var data productByIdentifierData
	if _, err := a.execute(ctx, "productByIdentifier", retryThrottledOrUnavailable, productByIdentifierQuery, vars, &data); err != nil {
		return nil, err
	}

	p := data.ProductByIdentifier
	if p == nil {
		return integration.EmptyExistingProduct(), nil
	}

	var variants []integration.ExistingVariant
	if p.Variants != nil {
		variants = make([]integration.ExistingVariant, 0, len(p.Variants.Nodes))
		for _, n := range p.Variants.Nodes {
			v := integration.ExistingVariant{
				ID:              n.ID,
				InventoryPolicy: n.InventoryPolicy,
				InStock:         n.Metafield != nil && n.Metafield.Value != "",
			}
			if n.SKU != nil {
				v.SKU = *n.SKU
			}
			if n.InventoryQuantity != nil {
				v.InventoryQuantity = *n.InventoryQuantity
			}
			variants = append(variants, v)
		}
	}
	return integration.NewExistingProduct(p.ID, p.Tags, variants), nil
}

// ResolveHandles returns the product IDs for the given handles in response order
func (a *ShopifyAdapter) ResolveHandles(ctx context.Context, handles []string) ([]string, error) {
	terms := make([]string, 0, len(handles))
	for _, h := range handles {
		if h = strings.TrimSpace(h); h != "" {
			terms = append(terms, "handle:"+h)
		}
	}
	if len(terms) == 0 {
		return []string{}, nil
	}

	vars := map[string]any{
		"query": strings.Join(terms, " OR "),
		"first": shopifyPageLimit,
	}

	var data productsData
	if _, err := a.execute(ctx, "products", retryThrottledOrUnavailable, productsQuery, vars, &data); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(data.Products.Nodes))
	for _, n := range data.Products.Nodes {
		ids = append(ids, n.ID)
	}
	return ids, nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// retryPolicy decides which failed attempts execute may send again
type retryPolicy int

const (
	// retryThrottledOrUnavailable suits queries and keyed upserts, which are safe to repeat
	retryThrottledOrUnavailable retryPolicy = iota
	// retryThrottledOnly suits requests that may have been applied before a 5xx or network error
	retryThrottledOnly
)

func (p retryPolicy) retryable(err error) bool {
	if errors.Is(err, integration.ErrPlatformRateLimited) {
		return true
	}
	return p == retryThrottledOrUnavailable && errors.Is(err, integration.ErrPlatformUnavailable)
}

// execute runs a GraphQL document with bounded retries as allowed by policy,
// decodes data into out and returns the raw body. One span covers all attempts.
func (a *ShopifyAdapter) execute(ctx context.Context, operation string, policy retryPolicy, query string, variables, out any) (raw json.RawMessage, err error) {
	ctx, span := a.tracer.Start(ctx, "shopify."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("graphql.operation.name", operation),
			attribute.String("shopify.shop", a.config.StoreDomain),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("shopify: failed to encode request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= a.config.RetryAttempts; attempt++ {
		span.SetAttributes(attribute.Int("shopify.attempts", attempt))
		raw, retryAfter, err := a.doRequest(ctx, body, out)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if !policy.retryable(err) || attempt == a.config.RetryAttempts {
			break
		}

		wait := retryAfter
		if wait <= 0 {
			wait = a.config.RetryDelay * time.Duration(attempt)
		}
		a.logger.Warn("Retrying Admin API request",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// doRequest performs one HTTP round trip and maps failures to integration errors
func (a *ShopifyAdapter) doRequest(ctx context.Context, body []byte, out any) (json.RawMessage, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.GraphQLEndpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("shopify: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", a.config.AccessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to read response: %v", integration.ErrPlatformUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, retryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("%w: HTTP 429", integration.ErrPlatformRateLimited)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, 0, fmt.Errorf("%w: HTTP %d", integration.ErrPlatformAuthFailed, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, 0, fmt.Errorf("%w: HTTP %d", integration.ErrPlatformUnavailable, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, 0, fmt.Errorf("%w: HTTP %d", integration.ErrPlatformRequestFailed, resp.StatusCode)
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
	}
	if envelope.isThrottled() {
		return nil, throttleWait(envelope.Extensions), fmt.Errorf("%w: %s", integration.ErrPlatformRateLimited, envelope.errorMessages())
	}
	if len(envelope.Errors) > 0 {
		return nil, 0, fmt.Errorf("%w: %s", integration.ErrPlatformRequestFailed, envelope.errorMessages())
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil, 0, fmt.Errorf("%w: empty data", integration.ErrPlatformInvalidResponse)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
	}

	return json.RawMessage(raw), 0, nil
}

// retryAfter parses a Retry-After header given in seconds
func retryAfter(header string) time.Duration {
	secs, err := strconv.ParseFloat(strings.TrimSpace(header), 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// throttleWait estimates how long until the cost bucket refills enough for the
// last query, based on the throttle status the API reports.
func throttleWait(ext *shopifyExtension) time.Duration {
	if ext == nil {
		return 0
	}
	status := ext.Cost.ThrottleStatus
	missing := float64(ext.Cost.RequestedQueryCost) - status.CurrentlyAvailable
	if missing <= 0 || status.RestoreRate <= 0 {
		return 0
	}
	return time.Duration(missing / status.RestoreRate * float64(time.Second))
}
