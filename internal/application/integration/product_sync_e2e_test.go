package integration_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	syncapp "github.com/catalogsync/backend/internal/application/integration"
	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/auditlog"
	"github.com/catalogsync/backend/internal/infrastructure/ecommerce"
	"github.com/catalogsync/backend/internal/infrastructure/persistence"
	"github.com/catalogsync/backend/internal/infrastructure/persistence/models"
)

var storeSchema = []string{
	`CREATE TABLE products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT, url_handle TEXT UNIQUE, description TEXT, specification TEXT,
		shelf_space TEXT, shipping_class TEXT,
		no_login_price NUMERIC, buy_price NUMERIC, sales_price NUMERIC,
		currency_sign TEXT, currency TEXT, in_stock BOOLEAN, sku TEXT,
		max_shipping_weight NUMERIC, weight_unit TEXT, actual_weight NUMERIC,
		image_urls TEXT, option_name TEXT, tags TEXT, accessories TEXT,
		action_required TEXT,
		created_at DATETIME, updated_at DATETIME
	)`,
	`CREATE TABLE product_option_values (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL REFERENCES products(id),
		variant_value TEXT, sku TEXT, sales_price NUMERIC, buy_price NUMERIC,
		in_stock BOOLEAN, shelf_space TEXT
	)`,
}

// fakeStore answers the three Admin API documents the sync sends
type fakeStore struct {
	mu       sync.Mutex
	existing map[string]string // handle -> remote product json
	handles  map[string]string // handle -> id for accessory lookups
	upserts  []integration.ProductSetVariables
}

func (f *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var req struct {
		Query     string          `json:"query"`
		Variables json.RawMessage `json:"variables"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.Contains(req.Query, "productSet("):
		var vars integration.ProductSetVariables
		_ = json.Unmarshal(req.Variables, &vars)
		f.upserts = append(f.upserts, vars)
		fmt.Fprintf(w, `{"data":{"productSet":{"product":{"id":"gid://shopify/Product/%d"},"userErrors":[]}}}`, 100+len(f.upserts))

	case strings.Contains(req.Query, "productByIdentifier"):
		var vars struct {
			Handle string `json:"handle"`
		}
		_ = json.Unmarshal(req.Variables, &vars)
		product, ok := f.existing[vars.Handle]
		if !ok {
			product = "null"
		}
		fmt.Fprintf(w, `{"data":{"productByIdentifier":%s}}`, product)

	case strings.Contains(req.Query, "products("):
		var vars struct {
			Query string `json:"query"`
		}
		_ = json.Unmarshal(req.Variables, &vars)
		var nodes []string
		for _, term := range strings.Split(vars.Query, " OR ") {
			if id, ok := f.handles[strings.TrimPrefix(term, "handle:")]; ok {
				nodes = append(nodes, fmt.Sprintf(`{"id":%q}`, id))
			}
		}
		fmt.Fprintf(w, `{"data":{"products":{"nodes":[%s]}}}`, strings.Join(nodes, ","))

	default:
		http.Error(w, "unexpected document", http.StatusBadRequest)
	}
}

func (f *fakeStore) upsertHandles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	handles := make([]string, 0, len(f.upserts))
	for _, u := range f.upserts {
		handles = append(handles, u.Input.Handle)
	}
	return handles
}

func seed(t *testing.T, db *gorm.DB, p *catalog.Product) int64 {
	t.Helper()
	m := models.ProductModelFromDomain(p)
	require.NoError(t, db.Create(m).Error)
	return m.ID
}

func pendingAction(t *testing.T, db *gorm.DB, id int64) *string {
	t.Helper()
	var m models.ProductModel
	require.NoError(t, db.First(&m, id).Error)
	return m.ActionRequired
}

func TestProductSync_EndToEnd(t *testing.T) {
	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	for _, stmt := range storeSchema {
		require.NoError(t, db.Exec(stmt).Error)
	}

	lamp := seed(t, db, &catalog.Product{
		Title:          "Desk Lamp",
		Handle:         "desk-lamp",
		SalesPrice:     decimal.NewNullDecimal(decimal.RequireFromString("49.90")),
		InStock:        true,
		Accessories:    []string{"led-bulb"},
		Tags:           []string{"lighting"},
		ActionRequired: catalog.ActionCreate,
	})
	chair := seed(t, db, &catalog.Product{
		Title:          "Office Chair",
		Handle:         "office-chair",
		ActionRequired: catalog.ActionUpdate,
	})
	stool := seed(t, db, &catalog.Product{Title: "Stool", Handle: "stool"})
	table := seed(t, db, &catalog.Product{
		Title:          "Side Table",
		Handle:         "side-table",
		ActionRequired: catalog.ActionDelete,
	})

	store := &fakeStore{
		existing: map[string]string{
			"office-chair": `{"id":"gid://shopify/Product/2","tags":["manual-edit"],"variants":{"nodes":[]}}`,
			"side-table":   `{"id":"gid://shopify/Product/4","tags":[],"variants":{"nodes":[]}}`,
		},
		handles: map[string]string{"led-bulb": "gid://shopify/Product/9"},
	}
	server := httptest.NewServer(store)
	t.Cleanup(server.Close)

	platform, err := ecommerce.NewShopifyAdapter(&ecommerce.ShopifyConfig{
		BaseURL:       server.URL,
		AccessToken:   "shpat_test",
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	})
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	svc := syncapp.NewProductSyncService(
		persistence.NewGormProductRepository(db),
		platform,
		auditlog.NewFactory(auditlog.Config{Dir: t.TempDir(), Prefix: "productset"}, log),
		syncapp.SyncConfig{PageSize: 2, FlushThreshold: 1, SkipTags: []string{"manual-edit"}},
		syncapp.WithSyncLogger(log),
	)

	before, err := svc.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), before)

	report, err := svc.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Pages)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, report.Cleared)

	assert.Equal(t, []string{"desk-lamp", "side-table"}, store.upsertHandles())

	store.mu.Lock()
	created, deleted := store.upserts[0], store.upserts[1]
	store.mu.Unlock()
	assert.Nil(t, created.Identifier)
	assert.Equal(t, integration.ProductStatusActive, created.Input.Status)
	assert.Contains(t, created.Input.Tags, "filter::lighting")
	require.NotNil(t, deleted.Identifier)
	assert.Equal(t, "side-table", deleted.Identifier.Handle)
	assert.Equal(t, integration.ProductStatusDraft, deleted.Input.Status)

	var accessories string
	for _, mf := range created.Input.Metafields {
		if mf.Key == "accessories" {
			accessories = mf.Value
		}
	}
	assert.JSONEq(t, `["gid://shopify/Product/9"]`, accessories)

	// Markers: synced cleared, skipped kept for a later run
	assert.Nil(t, pendingAction(t, db, lamp))
	assert.Nil(t, pendingAction(t, db, table))
	require.NotNil(t, pendingAction(t, db, chair))
	assert.Equal(t, "update", *pendingAction(t, db, chair))
	assert.Nil(t, pendingAction(t, db, stool))

	after, err := svc.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), after)

	// Audit file: one line per mutation, in order
	assert.Contains(t, report.AuditFile, "productset-")
	f, err := os.Open(report.AuditFile)
	require.NoError(t, err)
	defer f.Close()

	var entries []integration.MutationLogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e integration.MutationLogEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, entries, 2)
	assert.Equal(t, lamp, entries[0].ProductID)
	assert.Equal(t, "create", entries[0].Action)
	assert.Equal(t, table, entries[1].ProductID)
	assert.Equal(t, "delete", entries[1].Action)
	assert.Contains(t, string(entries[1].Response), "productSet")
}
