package integration

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
)

// MockCatalogPlatform is a mock implementation of integration.CatalogPlatform
type MockCatalogPlatform struct {
	mock.Mock
}

func (m *MockCatalogPlatform) UpsertProduct(ctx context.Context, vars integration.ProductSetVariables) (*integration.UpsertResult, error) {
	args := m.Called(ctx, vars)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.UpsertResult), args.Error(1)
}

func (m *MockCatalogPlatform) FetchExisting(ctx context.Context, handle string, includeVariants bool) (*integration.ExistingProduct, error) {
	args := m.Called(ctx, handle, includeVariants)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ExistingProduct), args.Error(1)
}

func (m *MockCatalogPlatform) ResolveHandles(ctx context.Context, handles []string) ([]string, error) {
	args := m.Called(ctx, handles)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockAuditArchiver is a mock implementation of integration.AuditArchiver
type MockAuditArchiver struct {
	mock.Mock
}

func (m *MockAuditArchiver) Archive(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

// memoryProductRepository keeps products in memory with keyset paging
type memoryProductRepository struct {
	mu        sync.Mutex
	products  []catalog.Product
	findCalls int
	lastPage  int
	clears    [][]int64
	findErr   error
}

func newMemoryProductRepository(products ...catalog.Product) *memoryProductRepository {
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return &memoryProductRepository{products: products}
}

func (r *memoryProductRepository) FindPendingAfter(_ context.Context, afterID int64, limit int) ([]catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	if r.findErr != nil {
		return nil, r.findErr
	}
	var page []catalog.Product
	for _, p := range r.products {
		if p.ID > afterID && p.HasPendingAction() {
			page = append(page, p)
			if len(page) == limit {
				break
			}
		}
	}
	r.lastPage = len(page)
	return page, nil
}

func (r *memoryProductRepository) ClearPendingActions(_ context.Context, ids []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}
	r.clears = append(r.clears, append([]int64(nil), ids...))
	for _, id := range ids {
		for i := range r.products {
			if r.products[i].ID == id {
				r.products[i].ActionRequired = catalog.ActionNone
			}
		}
	}
	return nil
}

func (r *memoryProductRepository) CountPending(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.products {
		if p.HasPendingAction() {
			n++
		}
	}
	return n, nil
}

func (r *memoryProductRepository) action(id int64) catalog.PendingAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.ID == id {
			return p.ActionRequired
		}
	}
	return catalog.ActionNone
}

// memoryMutationLog records entries and the batches each flush wrote
type memoryMutationLog struct {
	mu       sync.Mutex
	runStart time.Time
	pending  []integration.MutationLogEntry
	batches  [][]integration.MutationLogEntry
}

func (l *memoryMutationLog) Record(entry integration.MutationLogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, entry)
}

func (l *memoryMutationLog) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *memoryMutationLog) Flush() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.pending)
	if n == 0 {
		return 0
	}
	l.batches = append(l.batches, l.pending)
	l.pending = nil
	return n
}

func (l *memoryMutationLog) Path() string {
	return "/tmp/response-" + l.runStart.UTC().Format("2006-01-02") + ".jsonl"
}

func (l *memoryMutationLog) written() []integration.MutationLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var all []integration.MutationLogEntry
	for _, b := range l.batches {
		all = append(all, b...)
	}
	return all
}

func (l *memoryMutationLog) batchSizes() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	sizes := make([]int, 0, len(l.batches))
	for _, b := range l.batches {
		sizes = append(sizes, len(b))
	}
	return sizes
}

// memoryLogFactory hands out one memoryMutationLog per run
type memoryLogFactory struct {
	logs []*memoryMutationLog
}

func (f *memoryLogFactory) open(runStart time.Time) integration.MutationLog {
	l := &memoryMutationLog{runStart: runStart}
	f.logs = append(f.logs, l)
	return l
}

func (f *memoryLogFactory) last() *memoryMutationLog {
	return f.logs[len(f.logs)-1]
}

type recordedProduct struct {
	action  string
	outcome string
}

// recordingMetrics captures SyncMetrics calls
type recordingMetrics struct {
	mu         sync.Mutex
	products   []recordedProduct
	userErrors int
	runs       []string
}

func (m *recordingMetrics) RecordProduct(_ context.Context, action, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = append(m.products, recordedProduct{action: action, outcome: outcome})
}

func (m *recordingMetrics) RecordUserErrors(_ context.Context, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userErrors += count
}

func (m *recordingMetrics) RecordRun(_ context.Context, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, status)
}
