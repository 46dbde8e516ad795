package integration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
)

const (
	DefaultPageSize       = 1000
	DefaultFlushThreshold = 50
	DefaultRequestDelay   = time.Second
)

// Product outcomes reported to SyncMetrics
const (
	OutcomeSynced  = "synced"
	OutcomeSkipped = "skipped"
)

// SyncConfig controls one sync run
type SyncConfig struct {
	PageSize       int
	FlushThreshold int
	// RequestDelay is the minimum spacing between two upsert mutations
	RequestDelay time.Duration
	// SkipTags suppress updates and deletes of remote products carrying any
	// of them, compared ignoring case
	SkipTags []string
	// ClearSkipped also clears the pending action of skipped products, making
	// the skip permanent instead of re-evaluated on the next run
	ClearSkipped bool
}

// SyncMetrics receives counters of a run. Implementations must be safe for
// concurrent use.
type SyncMetrics interface {
	RecordProduct(ctx context.Context, action, outcome string)
	RecordUserErrors(ctx context.Context, count int)
	RecordRun(ctx context.Context, status string, duration time.Duration)
}

type nopSyncMetrics struct{}

func (nopSyncMetrics) RecordProduct(context.Context, string, string)    {}
func (nopSyncMetrics) RecordUserErrors(context.Context, int)            {}
func (nopSyncMetrics) RecordRun(context.Context, string, time.Duration) {}

// SyncReport summarizes a run
type SyncReport struct {
	Pages      int    `json:"pages"`
	Fetched    int    `json:"fetched"`
	Processed  int    `json:"processed"`
	Skipped    int    `json:"skipped"`
	Cleared    int    `json:"cleared"`
	UserErrors int    `json:"user_errors"`
	AuditFile  string `json:"audit_file,omitempty"`
}

// ProductSyncService pushes pending local products to the remote catalog
type ProductSyncService struct {
	repo        catalog.ProductRepository
	platform    integration.CatalogPlatform
	transformer *ProductTransformer
	newLog      integration.MutationLogFactory
	archiver    integration.AuditArchiver
	metrics     SyncMetrics
	config      SyncConfig
	logger      *zap.Logger
	now         func() time.Time
}

// ProductSyncOption configures a ProductSyncService
type ProductSyncOption func(*ProductSyncService)

// WithAuditArchiver uploads the audit file after each run that recorded entries
func WithAuditArchiver(a integration.AuditArchiver) ProductSyncOption {
	return func(s *ProductSyncService) {
		s.archiver = a
	}
}

// WithSyncMetrics sets the metrics sink
func WithSyncMetrics(m SyncMetrics) ProductSyncOption {
	return func(s *ProductSyncService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSyncLogger sets the logger
func WithSyncLogger(l *zap.Logger) ProductSyncOption {
	return func(s *ProductSyncService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now, used for log file dates and entry timestamps
func WithClock(now func() time.Time) ProductSyncOption {
	return func(s *ProductSyncService) {
		s.now = now
	}
}

// NewProductSyncService creates a new ProductSyncService. Zero page size and
// flush threshold fall back to their defaults; a zero delay disables pacing.
func NewProductSyncService(
	repo catalog.ProductRepository,
	platform integration.CatalogPlatform,
	newLog integration.MutationLogFactory,
	config SyncConfig,
	opts ...ProductSyncOption,
) *ProductSyncService {
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	if config.FlushThreshold <= 0 {
		config.FlushThreshold = DefaultFlushThreshold
	}
	if config.RequestDelay < 0 {
		config.RequestDelay = 0
	}

	s := &ProductSyncService{
		repo:        repo,
		platform:    platform,
		transformer: NewProductTransformer(platform),
		newLog:      newLog,
		metrics:     nopSyncMetrics{},
		config:      config,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration
func (s *ProductSyncService) Config() SyncConfig {
	return s.config
}

// CountPending returns the number of products waiting to be synced
func (s *ProductSyncService) CountPending(ctx context.Context) (int64, error) {
	return s.repo.CountPending(ctx)
}

// run holds the state of one Run call
type run struct {
	log    integration.MutationLog
	pacer  *rate.Limiter
	report *SyncReport
}

// Run syncs every pending product, page by page, and returns a report of
// the work done. The first error aborts the rest of the run; the report then
// describes the work completed before it.
func (s *ProductSyncService) Run(ctx context.Context) (*SyncReport, error) {
	started := s.now()
	log := s.newLog(started)
	r := &run{
		log:    log,
		pacer:  newPacer(s.config.RequestDelay),
		report: &SyncReport{AuditFile: log.Path()},
	}

	s.logger.Info("Product sync started",
		zap.Int("page_size", s.config.PageSize),
		zap.Strings("skip_tags", s.config.SkipTags),
		zap.String("audit_file", log.Path()),
	)

	err := s.runPages(ctx, r)

	r.log.Flush()
	s.archive(ctx, r)

	status := "success"
	fields := []zap.Field{
		zap.Int("pages", r.report.Pages),
		zap.Int("processed", r.report.Processed),
		zap.Int("skipped", r.report.Skipped),
		zap.Int("cleared", r.report.Cleared),
		zap.Int("user_errors", r.report.UserErrors),
		zap.Duration("duration", s.now().Sub(started)),
	}
	if err != nil {
		status = "failed"
		s.logger.Error("Product sync aborted", append(fields, zap.Error(err))...)
	} else {
		s.logger.Info("Product sync completed", fields...)
	}
	s.metrics.RecordRun(context.WithoutCancel(ctx), status, s.now().Sub(started))

	return r.report, err
}

func (s *ProductSyncService) runPages(ctx context.Context, r *run) error {
	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := s.repo.FindPendingAfter(ctx, afterID, s.config.PageSize)
		if err != nil {
			return fmt.Errorf("fetch pending products: %w", err)
		}
		if len(page) == 0 {
			return nil
		}
		r.report.Pages++
		r.report.Fetched += len(page)
		afterID = page[len(page)-1].ID

		if err := s.processPage(ctx, r, page); err != nil {
			return err
		}
		r.log.Flush()
	}
}

// processPage syncs one page and clears the pending action of the products
// it attempted. On failure the products synced before the failing one are
// still cleared.
func (s *ProductSyncService) processPage(ctx context.Context, r *run, page []catalog.Product) error {
	attempted := make([]int64, 0, len(page))

	var syncErr error
	for i := range page {
		product := &page[i]
		if !product.HasPendingAction() {
			continue
		}

		skipped, err := s.syncProduct(ctx, r, product)
		if err != nil {
			syncErr = fmt.Errorf("sync product %d (%s): %w", product.ID, product.Handle, err)
			break
		}
		if !skipped || s.config.ClearSkipped {
			attempted = append(attempted, product.ID)
		}
	}

	clearCtx := ctx
	if syncErr != nil {
		clearCtx = context.WithoutCancel(ctx)
	}
	if err := s.repo.ClearPendingActions(clearCtx, attempted); err != nil {
		if syncErr != nil {
			s.logger.Error("Failed to clear pending actions after aborted page",
				zap.Int("count", len(attempted)),
				zap.Error(err),
			)
			return syncErr
		}
		return fmt.Errorf("clear pending actions: %w", err)
	}
	r.report.Cleared += len(attempted)

	return syncErr
}

// syncProduct pushes one product and reports whether it was skipped
func (s *ProductSyncService) syncProduct(ctx context.Context, r *run, product *catalog.Product) (bool, error) {
	action := product.ActionRequired.String()

	existing, err := s.transformer.Snapshot(ctx, product)
	if err != nil {
		return false, err
	}

	if product.ActionRequired.TargetsExisting() {
		if tag, ok := existing.MatchingTag(s.config.SkipTags); ok {
			r.report.Skipped++
			s.metrics.RecordProduct(ctx, action, OutcomeSkipped)
			s.logger.Info("Skipping product with protected remote tag",
				zap.Int64("product_id", product.ID),
				zap.String("handle", product.Handle),
				zap.String("action", action),
				zap.String("tag", tag),
			)
			return true, nil
		}
	}

	vars, err := s.transformer.Transform(ctx, product, existing)
	if err != nil {
		return false, err
	}

	if err := r.pacer.Wait(ctx); err != nil {
		return false, err
	}

	result, err := s.platform.UpsertProduct(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("upsert: %w", err)
	}

	if result.HasUserErrors() {
		r.report.UserErrors += len(result.UserErrors)
		s.metrics.RecordUserErrors(ctx, len(result.UserErrors))
		s.logger.Warn("Remote rejected part of the product",
			zap.Int64("product_id", product.ID),
			zap.String("handle", product.Handle),
			zap.Any("user_errors", result.UserErrors),
		)
	}

	r.log.Record(integration.MutationLogEntry{
		Timestamp: s.now().UTC(),
		ProductID: product.ID,
		Handle:    product.Handle,
		Action:    action,
		Response:  result.Raw,
	})
	r.report.Processed++
	s.metrics.RecordProduct(ctx, action, OutcomeSynced)

	if r.log.Size() >= s.config.FlushThreshold {
		r.log.Flush()
	}
	return false, nil
}

func (s *ProductSyncService) archive(ctx context.Context, r *run) {
	if s.archiver == nil || r.report.Processed == 0 {
		return
	}
	if err := s.archiver.Archive(context.WithoutCancel(ctx), r.log.Path()); err != nil {
		s.logger.Warn("Failed to archive audit log",
			zap.String("path", r.log.Path()),
			zap.Error(err),
		)
	}
}

// newPacer allows one mutation per delay; the first one goes out at once
func newPacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
