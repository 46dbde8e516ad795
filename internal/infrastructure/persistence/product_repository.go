package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

var _ catalog.ProductRepository = (*GormProductRepository)(nil)

// FindPendingAfter returns one keyset page of products carrying a pending action.
// Paging by id rather than offset keeps later pages stable while markers of
// earlier pages are being cleared.
func (r *GormProductRepository) FindPendingAfter(ctx context.Context, afterID int64, limit int) ([]catalog.Product, error) {
	if limit <= 0 {
		return nil, catalog.ErrInvalidPageSize
	}

	var rows []models.ProductModel
	err := r.db.WithContext(ctx).
		Preload("OptionValues", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("action_required IS NOT NULL AND id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find pending products after %d: %w", afterID, err)
	}

	products := make([]catalog.Product, 0, len(rows))
	for i := range rows {
		p, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, nil
}

// ClearPendingActions sets action_required to NULL for the given products
func (r *GormProductRepository) ClearPendingActions(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"action_required": nil,
			"updated_at":      time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("clear pending actions for %d products: %w", len(ids), err)
	}
	return nil
}

// CountPending returns the number of products carrying a pending action
func (r *GormProductRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("action_required IS NOT NULL").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count pending products: %w", err)
	}
	return count, nil
}
