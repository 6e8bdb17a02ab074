package bulk

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chachabrian/clearinghouse-backend/internal/clearinghouse"
	"github.com/chachabrian/clearinghouse-backend/internal/models"
	"gorm.io/gorm"
)

// OperationStore persists bulk operation records.
type OperationStore interface {
	Create(ctx context.Context, op *models.BulkOperation) error
	Save(ctx context.Context, op *models.BulkOperation) error
	LastExportedTimestamp(ctx context.Context, userID uint) (*time.Time, error)
	ListForUser(ctx context.Context, userID uint, limit int) ([]models.BulkOperation, error)
	Find(ctx context.Context, userID, id uint) (*models.BulkOperation, error)
}

type GormOperationStore struct {
	db *gorm.DB
}

func NewGormOperationStore(db *gorm.DB) *GormOperationStore {
	return &GormOperationStore{db: db}
}

func (s *GormOperationStore) Create(ctx context.Context, op *models.BulkOperation) error {
	if err := s.db.WithContext(ctx).Create(op).Error; err != nil {
		return fmt.Errorf("create bulk operation: %w", err)
	}
	return nil
}

func (s *GormOperationStore) Save(ctx context.Context, op *models.BulkOperation) error {
	if err := s.db.WithContext(ctx).Save(op).Error; err != nil {
		return fmt.Errorf("save bulk operation: %w", err)
	}
	return nil
}

// LastExportedTimestamp is the newest watermark of the user's exports, or nil
// when the user never exported.
func (s *GormOperationStore) LastExportedTimestamp(ctx context.Context, userID uint) (*time.Time, error) {
	var latest sql.NullTime
	err := s.db.WithContext(ctx).Model(&models.BulkOperation{}).
		Where("user_id = ? AND is_upload = ?", userID, false).
		Select("MAX(last_exported_timestamp)").
		Row().Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("load export watermark: %w", err)
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}

func (s *GormOperationStore) ListForUser(ctx context.Context, userID uint, limit int) ([]models.BulkOperation, error) {
	var ops []models.BulkOperation
	query := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&ops).Error; err != nil {
		return nil, fmt.Errorf("list bulk operations: %w", err)
	}
	return ops, nil
}

// Find loads an operation owned by userID. Other users' operations are
// reported as missing.
func (s *GormOperationStore) Find(ctx context.Context, userID, id uint) (*models.BulkOperation, error) {
	var op models.BulkOperation
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&op, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, clearinghouse.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load bulk operation: %w", err)
	}
	return &op, nil
}
