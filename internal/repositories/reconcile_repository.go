package repositories

import (
	"context"
	"time"

	"github.com/anonto42/instaverse/backend/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReconcileRepository stores notification deltas that still have to be applied
type ReconcileRepository interface {
	Record(ctx context.Context, operation string, delta models.Delta, cause error) error
	Pending(ctx context.Context, limit int) ([]models.PendingDelta, error)
	MarkApplied(ctx context.Context, id uint) error
	MarkFailed(ctx context.Context, id uint, cause error) error
	CountPending(ctx context.Context) (int64, error)
}

type sqlReconcileRepository struct {
	db *gorm.DB
}

// NewSQLReconcileRepository works on any gorm dialect (postgres in production, sqlite in tests)
func NewSQLReconcileRepository(db *gorm.DB) ReconcileRepository {
	return &sqlReconcileRepository{db: db}
}

// MigrateReconcile creates the ledger table
func MigrateReconcile(db *gorm.DB) error {
	return db.AutoMigrate(&models.PendingDelta{})
}

func (r *sqlReconcileRepository) Record(ctx context.Context, operation string, delta models.Delta, cause error) error {
	row := models.PendingDelta{
		Operation: operation,
		Payload:   datatypes.NewJSONType(delta),
	}
	if cause != nil {
		row.LastError = cause.Error()
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// Pending returns unapplied deltas, oldest first
func (r *sqlReconcileRepository) Pending(ctx context.Context, limit int) ([]models.PendingDelta, error) {
	var rows []models.PendingDelta
	err := r.db.WithContext(ctx).
		Where("applied_at IS NULL").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *sqlReconcileRepository) MarkApplied(ctx context.Context, id uint) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.PendingDelta{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"applied_at": &now, "last_error": ""}).Error
}

func (r *sqlReconcileRepository) MarkFailed(ctx context.Context, id uint, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.db.WithContext(ctx).Model(&models.PendingDelta{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": msg,
		}).Error
}

func (r *sqlReconcileRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PendingDelta{}).Where("applied_at IS NULL").Count(&count).Error
	return count, err
}
