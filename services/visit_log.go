package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/qrgate/models"
)

// VisitLog is the append-only store of gate decisions.
type VisitLog interface {
	Append(ctx context.Context, status models.Status, at time.Time) (uint, error)
	ListAll(ctx context.Context) ([]models.VisitRecord, error)
	CountByStatus(ctx context.Context) (map[models.Status]int64, error)
}

// GormVisitLog stores visits in the registros table through a pooled gorm handle.
type GormVisitLog struct {
	db *gorm.DB
}

// NewVisitLog creates a VisitLog backed by db.
func NewVisitLog(db *gorm.DB) *GormVisitLog {
	return &GormVisitLog{db: db}
}

// Append inserts one record stamped with at and returns the id assigned by the engine.
func (s *GormVisitLog) Append(ctx context.Context, status models.Status, at time.Time) (uint, error) {
	if !status.Valid() {
		return 0, fmt.Errorf("append visit: unknown status %q", status)
	}
	rec := models.VisitRecord{Fecha: at, Estado: status}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return 0, fmt.Errorf("%w: append visit: %v", ErrStorageUnavailable, err)
	}
	return rec.ID, nil
}

// ListAll returns every record in insertion order (ascending id).
func (s *GormVisitLog) ListAll(ctx context.Context) ([]models.VisitRecord, error) {
	var records []models.VisitRecord
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("%w: list visits: %v", ErrStorageUnavailable, err)
	}
	return records, nil
}

// CountByStatus returns the number of rows per status; unseen statuses count as zero.
func (s *GormVisitLog) CountByStatus(ctx context.Context) (map[models.Status]int64, error) {
	type row struct {
		Estado models.Status
		Total  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&models.VisitRecord{}).
		Select("estado, COUNT(*) AS total").
		Group("estado").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: count visits: %v", ErrStorageUnavailable, err)
	}

	counts := map[models.Status]int64{
		models.StatusActive:   0,
		models.StatusInactive: 0,
	}
	for _, r := range rows {
		counts[r.Estado] = r.Total
	}
	return counts, nil
}
