package repository

import (
	"context"

	"gorm.io/gorm"

	"compliance-tracker/internal/model"
)

// AbsenceRepository 缺勤数据访问接口
type AbsenceRepository interface {
	ListByDate(ctx context.Context, date model.Date) ([]model.Absence, error)
	ListByUserBetween(ctx context.Context, userID string, from, to model.Date) ([]model.Absence, error)
	Create(ctx context.Context, absence *model.Absence) error
	BatchCreate(ctx context.Context, absences []model.Absence) error
}

type absenceRepo struct {
	db *gorm.DB
}

// NewAbsenceRepo 创建 AbsenceRepository 实例
func NewAbsenceRepo(db *gorm.DB) AbsenceRepository {
	return &absenceRepo{db: db}
}

func (r *absenceRepo) ListByDate(ctx context.Context, date model.Date) ([]model.Absence, error) {
	var absences []model.Absence
	err := r.db.WithContext(ctx).
		Where("absence_date = ?", date.String()).
		Order("user_id ASC").
		Find(&absences).Error
	return absences, err
}

func (r *absenceRepo) ListByUserBetween(ctx context.Context, userID string, from, to model.Date) ([]model.Absence, error) {
	var absences []model.Absence
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND absence_date BETWEEN ? AND ?",
			userID, from.String(), to.String()).
		Order("absence_date ASC").
		Find(&absences).Error
	return absences, err
}

func (r *absenceRepo) Create(ctx context.Context, absence *model.Absence) error {
	return r.db.WithContext(ctx).Create(absence).Error
}

// BatchCreate 在单个事务中批量插入
func (r *absenceRepo) BatchCreate(ctx context.Context, absences []model.Absence) error {
	if len(absences) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(absences, 100).Error
	})
}
