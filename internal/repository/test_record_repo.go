package repository

import (
	"context"

	"gorm.io/gorm"

	"compliance-tracker/internal/model"
)

// TestRecordRepository 检测记录数据访问接口
// 日期参数只取其年月日，统一按 DateLayout 传给数据库，避免时区换算
type TestRecordRepository interface {
	// ListByDate 某日全部检测记录
	ListByDate(ctx context.Context, date model.Date) ([]model.TestRecord, error)
	// ListByUserBetween 某用户 [from, to] 日期范围内的检测记录
	ListByUserBetween(ctx context.Context, userID string, from, to model.Date) ([]model.TestRecord, error)
	// ListReportRows [from, to] 内的检测记录联表用户信息，按日期、时间倒序
	ListReportRows(ctx context.Context, from, to model.Date) ([]model.ReportRow, error)
}

type testRecordRepo struct {
	db *gorm.DB
}

// NewTestRecordRepo 创建 TestRecordRepository 实例
func NewTestRecordRepo(db *gorm.DB) TestRecordRepository {
	return &testRecordRepo{db: db}
}

func (r *testRecordRepo) ListByDate(ctx context.Context, date model.Date) ([]model.TestRecord, error) {
	var records []model.TestRecord
	err := r.db.WithContext(ctx).
		Where("test_date = ?", date.String()).
		Order("user_id ASC, test_time ASC").
		Find(&records).Error
	return records, err
}

func (r *testRecordRepo) ListByUserBetween(ctx context.Context, userID string, from, to model.Date) ([]model.TestRecord, error) {
	var records []model.TestRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND test_date BETWEEN ? AND ?",
			userID, from.String(), to.String()).
		Order("test_date ASC, test_time ASC").
		Find(&records).Error
	return records, err
}

func (r *testRecordRepo) ListReportRows(ctx context.Context, from, to model.Date) ([]model.ReportRow, error) {
	var rows []model.ReportRow
	err := r.db.WithContext(ctx).
		Table("test_records AS tr").
		Select("tr.test_date, tr.test_time, tr.test_period, tr.passed, u.first_name, u.last_name, u.manager_email").
		Joins("JOIN users AS u ON u.user_id = tr.user_id").
		Where("tr.test_date BETWEEN ? AND ?", from.String(), to.String()).
		Order("tr.test_date DESC, tr.test_time DESC").
		Scan(&rows).Error
	return rows, err
}
