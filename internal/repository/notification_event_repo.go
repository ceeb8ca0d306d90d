package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"compliance-tracker/internal/model"
)

// NotificationEventRepository 告警发送记录数据访问接口
type NotificationEventRepository interface {
	// Exists 判断 (user, date, period) 是否已发送过告警
	Exists(ctx context.Context, userID string, date model.Date, period string) (bool, error)
	// Record 写入发送记录；同一 key 重复写入静默忽略，返回是否新插入
	Record(ctx context.Context, event *model.NotificationEvent) (bool, error)
}

type notificationEventRepo struct {
	db *gorm.DB
}

// NewNotificationEventRepo 创建 NotificationEventRepository 实例
func NewNotificationEventRepo(db *gorm.DB) NotificationEventRepository {
	return &notificationEventRepo{db: db}
}

func (r *notificationEventRepo) Exists(ctx context.Context, userID string, date model.Date, period string) (bool, error) {
	var ev model.NotificationEvent
	err := r.db.WithContext(ctx).
		Select("notification_event_id").
		Where("user_id = ? AND event_date = ? AND period = ?", userID, date.String(), period).
		Take(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *notificationEventRepo) Record(ctx context.Context, event *model.NotificationEvent) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "event_date"}, {Name: "period"}},
			DoNothing: true,
		}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
