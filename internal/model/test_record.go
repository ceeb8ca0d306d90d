package model

import "time"

// TestRecord 检测记录表 — 对应 test_records
// 创建后不可修改。TestPeriod 由提交者选择，仅作参考；合规判定以 TestTime 为准
type TestRecord struct {
	TestRecordID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"test_record_id"`
	UserID       string    `gorm:"type:uuid;not null"                             json:"user_id"`
	TestDate     Date      `gorm:"type:date;not null"                             json:"test_date"`
	TestTime     string    `gorm:"type:time;not null"                             json:"test_time"` // HH:MM:SS 本地挂钟时间
	TestPeriod   string    `gorm:"type:varchar(4);not null"                       json:"test_period"` // AM | PM
	Passed       bool      `gorm:"not null"                                       json:"passed"`
	Notes        *string   `gorm:"type:text"                                      json:"notes,omitempty"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (TestRecord) TableName() string { return "test_records" }

// ReportRow 周报行：检测记录 ⋈ 用户
type ReportRow struct {
	TestDate     Date    `gorm:"column:test_date"`
	TestTime     string  `gorm:"column:test_time"`
	TestPeriod   string  `gorm:"column:test_period"`
	Passed       bool    `gorm:"column:passed"`
	FirstName    string  `gorm:"column:first_name"`
	LastName     string  `gorm:"column:last_name"`
	ManagerEmail *string `gorm:"column:manager_email"`
}
