package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	User              UserRepository
	TestRecord        TestRecordRepository
	Absence           AbsenceRepository
	NotificationEvent NotificationEventRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		User:              NewUserRepo(db),
		TestRecord:        NewTestRecordRepo(db),
		Absence:           NewAbsenceRepo(db),
		NotificationEvent: NewNotificationEventRepo(db),
	}
}

// [自证通过] internal/repository/repository.go
