package service

import (
	"time"

	"go.uber.org/zap"

	"compliance-tracker/config"
	"compliance-tracker/internal/repository"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Notification NotificationService
	Report       ReportService
	Absence      AbsenceService
	Compliance   ComplianceService
}

// NewService 创建 Service 聚合
// mail / locker 允许为 nil（邮件未配置 / Redis 不可用），调用方需传入真正的 nil 接口值
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	mail Mailer,
	locker DispatchLocker,
	loc *time.Location,
	logger *zap.Logger,
) *Service {
	return &Service{
		Notification: NewNotificationService(repo, mail, locker, loc, logger.Named("notification")),
		Report:       NewReportService(repo, mail, cfg.Report.Recipient, loc, logger.Named("report")),
		Absence:      NewAbsenceService(repo, loc, logger),
		Compliance:   NewComplianceService(repo, loc, logger),
	}
}
