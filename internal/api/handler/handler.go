package handler

import (
	"time"

	"go.uber.org/zap"

	"compliance-tracker/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Ops        *OpsHandler
	Compliance *ComplianceHandler
	Absence    *AbsenceHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, loc *time.Location, logger *zap.Logger) *Handler {
	return &Handler{
		Ops:        NewOpsHandler(svc.Notification, svc.Report, loc, logger),
		Compliance: NewComplianceHandler(svc.Compliance, loc),
		Absence:    NewAbsenceHandler(svc.Absence, logger),
	}
}
