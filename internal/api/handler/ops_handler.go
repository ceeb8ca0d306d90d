package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"compliance-tracker/internal/compliance"
	"compliance-tracker/internal/service"
	"compliance-tracker/pkg/response"
)

// OpsHandler 运维操作 HTTP 处理器：手动重跑批次、发送 / 下载周报
type OpsHandler struct {
	notificationSvc service.NotificationService
	reportSvc       service.ReportService
	loc             *time.Location
	now             func() time.Time
	logger          *zap.Logger
}

// NewOpsHandler 创建 OpsHandler
func NewOpsHandler(notificationSvc service.NotificationService, reportSvc service.ReportService, loc *time.Location, logger *zap.Logger) *OpsHandler {
	return &OpsHandler{
		notificationSvc: notificationSvc,
		reportSvc:       reportSvc,
		loc:             loc,
		now:             time.Now,
		logger:          logger,
	}
}

// asOf 未指定 date 时使用当前时刻，否则使用该日零点
func (h *OpsHandler) asOf(c *gin.Context) (time.Time, bool) {
	if c.Query("date") == "" {
		return h.now(), true
	}
	d, ok := queryDate(c, "date", compliance.DayOf(h.now(), h.loc))
	if !ok {
		return time.Time{}, false
	}
	return d.In(h.loc), true
}

// windowOpen 判断 asOf 所在日的时段窗口是否尚未结束（含未来日期）
func (h *OpsHandler) windowOpen(period compliance.Period, asOf time.Time) bool {
	w, ok := compliance.WindowFor(period)
	if !ok {
		return false
	}
	now := h.now().In(h.loc)
	day, today := compliance.DayOf(asOf, h.loc), compliance.DayOf(now, h.loc)
	if day.After(today.Time) {
		return true
	}
	return day.Equal(today.Time) && compliance.ClockOf(now) <= w.End
}

// RunCheck 手动重跑漏检提醒批次
// POST /api/v1/ops/checks/:period?date=YYYY-MM-DD
func (h *OpsHandler) RunCheck(c *gin.Context) {
	operatorID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	period, err := compliance.ParsePeriod(c.Param("period"))
	if err != nil {
		response.BadRequest(c, 20101, "时段无效，应为 AM 或 PM")
		return
	}
	asOf, ok := h.asOf(c)
	if !ok {
		return
	}

	// 窗口未结束时当天仍可补测，提前提醒会误报
	if h.windowOpen(period, asOf) {
		h.logger.Warn("检测窗口尚未结束，拒绝手动批次",
			zap.String("operator_id", operatorID),
			zap.String("period", string(period)),
			zap.Time("as_of", asOf),
		)
		response.Conflict(c, 20104, "检测窗口尚未结束")
		return
	}

	h.logger.Info("手动触发漏检提醒",
		zap.String("operator_id", operatorID),
		zap.String("period", string(period)),
		zap.Time("as_of", asOf),
	)
	// 批次一旦开始需完整执行，客户端断开不应中途取消
	outcome, err := h.notificationSvc.RunCheck(context.WithoutCancel(c.Request.Context()), period, asOf)
	if err != nil {
		handleOpsError(c, err)
		return
	}
	response.OK(c, outcome)
}

// SendWeeklyReport 立即发送周报
// POST /api/v1/ops/reports/weekly?date=YYYY-MM-DD
func (h *OpsHandler) SendWeeklyReport(c *gin.Context) {
	operatorID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	asOf, ok := h.asOf(c)
	if !ok {
		return
	}

	h.logger.Info("手动发送周报", zap.String("operator_id", operatorID), zap.Time("as_of", asOf))
	outcome, err := h.reportSvc.SendWeeklyReport(context.WithoutCancel(c.Request.Context()), asOf)
	if err != nil {
		handleOpsError(c, err)
		return
	}
	response.OK(c, outcome)
}

// DownloadWeeklyCSV 下载周报 CSV
// GET /api/v1/ops/reports/weekly.csv?date=YYYY-MM-DD
func (h *OpsHandler) DownloadWeeklyCSV(c *gin.Context) {
	asOf, ok := h.asOf(c)
	if !ok {
		return
	}

	report, err := h.reportSvc.BuildReport(c.Request.Context(), asOf)
	if err != nil {
		handleOpsError(c, err)
		return
	}

	// 设置下载响应头
	filename := url.QueryEscape(report.Filename() + ".csv")
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+filename)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", report.CSV)
}

func handleOpsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, compliance.ErrInvalidPeriod):
		response.BadRequest(c, 20101, "时段无效，应为 AM 或 PM")
	case errors.Is(err, service.ErrMailNotConfigured):
		response.ServiceUnavailable(c, 20102, "邮件服务未配置")
	case errors.Is(err, service.ErrReportRecipientMissing):
		response.ServiceUnavailable(c, 20103, "未配置周报收件人")
	case errors.Is(err, service.ErrReportGenerateFail):
		response.InternalError(c)
	default:
		response.InternalError(c)
	}
}
