package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"compliance-tracker/internal/compliance"
	"compliance-tracker/internal/dto"
	"compliance-tracker/internal/model"
	"compliance-tracker/internal/service"
	"compliance-tracker/pkg/response"
)

// ComplianceHandler 合规查询 HTTP 处理器
type ComplianceHandler struct {
	svc service.ComplianceService
	loc *time.Location
	now func() time.Time
}

// NewComplianceHandler 创建 ComplianceHandler
func NewComplianceHandler(svc service.ComplianceService, loc *time.Location) *ComplianceHandler {
	return &ComplianceHandler{svc: svc, loc: loc, now: time.Now}
}

// GetStatus 某日某时段的合规看板
// GET /api/v1/compliance/status?date=YYYY-MM-DD&period=AM|PM
// period 缺省时按当前本地时间取：PM 窗口开始前为 AM，否则为 PM
func (h *ComplianceHandler) GetStatus(c *gin.Context) {
	var q dto.StatusQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "请求参数错误")
		return
	}

	now := h.now()
	date, ok := queryDate(c, "date", h.svc.Today(now))
	if !ok {
		return
	}

	period := defaultPeriod(now.In(h.loc))
	if q.Period != "" {
		p, err := compliance.ParsePeriod(q.Period)
		if err != nil {
			response.BadRequest(c, 21101, "时段无效，应为 AM 或 PM")
			return
		}
		period = p
	}

	board, err := h.svc.GetDailyStatus(c.Request.Context(), date, period)
	if err != nil {
		handleComplianceError(c, err)
		return
	}
	response.OK(c, board)
}

// GetUserHistory 个人合规历史
// GET /api/v1/compliance/users/:id/history?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *ComplianceHandler) GetUserHistory(c *gin.Context) {
	var q dto.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "from 与 to 不能为空")
		return
	}
	from, err := model.ParseDate(q.From)
	if err != nil {
		response.BadRequest(c, response.CodeBadRequest, "from 格式无效，应为 YYYY-MM-DD")
		return
	}
	to, err := model.ParseDate(q.To)
	if err != nil {
		response.BadRequest(c, response.CodeBadRequest, "to 格式无效，应为 YYYY-MM-DD")
		return
	}

	hist, err := h.svc.GetUserHistory(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		handleComplianceError(c, err)
		return
	}
	response.OK(c, hist)
}

func defaultPeriod(local time.Time) compliance.Period {
	pm, _ := compliance.WindowFor(compliance.PeriodPM)
	if compliance.ClockOf(local) < pm.Start {
		return compliance.PeriodAM
	}
	return compliance.PeriodPM
}

func handleComplianceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, compliance.ErrInvalidPeriod):
		response.BadRequest(c, 21101, "时段无效，应为 AM 或 PM")
	case errors.Is(err, service.ErrHistoryRangeInvalid):
		response.BadRequest(c, 21102, "日期范围无效：from 不能晚于 to")
	case errors.Is(err, service.ErrHistoryRangeTooLarge):
		response.BadRequest(c, 21103, "日期范围过大，最多 31 天")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 21104, "用户不存在")
	default:
		response.InternalError(c)
	}
}
