package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"compliance-tracker/internal/dto"
	"compliance-tracker/internal/service"
	"compliance-tracker/pkg/response"
)

// importFormMemory multipart 表单在内存中保留的上限，超出部分落临时文件
const importFormMemory = 4 << 20

// AbsenceHandler 缺勤模块 HTTP 处理器
type AbsenceHandler struct {
	svc    service.AbsenceService
	logger *zap.Logger
}

// NewAbsenceHandler 创建 AbsenceHandler
func NewAbsenceHandler(svc service.AbsenceService, logger *zap.Logger) *AbsenceHandler {
	return &AbsenceHandler{svc: svc, logger: logger}
}

// CreateAbsence 登记缺勤
// POST /api/v1/absences
func (h *AbsenceHandler) CreateAbsence(c *gin.Context) {
	var req dto.CreateAbsenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeBadRequest, "请求参数错误", err.Error())
		return
	}

	resp, err := h.svc.CreateAbsence(c.Request.Context(), &req)
	if err != nil {
		handleAbsenceError(c, err)
		return
	}
	response.Created(c, resp)
}

// ImportICS 从 iCalendar 导入缺勤
// POST /api/v1/absences/import  (multipart: user_id + file，或 user_id + url)
func (h *AbsenceHandler) ImportICS(c *gin.Context) {
	operatorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := c.Request.ParseMultipartForm(importFormMemory); err != nil {
		if isBodyTooLarge(err, c) {
			return
		}
		response.BadRequest(c, 22100, "请使用 multipart/form-data 提交")
		return
	}
	userID := strings.TrimSpace(c.Request.FormValue("user_id"))
	if userID == "" {
		response.BadRequest(c, 22100, "user_id 不能为空")
		return
	}

	var body io.ReadCloser
	if file, _, err := c.Request.FormFile("file"); err == nil {
		body = file
	} else if rawURL := c.Request.FormValue("url"); rawURL != "" {
		body, err = service.FetchICSContent(c.Request.Context(), rawURL)
		if err != nil {
			response.ErrorWithDetails(c, http.StatusBadRequest, 22105, "ICS URL 获取失败", err.Error())
			return
		}
	} else {
		response.BadRequest(c, 22100, "请上传 ICS 文件或提供 ICS URL")
		return
	}
	defer body.Close()

	resp, err := h.svc.ImportICS(c.Request.Context(), userID, body)
	if err != nil {
		handleAbsenceError(c, err)
		return
	}

	h.logger.Info("ICS 缺勤导入",
		zap.String("operator_id", operatorID),
		zap.String("user_id", userID),
		zap.Int("imported", resp.Imported),
	)
	response.Created(c, resp)
}

// isBodyTooLarge 请求体超出 BodyLimit 时写入 413
func isBodyTooLarge(err error, c *gin.Context) bool {
	var maxErr *http.MaxBytesError
	if err != nil && (errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")) {
		response.TooLarge(c)
		return true
	}
	return false
}

func handleAbsenceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidDate):
		response.BadRequest(c, 22101, "日期格式无效，应为 YYYY-MM-DD")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 22102, "用户不存在")
	case errors.Is(err, service.ErrICSParseFailed):
		response.BadRequest(c, 22103, "ICS 文件解析失败")
	case errors.Is(err, service.ErrICSNoAbsence):
		response.BadRequest(c, 22104, "ICS 文件中没有可导入的缺勤")
	default:
		response.InternalError(c)
	}
}
