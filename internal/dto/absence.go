package dto

// ── 缺勤模块请求 ──

// CreateAbsenceRequest 登记缺勤
type CreateAbsenceRequest struct {
	UserID string  `json:"user_id" binding:"required,uuid"`
	Date   string  `json:"date"    binding:"required"`
	Period string  `json:"period"  binding:"required,oneof=FULL AM PM"`
	Reason *string `json:"reason"  binding:"omitempty,max=500"`
}

// ── 缺勤模块响应 ──

// AbsenceResponse 缺勤记录
type AbsenceResponse struct {
	ID     string  `json:"id"`
	UserID string  `json:"user_id"`
	Date   string  `json:"date"`
	Period string  `json:"period"`
	Reason *string `json:"reason,omitempty"`
	Source string  `json:"source"`
}

// ImportAbsenceResponse ICS 导入结果
type ImportAbsenceResponse struct {
	Imported int               `json:"imported"`
	Skipped  int               `json:"skipped"` // 周末或无法识别的事件
	Absences []AbsenceResponse `json:"absences"`
}
