package dto

// ── 检测提醒批次 ──

// 单个用户在一次批次中的处理结果
const (
	OutcomeSent    = "sent"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// 跳过或失败的原因（合规评估原因之外的补充）
const (
	ReasonNotMissing      = "not_missing"
	ReasonAlreadyNotified = "already_notified"
	ReasonInFlight        = "in_flight"
	ReasonNoManagerEmail  = "no_manager_email"
	ReasonLookupFailed    = "lookup_failed"
	ReasonSendFailed      = "send_failed"
)

// CheckResult 单个用户的批次处理结果
type CheckResult struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Status  string `json:"status"`  // Compliant / Missing / Exempt / NotApplicable
	Outcome string `json:"outcome"` // sent / skipped / failed
	Reason  string `json:"reason,omitempty"`
}

// CheckOutcome 一次检测提醒批次的汇总
type CheckOutcome struct {
	RunID   string        `json:"run_id"`
	Period  string        `json:"period"`
	Date    string        `json:"date"`
	Sent    int           `json:"sent"`
	Skipped int           `json:"skipped"`
	Failed  int           `json:"failed"`
	Results []CheckResult `json:"results"`
}

// Add 累加单个结果
func (o *CheckOutcome) Add(r CheckResult) {
	switch r.Outcome {
	case OutcomeSent:
		o.Sent++
	case OutcomeFailed:
		o.Failed++
	default:
		o.Skipped++
	}
	o.Results = append(o.Results, r)
}

// ── 周报 ──

// ReportOutcome 周报发送结果
type ReportOutcome struct {
	From        string   `json:"from"`
	To          string   `json:"to"`
	Recipient   string   `json:"recipient"`
	RowCount    int      `json:"row_count"`
	Attachments []string `json:"attachments"`
}

// ── 合规看板 / 历史 ──

// StatusQuery 合规看板查询参数
type StatusQuery struct {
	Date   string `form:"date"`
	Period string `form:"period" binding:"omitempty,oneof=AM PM am pm"`
}

// StatusEntry 看板中的单个用户
type StatusEntry struct {
	UserID          string   `json:"user_id"`
	Name            string   `json:"name"`
	Status          string   `json:"status"`
	Reason          string   `json:"reason,omitempty"`
	MatchedRecordID string   `json:"matched_record_id,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

// StatusBoardResponse 某日某时段的合规看板
type StatusBoardResponse struct {
	Date    string         `json:"date"`
	Period  string         `json:"period"`
	Window  string         `json:"window"`
	Summary map[string]int `json:"summary"` // status → 人数
	Entries []StatusEntry  `json:"entries"`
}

// HistoryQuery 个人历史查询参数
type HistoryQuery struct {
	From string `form:"from" binding:"required"`
	To   string `form:"to"   binding:"required"`
}

// HistoryPeriod 历史视图中单个时段
type HistoryPeriod struct {
	Status          string `json:"status"`
	Reason          string `json:"reason,omitempty"`
	MatchedRecordID string `json:"matched_record_id,omitempty"`
}

// HistoryDay 历史视图中的一天
type HistoryDay struct {
	Date string        `json:"date"`
	AM   HistoryPeriod `json:"am"`
	PM   HistoryPeriod `json:"pm"`
}

// UserHistoryResponse 个人合规历史
type UserHistoryResponse struct {
	UserID string       `json:"user_id"`
	Name   string       `json:"name"`
	From   string       `json:"from"`
	To     string       `json:"to"`
	Days   []HistoryDay `json:"days"`
}
