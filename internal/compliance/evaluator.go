package compliance

import (
	"fmt"
	"strings"
	"time"

	"compliance-tracker/internal/model"
)

// Status 合规判定结果
type Status string

const (
	StatusCompliant     Status = "Compliant"     // 窗口内已完成检测
	StatusMissing       Status = "Missing"       // 应检未检
	StatusExempt        Status = "Exempt"        // 缺勤覆盖
	StatusNotApplicable Status = "NotApplicable" // 免检 / 停用 / 非工作日
)

// 不适用或豁免的原因
const (
	ReasonExemptFromTesting = "exempt_from_testing"
	ReasonInactive          = "inactive"
	ReasonNonWorkday        = "non_workday"
	ReasonAbsence           = "absence"
	ReasonNoUser            = "no_user"
)

// Input 一次合规评估的全部输入
// Records / Absences 可以包含其他用户或其他日期的数据，评估时自行过滤
type Input struct {
	User     *model.User
	Date     model.Date
	Period   Period
	Records  []model.TestRecord
	Absences []model.Absence
	Location *time.Location
}

// Result 单个 (user, date, period) 的评估结果
type Result struct {
	Status          Status   `json:"status"`
	Period          Period   `json:"period"`
	Date            string   `json:"date"`
	Reason          string   `json:"reason,omitempty"`
	MatchedRecordID string   `json:"matched_record_id,omitempty"`
	Warnings        []string `json:"warnings,omitempty"` // 数据不一致提示，由调用方记录日志
}

// Evaluate 判定用户在某日某时段是否合规
//
// 判定顺序：
//  1. 免检、停用、非工作日 → NotApplicable
//  2. 存在覆盖该时段的缺勤（FULL 覆盖 AM 与 PM）→ Exempt
//  3. 存在标签等于该时段且挂钟时间落在窗口内的检测记录 → Compliant
//  4. 其余 → Missing
//
// 纯函数：相同输入恒得相同输出。数据不一致只会让结果更严格（偏向多通知），并记入 Warnings。
func Evaluate(in Input) Result {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	day := in.Date.In(loc)
	res := Result{Period: in.Period, Date: in.Date.String()}

	u := in.User
	switch {
	case u == nil:
		return res.with(StatusNotApplicable, ReasonNoUser)
	case u.ExemptFromTesting:
		return res.with(StatusNotApplicable, ReasonExemptFromTesting)
	case !u.IsActive:
		return res.with(StatusNotApplicable, ReasonInactive)
	case !IsWorkday(day, loc):
		return res.with(StatusNotApplicable, ReasonNonWorkday)
	}

	window, ok := WindowFor(in.Period)
	if !ok {
		res.warn("无法识别的评估时段 %q，按未检处理", in.Period)
		return res.with(StatusMissing, "")
	}

	for _, a := range in.Absences {
		if a.UserID != u.UserID || a.AbsenceDate.String() != res.Date {
			continue
		}
		scope := strings.ToUpper(strings.TrimSpace(a.Period))
		switch scope {
		case model.AbsenceFull, string(in.Period):
			return res.with(StatusExempt, ReasonAbsence)
		case model.AbsenceAM, model.AbsencePM:
		default:
			res.warn("缺勤记录 %s 的时段 %q 无法识别，已忽略", a.AbsenceID, a.Period)
		}
	}

	for _, r := range in.Records {
		if r.UserID != u.UserID || r.TestDate.String() != res.Date {
			continue
		}
		tag, err := ParsePeriod(r.TestPeriod)
		if err != nil {
			res.warn("检测记录 %s 的时段标签 %q 无法识别，已忽略", r.TestRecordID, r.TestPeriod)
			continue
		}
		if tag != in.Period {
			continue
		}
		clock, err := ParseClock(r.TestTime)
		if err != nil {
			res.warn("检测记录 %s 的时间 %q 无法解析，已忽略", r.TestRecordID, r.TestTime)
			continue
		}
		if !window.Contains(clock) {
			res.warn("检测记录 %s 标记为 %s，但提交时间 %s 不在窗口 %s 内", r.TestRecordID, tag, clock, window)
			continue
		}
		res.MatchedRecordID = r.TestRecordID
		return res.with(StatusCompliant, "")
	}

	return res.with(StatusMissing, "")
}

// DayResult 某日 AM 与 PM 两个时段的评估结果
type DayResult struct {
	Date string `json:"date"`
	AM   Result `json:"am"`
	PM   Result `json:"pm"`
}

// EvaluateDay 评估某日的两个时段（用于历史视图）
func EvaluateDay(user *model.User, date model.Date, records []model.TestRecord, absences []model.Absence, loc *time.Location) DayResult {
	in := Input{User: user, Date: date, Records: records, Absences: absences, Location: loc}

	in.Period = PeriodAM
	am := Evaluate(in)
	in.Period = PeriodPM
	pm := Evaluate(in)

	return DayResult{Date: am.Date, AM: am, PM: pm}
}

func (r Result) with(s Status, reason string) Result {
	r.Status = s
	r.Reason = reason
	return r
}

func (r *Result) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
