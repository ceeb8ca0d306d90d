package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"compliance-tracker/internal/compliance"
	"compliance-tracker/internal/model"
)

// ── ICS 缺勤解析器 ──────────────────────────────────────────
//
// 职责：将 iCalendar (RFC 5545) 中的请假 / 外出事件转换为 Absence 列表。
//
// 映射规则：
//   - 全天事件（DTSTART;VALUE=DATE）→ 覆盖的每个日历日一条 FULL（DTEND 不含）
//   - 定时事件 → 按与检测窗口的重叠判定：只压 AM 窗口 → AM，只压 PM → PM，两者都压 → FULL
//   - 周末不生成缺勤
//   - 同一天的多个事件合并，AM + PM 合并为 FULL
//   - 不展开 RRULE，重复事件只取首次
// ─────────────────────────────────────────────────────────────

const (
	icsMaxFileSize   = 1 * 1024 * 1024 // 1MB
	icsMaxEventDays  = 62              // 单个事件最多展开的天数
	icsFetchTimeout  = 30 * time.Second
	secondsPerDay    = 24 * 60 * 60
	icsDateLayout    = "20060102"
	icsDateTimeUTC   = "20060102T150405Z"
	icsDateTimeLocal = "20060102T150405"
)

// parsedAbsence ICS 解析中间结构
type parsedAbsence struct {
	date   model.Date
	period string
	reason string
}

// icsParseResult 解析结果
type icsParseResult struct {
	Absences []model.Absence
	Skipped  int // 周末、无法识别或与检测窗口无重叠的事件 / 日
}

// FetchICSContent 从 URL 获取 ICS 内容（支持 webcal://）
func FetchICSContent(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u := strings.TrimSpace(rawURL)
	if strings.HasPrefix(u, "webcal://") {
		u = "https://" + strings.TrimPrefix(u, "webcal://")
	}
	if !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
		return nil, fmt.Errorf("不支持的 ICS 地址: %s", rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, icsFetchTimeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("获取 ICS 失败: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("获取 ICS 失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("获取 ICS 失败: HTTP %d", resp.StatusCode)
	}
	// 限制响应体大小，防止恶意 URL 返回超大内容
	return struct {
		io.Reader
		io.Closer
	}{
		Reader: io.LimitReader(resp.Body, icsMaxFileSize),
		Closer: closerFunc(func() error {
			defer cancel()
			return resp.Body.Close()
		}),
	}, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// ParseAbsenceICS 解析 ICS 内容并转为 Absence 列表（未落库，UserID 已填充）
func ParseAbsenceICS(reader io.Reader, userID string, loc *time.Location) (*icsParseResult, error) {
	cal, err := ics.ParseCalendar(io.LimitReader(reader, icsMaxFileSize))
	if err != nil {
		return nil, fmt.Errorf("ICS 格式解析失败: %w", err)
	}

	result := &icsParseResult{}
	var parsed []parsedAbsence
	for _, evt := range cal.Events() {
		items, skipped := parseAbsenceEvent(evt, loc)
		parsed = append(parsed, items...)
		result.Skipped += skipped
	}

	for _, p := range mergeAbsences(parsed) {
		a := model.Absence{
			UserID:      userID,
			AbsenceDate: p.date,
			Period:      p.period,
			Source:      model.AbsenceSourceICS,
		}
		if p.reason != "" {
			reason := p.reason
			a.Reason = &reason
		}
		result.Absences = append(result.Absences, a)
	}
	return result, nil
}

// parseAbsenceEvent 解析单个 VEVENT，返回覆盖的 (date, period) 与跳过的天数
func parseAbsenceEvent(evt *ics.VEvent, loc *time.Location) ([]parsedAbsence, int) {
	reason := ""
	if p := evt.GetProperty(ics.ComponentPropertySummary); p != nil {
		reason = truncate(strings.TrimSpace(p.Value), 255)
	}

	start, allDay, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
	if err != nil {
		return nil, 1
	}
	end, _, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc)
	if err != nil {
		// 无 DTEND：全天事件视为一天，定时事件视为瞬时
		if allDay {
			end = start.AddDate(0, 0, 1)
		} else {
			end = start
		}
	}

	if allDay {
		return expandAllDay(start, end, reason, loc)
	}
	return expandTimed(start, end, reason, loc)
}

// expandAllDay [start, end) 内每个工作日一条 FULL
func expandAllDay(start, end time.Time, reason string, loc *time.Location) ([]parsedAbsence, int) {
	first := model.DateOf(start)
	last := model.DateOf(end).AddDays(-1)
	if last.Before(first.Time) {
		last = first
	}

	var out []parsedAbsence
	skipped := 0
	for d, n := first, 0; !d.After(last.Time) && n < icsMaxEventDays; d, n = d.AddDays(1), n+1 {
		if !compliance.IsWorkday(d.In(loc), loc) {
			skipped++
			continue
		}
		out = append(out, parsedAbsence{date: d, period: model.AbsenceFull, reason: reason})
	}
	return out, skipped
}

// expandTimed 按天切分定时事件，逐日判定与 AM / PM 窗口的重叠
func expandTimed(start, end time.Time, reason string, loc *time.Location) ([]parsedAbsence, int) {
	first := model.DateOf(start)
	last := model.DateOf(end)
	// 恰好结束于午夜的事件不延伸到次日
	if end.After(start) && end.Equal(last.In(loc)) {
		last = last.AddDays(-1)
	}

	var out []parsedAbsence
	skipped := 0
	for d, n := first, 0; !d.After(last.Time) && n < icsMaxEventDays; d, n = d.AddDays(1), n+1 {
		dayStart := d.In(loc)
		if !compliance.IsWorkday(dayStart, loc) {
			skipped++
			continue
		}
		from, to := clipToDay(start, end, dayStart, d.AddDays(1).In(loc))
		period, ok := coveredPeriod(from, to)
		if !ok {
			skipped++
			continue
		}
		out = append(out, parsedAbsence{date: d, period: period, reason: reason})
	}
	return out, skipped
}

// clipToDay 将 [start, end) 截取到当天，返回当天挂钟时间区间
func clipToDay(start, end, dayStart, nextDay time.Time) (compliance.Clock, compliance.Clock) {
	from := compliance.Clock(0)
	if start.After(dayStart) {
		from = compliance.ClockOf(start)
	}
	to := compliance.Clock(secondsPerDay)
	if end.Before(nextDay) {
		to = compliance.ClockOf(end)
	}
	return from, to
}

// coveredPeriod 区间 [from, to) 与检测窗口有正长度重叠时返回对应缺勤范围
func coveredPeriod(from, to compliance.Clock) (string, bool) {
	overlaps := func(p compliance.Period) bool {
		w, _ := compliance.WindowFor(p)
		return from < w.End && to > w.Start
	}
	am, pm := overlaps(compliance.PeriodAM), overlaps(compliance.PeriodPM)
	switch {
	case am && pm:
		return model.AbsenceFull, true
	case am:
		return model.AbsenceAM, true
	case pm:
		return model.AbsencePM, true
	}
	return "", false
}

// mergeAbsences 同一天合并：FULL 吸收 AM/PM，AM + PM → FULL；结果按日期排序
func mergeAbsences(items []parsedAbsence) []parsedAbsence {
	byDate := make(map[string]*parsedAbsence)
	for _, it := range items {
		key := it.date.String()
		cur, ok := byDate[key]
		if !ok {
			cp := it
			byDate[key] = &cp
			continue
		}
		if cur.period != it.period {
			cur.period = model.AbsenceFull
		}
		if cur.reason == "" {
			cur.reason = it.reason
		}
	}

	out := make([]parsedAbsence, 0, len(byDate))
	for _, v := range byDate {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].date.Before(out[j].date.Time) })
	return out
}

// parseICSDateTime 解析 DTSTART / DTEND，返回 loc 下的时间以及是否为全天（纯日期）值
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, bool, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, false, fmt.Errorf("missing property %s", propName)
	}
	val := strings.TrimSpace(prop.Value)

	// 检查 TZID / VALUE 参数
	tzid, valueType := "", ""
	for k, v := range prop.ICalParameters {
		if len(v) == 0 {
			continue
		}
		switch strings.ToUpper(k) {
		case "TZID":
			tzid = v[0]
		case "VALUE":
			valueType = strings.ToUpper(v[0])
		}
	}

	if valueType == "DATE" || len(val) == len(icsDateLayout) {
		t, err := time.Parse(icsDateLayout, val)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("无法解析日期: %s", val)
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), true, nil
	}

	if t, err := time.Parse(icsDateTimeUTC, val); err == nil {
		return t.In(loc), false, nil
	}
	t, err := time.Parse(icsDateTimeLocal, val)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("无法解析日期: %s", val)
	}
	src := loc
	if tzid != "" {
		if tzLoc, err := time.LoadLocation(tzid); err == nil {
			src = tzLoc
		}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, src).In(loc), false, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
