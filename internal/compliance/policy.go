// Package compliance 检测合规判定：时间窗口策略与合规评估。
//
// 本包不做任何 I/O，也不读取系统时钟；"当前时间"一律由调用方传入。
package compliance

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"compliance-tracker/internal/model"
)

// ErrInvalidPeriod 无法识别的时段标识
var ErrInvalidPeriod = errors.New("无效的时段，应为 AM 或 PM")

// Period 每日两次检测的时段
type Period string

const (
	PeriodAM Period = "AM"
	PeriodPM Period = "PM"
)

// Periods 按时间先后排列的全部时段
var Periods = []Period{PeriodAM, PeriodPM}

// ParsePeriod 解析时段标识（大小写不敏感）
func ParsePeriod(s string) (Period, error) {
	switch Period(strings.ToUpper(strings.TrimSpace(s))) {
	case PeriodAM:
		return PeriodAM, nil
	case PeriodPM:
		return PeriodPM, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

// ── 挂钟时间 ──

// Clock 本地挂钟时间，自午夜起的秒数
type Clock int

// NewClock 由时分秒构造
func NewClock(hour, minute, second int) Clock {
	return Clock(hour*3600 + minute*60 + second)
}

// ClockOf 取 t 在其自身时区下的挂钟时间
func ClockOf(t time.Time) Clock {
	return NewClock(t.Hour(), t.Minute(), t.Second())
}

// ParseClock 解析 HH:MM 或 HH:MM:SS；允许 PostgreSQL TIME 列带小数秒的形式（09:30:00.000）
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("无效的时间 %q", s)
	}
	limits := []int{23, 59, 59}
	vals := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("无效的时间 %q", s)
		}
		vals[i] = n
	}
	return NewClock(vals[0], vals[1], vals[2]), nil
}

// String 输出 HH:MM:SS
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(c)/3600, int(c)%3600/60, int(c)%60)
}

// ── 时间窗口 ──

// Window 检测窗口，两端均为闭区间
type Window struct {
	Start Clock
	End   Clock
}

// Contains 判断挂钟时间是否落在窗口内（含端点）
func (w Window) Contains(c Clock) bool {
	return c >= w.Start && c <= w.End
}

// String 输出 HH:MM-HH:MM
func (w Window) String() string {
	return w.Start.String()[:5] + "-" + w.End.String()[:5]
}

// 固定窗口：AM 06:00–10:00，PM 12:00–15:00（本地时间）
var windows = map[Period]Window{
	PeriodAM: {Start: NewClock(6, 0, 0), End: NewClock(10, 0, 0)},
	PeriodPM: {Start: NewClock(12, 0, 0), End: NewClock(15, 0, 0)},
}

// WindowFor 返回时段对应的窗口
func WindowFor(p Period) (Window, bool) {
	w, ok := windows[p]
	return w, ok
}

// IsWithinWindow 判断挂钟时间是否落在时段窗口内；未知时段恒为 false
func IsWithinWindow(p Period, c Clock) bool {
	w, ok := windows[p]
	return ok && w.Contains(c)
}

// ── 工作日 ──

// IsWorkday 周一至周五为工作日（按 loc 时区判断）；节假日不建模
func IsWorkday(date time.Time, loc *time.Location) bool {
	switch date.In(loc).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// DayOf 返回 asOf 在 loc 时区下所属的日历日
func DayOf(asOf time.Time, loc *time.Location) model.Date {
	return model.DateOf(asOf.In(loc))
}
