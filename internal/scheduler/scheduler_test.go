package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"compliance-tracker/config"
	"compliance-tracker/internal/compliance"
	"compliance-tracker/internal/dto"
	"compliance-tracker/internal/service"
)

func mustNY(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("加载时区失败: %v", err)
	}
	return loc
}

func noop(context.Context, time.Time) error { return nil }

// ── Weekdays / Trigger.Next ──

func TestWeekdays(t *testing.T) {
	if !MondayToFriday.Has(time.Monday) || MondayToFriday.Has(time.Saturday) {
		t.Error("MondayToFriday 掩码错误")
	}
	if !FridayOnly.Has(time.Friday) || FridayOnly.Has(time.Thursday) {
		t.Error("FridayOnly 掩码错误")
	}
	if !EveryDay.Has(time.Sunday) {
		t.Error("EveryDay 应包含周日")
	}
}

func TestTriggerNext_WeekdayMask(t *testing.T) {
	ny := mustNY(t)
	weekly := Trigger{Name: "w", At: compliance.NewClock(16, 0, 0), Days: FridayOnly, Handler: noop}

	tests := []struct {
		after time.Time
		want  time.Time
	}{
		// 周一 → 本周五
		{time.Date(2024, 6, 3, 9, 0, 0, 0, ny), time.Date(2024, 6, 7, 16, 0, 0, 0, ny)},
		// 周五 15:59 → 当天
		{time.Date(2024, 6, 7, 15, 59, 0, 0, ny), time.Date(2024, 6, 7, 16, 0, 0, 0, ny)},
		// 恰好在触发时刻 → 下周五（严格晚于）
		{time.Date(2024, 6, 7, 16, 0, 0, 0, ny), time.Date(2024, 6, 14, 16, 0, 0, 0, ny)},
	}
	for _, tc := range tests {
		if got := weekly.Next(tc.after, ny); !got.Equal(tc.want) {
			t.Errorf("Next(%v)=%v 期望 %v", tc.after, got, tc.want)
		}
	}

	// 工作日任务：周五触发后跳过周末
	daily := Trigger{Name: "d", At: compliance.NewClock(10, 5, 0), Days: MondayToFriday, Handler: noop}
	got := daily.Next(time.Date(2024, 6, 7, 10, 5, 0, 0, ny), ny)
	if want := time.Date(2024, 6, 10, 10, 5, 0, 0, ny); !got.Equal(want) {
		t.Errorf("期望下周一 %v，实际 %v", want, got)
	}
}

func TestTriggerNext_DST(t *testing.T) {
	ny := mustNY(t)
	tr := Trigger{Name: "d", At: compliance.NewClock(10, 5, 0), Days: EveryDay, Handler: noop}

	// 2024-03-10 纽约进入夏令时：前一天 12:00 EST 到当天 10:05 EDT 只隔 21h05m
	after := time.Date(2024, 3, 9, 12, 0, 0, 0, ny)
	next := tr.Next(after, ny)
	if next.Hour() != 10 || next.Minute() != 5 || next.Day() != 10 {
		t.Errorf("春季切换日应为本地 10:05，实际 %v", next)
	}
	if d := next.Sub(after); d != 21*time.Hour+5*time.Minute {
		t.Errorf("期望间隔 21h05m，实际 %v", d)
	}

	// 2024-11-03 结束夏令时：间隔 23h05m
	after = time.Date(2024, 11, 2, 12, 0, 0, 0, ny)
	next = tr.Next(after, ny)
	if next.Hour() != 10 || next.Minute() != 5 || next.Day() != 3 {
		t.Errorf("秋季切换日应为本地 10:05，实际 %v", next)
	}
	if d := next.Sub(after); d != 23*time.Hour+5*time.Minute {
		t.Errorf("期望间隔 23h05m，实际 %v", d)
	}
}

// ── Scheduler ──

func TestScheduler_AddValidation(t *testing.T) {
	s := New(time.UTC, zap.NewNop())
	if err := s.Add(Trigger{Name: "", Days: EveryDay, Handler: noop}); !errors.Is(err, ErrInvalidTrigger) {
		t.Errorf("期望 ErrInvalidTrigger，实际: %v", err)
	}
	if err := s.Add(Trigger{Name: "a", Days: EveryDay}); !errors.Is(err, ErrInvalidTrigger) {
		t.Errorf("缺少 Handler 期望 ErrInvalidTrigger，实际: %v", err)
	}
	if err := s.Add(Trigger{Name: "a", Days: EveryDay, Handler: noop}); err != nil {
		t.Fatalf("Add 失败: %v", err)
	}
	if err := s.Add(Trigger{Name: "a", Days: EveryDay, Handler: noop}); !errors.Is(err, ErrDuplicateTrigger) {
		t.Errorf("期望 ErrDuplicateTrigger，实际: %v", err)
	}
}

func TestScheduler_TickFiresDueTriggersWithScheduledTime(t *testing.T) {
	ny := mustNY(t)
	start := time.Date(2024, 6, 3, 8, 0, 0, 0, ny) // 周一 08:00
	s := New(ny, zap.NewNop(), WithClock(func() time.Time { return start }))

	var got []time.Time
	if err := s.Add(Trigger{Name: "am", At: compliance.NewClock(10, 5, 0), Days: MondayToFriday, Handler: func(_ context.Context, asOf time.Time) error {
		got = append(got, asOf)
		return nil
	}}); err != nil {
		t.Fatalf("Add 失败: %v", err)
	}

	// 未到期
	if n := s.Tick(context.Background(), start.Add(time.Hour)); n != 0 {
		t.Fatalf("未到期不应执行，实际 %d", n)
	}

	// 延迟 3 秒执行：asOf 仍为计划时刻
	late := time.Date(2024, 6, 3, 10, 5, 3, 0, ny)
	if n := s.Tick(context.Background(), late); n != 1 {
		t.Fatalf("期望执行 1 个任务，实际 %d", n)
	}
	if len(got) != 1 || !got[0].Equal(time.Date(2024, 6, 3, 10, 5, 0, 0, ny)) {
		t.Errorf("asOf 应为计划时刻，实际 %v", got)
	}

	next, _ := s.NextFire("am")
	if want := time.Date(2024, 6, 4, 10, 5, 0, 0, ny); !next.Equal(want) {
		t.Errorf("下次触发期望 %v，实际 %v", want, next)
	}

	// 同一时刻重复 Tick 不会重复执行
	if n := s.Tick(context.Background(), late); n != 0 {
		t.Errorf("不应重复执行，实际 %d", n)
	}
}

func TestScheduler_TickIsolatesFailures(t *testing.T) {
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	s := New(time.UTC, zap.NewNop(), WithClock(func() time.Time { return start }))

	ran := map[string]bool{}
	add := func(name string, at compliance.Clock, h Handler) {
		if err := s.Add(Trigger{Name: name, At: at, Days: EveryDay, Handler: h}); err != nil {
			t.Fatalf("Add %s 失败: %v", name, err)
		}
	}
	add("panics", compliance.NewClock(9, 0, 0), func(context.Context, time.Time) error {
		ran["panics"] = true
		panic("boom")
	})
	add("fails", compliance.NewClock(9, 1, 0), func(context.Context, time.Time) error {
		ran["fails"] = true
		return errors.New("smtp down")
	})
	add("ok", compliance.NewClock(9, 2, 0), func(context.Context, time.Time) error {
		ran["ok"] = true
		return nil
	})

	if n := s.Tick(context.Background(), start.Add(10*time.Hour)); n != 3 {
		t.Fatalf("期望执行 3 个任务，实际 %d", n)
	}
	for _, name := range []string{"panics", "fails", "ok"} {
		if !ran[name] {
			t.Errorf("任务 %s 未执行", name)
		}
		if next, _ := s.NextFire(name); next.Day() != 4 {
			t.Errorf("任务 %s 下次触发应为次日，实际 %v", name, next)
		}
	}
}

func TestScheduler_TickDetachesCancellation(t *testing.T) {
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	s := New(time.UTC, zap.NewNop(), WithClock(func() time.Time { return start }))

	var ctxErr error
	_ = s.Add(Trigger{Name: "job", At: compliance.NewClock(1, 0, 0), Days: EveryDay, Handler: func(ctx context.Context, _ time.Time) error {
		ctxErr = ctx.Err()
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Tick(ctx, start.Add(2*time.Hour))
	if ctxErr != nil {
		t.Errorf("任务上下文不应随关闭信号取消，实际: %v", ctxErr)
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	s := New(time.UTC, zap.NewNop())
	_ = s.Add(Trigger{Name: "job", At: compliance.NewClock(1, 0, 0), Days: EveryDay, Handler: noop})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Run(ctx)
	}()
	cancel()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run 未在取消后退出")
	}
}

// ── ComplianceTriggers ──

type stubNotification struct {
	mu      sync.Mutex
	periods []compliance.Period
}

func (s *stubNotification) RunCheck(_ context.Context, p compliance.Period, _ time.Time) (*dto.CheckOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods = append(s.periods, p)
	return &dto.CheckOutcome{}, nil
}

type stubReport struct {
	calls int
}

func (s *stubReport) BuildReport(context.Context, time.Time) (*service.WeeklyReport, error) {
	return &service.WeeklyReport{}, nil
}

func (s *stubReport) SendWeeklyReport(context.Context, time.Time) (*dto.ReportOutcome, error) {
	s.calls++
	return &dto.ReportOutcome{}, nil
}

func TestComplianceTriggers(t *testing.T) {
	ny := mustNY(t)
	cfg := &config.ScheduleConfig{MorningCheck: "10:05", AfternoonCheck: "15:05", WeeklyReport: "16:00"}
	notif, report := &stubNotification{}, &stubReport{}

	triggers, err := ComplianceTriggers(cfg, notif, report)
	if err != nil {
		t.Fatalf("ComplianceTriggers 失败: %v", err)
	}

	// 周一 00:00 起步，Tick 到周五 23:59
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, ny)
	s := New(ny, zap.NewNop(), WithClock(func() time.Time { return start }))
	for _, tr := range triggers {
		if err := s.Add(tr); err != nil {
			t.Fatalf("Add 失败: %v", err)
		}
	}
	for now := start; now.Before(start.AddDate(0, 0, 7)); now = now.Add(time.Minute) {
		s.Tick(context.Background(), now)
	}

	am, pm := 0, 0
	for _, p := range notif.periods {
		if p == compliance.PeriodAM {
			am++
		} else {
			pm++
		}
	}
	if am != 5 || pm != 5 {
		t.Errorf("一周应有 5 次 AM 与 5 次 PM 检查，实际 %d/%d", am, pm)
	}
	if report.calls != 1 {
		t.Errorf("一周应发送 1 次周报，实际 %d", report.calls)
	}
}

func TestComplianceTriggers_InvalidClock(t *testing.T) {
	cfg := &config.ScheduleConfig{MorningCheck: "25:00", AfternoonCheck: "15:05", WeeklyReport: "16:00"}
	if _, err := ComplianceTriggers(cfg, &stubNotification{}, &stubReport{}); err == nil {
		t.Error("无效时间应返回错误")
	}
}
