package scheduler

import (
	"context"
	"fmt"
	"time"

	"compliance-tracker/config"
	"compliance-tracker/internal/compliance"
	"compliance-tracker/internal/service"
)

// 触发器名称
const (
	TriggerMorningCheck   = "morning_check"
	TriggerAfternoonCheck = "afternoon_check"
	TriggerWeeklyReport   = "weekly_report"
)

// ComplianceTriggers 构造三项固定任务：
//   - 工作日早间检查 AM 漏检
//   - 工作日午后检查 PM 漏检
//   - 每周五发送周报
func ComplianceTriggers(cfg *config.ScheduleConfig, notification service.NotificationService, report service.ReportService) ([]Trigger, error) {
	morning, err := compliance.ParseClock(cfg.MorningCheck)
	if err != nil {
		return nil, fmt.Errorf("schedule.morning_check: %w", err)
	}
	afternoon, err := compliance.ParseClock(cfg.AfternoonCheck)
	if err != nil {
		return nil, fmt.Errorf("schedule.afternoon_check: %w", err)
	}
	weekly, err := compliance.ParseClock(cfg.WeeklyReport)
	if err != nil {
		return nil, fmt.Errorf("schedule.weekly_report: %w", err)
	}

	check := func(p compliance.Period) Handler {
		return func(ctx context.Context, asOf time.Time) error {
			_, err := notification.RunCheck(ctx, p, asOf)
			return err
		}
	}

	return []Trigger{
		{Name: TriggerMorningCheck, At: morning, Days: MondayToFriday, Handler: check(compliance.PeriodAM)},
		{Name: TriggerAfternoonCheck, At: afternoon, Days: MondayToFriday, Handler: check(compliance.PeriodPM)},
		{Name: TriggerWeeklyReport, At: weekly, Days: FridayOnly, Handler: func(ctx context.Context, asOf time.Time) error {
			_, err := report.SendWeeklyReport(ctx, asOf)
			return err
		}},
	}, nil
}
