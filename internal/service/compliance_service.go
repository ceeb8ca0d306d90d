package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"compliance-tracker/internal/compliance"
	"compliance-tracker/internal/dto"
	"compliance-tracker/internal/model"
	"compliance-tracker/internal/repository"
)

// ── 合规查询模块业务错误 ──

var (
	ErrHistoryRangeInvalid  = errors.New("日期范围无效：from 不能晚于 to")
	ErrHistoryRangeTooLarge = errors.New("日期范围过大")
)

// maxHistoryDays 单次历史查询的最大天数
const maxHistoryDays = 31

// ComplianceService 合规查询业务接口（只读）
//
// 看板与历史视图都直接调用合规评估器，与提醒批次使用同一判定，
// 可用于排查"为什么收到 / 没收到提醒"。
type ComplianceService interface {
	// GetDailyStatus 某日某时段全部启用用户的合规状态
	GetDailyStatus(ctx context.Context, date model.Date, period compliance.Period) (*dto.StatusBoardResponse, error)
	// GetUserHistory 某用户 [from, to] 每天 AM / PM 的合规状态
	GetUserHistory(ctx context.Context, userID string, from, to model.Date) (*dto.UserHistoryResponse, error)
	// Today 配置时区下 now 所在的日期
	Today(now time.Time) model.Date
}

type complianceService struct {
	repo   *repository.Repository
	loc    *time.Location
	logger *zap.Logger
}

// NewComplianceService 创建 ComplianceService 实例
func NewComplianceService(repo *repository.Repository, loc *time.Location, logger *zap.Logger) ComplianceService {
	return &complianceService{repo: repo, loc: loc, logger: logger}
}

func (s *complianceService) Today(now time.Time) model.Date {
	return compliance.DayOf(now, s.loc)
}

func (s *complianceService) GetDailyStatus(ctx context.Context, date model.Date, period compliance.Period) (*dto.StatusBoardResponse, error) {
	window, ok := compliance.WindowFor(period)
	if !ok {
		return nil, fmt.Errorf("%w: %q", compliance.ErrInvalidPeriod, period)
	}

	users, err := s.repo.User.ListActive(ctx)
	if err != nil {
		s.logger.Error("查询启用用户失败", zap.Error(err))
		return nil, err
	}
	records, err := s.repo.TestRecord.ListByDate(ctx, date)
	if err != nil {
		s.logger.Error("查询检测记录失败", zap.Error(err))
		return nil, err
	}
	absences, err := s.repo.Absence.ListByDate(ctx, date)
	if err != nil {
		s.logger.Error("查询缺勤记录失败", zap.Error(err))
		return nil, err
	}

	resp := &dto.StatusBoardResponse{
		Date:    date.String(),
		Period:  string(period),
		Window:  window.String(),
		Summary: make(map[string]int),
		Entries: make([]dto.StatusEntry, 0, len(users)),
	}
	for i := range users {
		res := compliance.Evaluate(compliance.Input{
			User:     &users[i],
			Date:     date,
			Period:   period,
			Records:  records,
			Absences: absences,
			Location: s.loc,
		})
		resp.Summary[string(res.Status)]++
		resp.Entries = append(resp.Entries, dto.StatusEntry{
			UserID:          users[i].UserID,
			Name:            users[i].FullName(),
			Status:          string(res.Status),
			Reason:          res.Reason,
			MatchedRecordID: res.MatchedRecordID,
			Warnings:        res.Warnings,
		})
	}
	return resp, nil
}

func (s *complianceService) GetUserHistory(ctx context.Context, userID string, from, to model.Date) (*dto.UserHistoryResponse, error) {
	if to.Before(from.Time) {
		return nil, ErrHistoryRangeInvalid
	}
	if to.Sub(from.Time) >= maxHistoryDays*24*time.Hour {
		return nil, fmt.Errorf("%w：最多 %d 天", ErrHistoryRangeTooLarge, maxHistoryDays)
	}

	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	records, err := s.repo.TestRecord.ListByUserBetween(ctx, userID, from, to)
	if err != nil {
		s.logger.Error("查询检测记录失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	absences, err := s.repo.Absence.ListByUserBetween(ctx, userID, from, to)
	if err != nil {
		s.logger.Error("查询缺勤记录失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	resp := &dto.UserHistoryResponse{
		UserID: user.UserID,
		Name:   user.FullName(),
		From:   from.String(),
		To:     to.String(),
	}
	for d := from; !d.After(to.Time); d = d.AddDays(1) {
		day := compliance.EvaluateDay(user, d, records, absences, s.loc)
		resp.Days = append(resp.Days, dto.HistoryDay{
			Date: day.Date,
			AM:   toHistoryPeriod(day.AM),
			PM:   toHistoryPeriod(day.PM),
		})
	}
	return resp, nil
}

func toHistoryPeriod(r compliance.Result) dto.HistoryPeriod {
	return dto.HistoryPeriod{Status: string(r.Status), Reason: r.Reason, MatchedRecordID: r.MatchedRecordID}
}
