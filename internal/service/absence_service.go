package service

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"compliance-tracker/internal/dto"
	"compliance-tracker/internal/model"
	"compliance-tracker/internal/repository"
)

// ── 缺勤模块业务错误 ──

var (
	ErrUserNotFound   = errors.New("用户不存在")
	ErrInvalidDate    = errors.New("日期格式无效，应为 YYYY-MM-DD")
	ErrICSParseFailed = errors.New("ICS 文件解析失败")
	ErrICSNoAbsence   = errors.New("ICS 文件中没有可导入的缺勤")
)

// AbsenceService 缺勤业务接口
type AbsenceService interface {
	// CreateAbsence 手工登记一条缺勤
	CreateAbsence(ctx context.Context, req *dto.CreateAbsenceRequest) (*dto.AbsenceResponse, error)
	// ImportICS 从 iCalendar 文件批量导入某用户的缺勤
	ImportICS(ctx context.Context, userID string, reader io.Reader) (*dto.ImportAbsenceResponse, error)
}

type absenceService struct {
	repo   *repository.Repository
	loc    *time.Location
	logger *zap.Logger
}

// NewAbsenceService 创建 AbsenceService 实例
func NewAbsenceService(repo *repository.Repository, loc *time.Location, logger *zap.Logger) AbsenceService {
	return &absenceService{repo: repo, loc: loc, logger: logger}
}

func (s *absenceService) CreateAbsence(ctx context.Context, req *dto.CreateAbsenceRequest) (*dto.AbsenceResponse, error) {
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return nil, ErrInvalidDate
	}
	if err := s.ensureUser(ctx, req.UserID); err != nil {
		return nil, err
	}

	absence := &model.Absence{
		UserID:      req.UserID,
		AbsenceDate: date,
		Period:      req.Period,
		Reason:      req.Reason,
		Source:      model.AbsenceSourceManual,
	}
	if err := s.repo.Absence.Create(ctx, absence); err != nil {
		s.logger.Error("创建缺勤失败", zap.String("user_id", req.UserID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("缺勤已登记",
		zap.String("user_id", req.UserID),
		zap.String("date", date.String()),
		zap.String("period", req.Period),
	)
	resp := toAbsenceResponse(absence)
	return &resp, nil
}

func (s *absenceService) ImportICS(ctx context.Context, userID string, reader io.Reader) (*dto.ImportAbsenceResponse, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	parsed, err := ParseAbsenceICS(reader, userID, s.loc)
	if err != nil {
		s.logger.Warn("ICS 解析失败", zap.String("user_id", userID), zap.Error(err))
		return nil, ErrICSParseFailed
	}
	if len(parsed.Absences) == 0 {
		return nil, ErrICSNoAbsence
	}

	if err := s.repo.Absence.BatchCreate(ctx, parsed.Absences); err != nil {
		s.logger.Error("批量写入缺勤失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	resp := &dto.ImportAbsenceResponse{
		Imported: len(parsed.Absences),
		Skipped:  parsed.Skipped,
		Absences: make([]dto.AbsenceResponse, 0, len(parsed.Absences)),
	}
	for i := range parsed.Absences {
		resp.Absences = append(resp.Absences, toAbsenceResponse(&parsed.Absences[i]))
	}

	s.logger.Info("ICS 缺勤导入完成",
		zap.String("user_id", userID),
		zap.Int("imported", resp.Imported),
		zap.Int("skipped", resp.Skipped),
	)
	return resp, nil
}

func (s *absenceService) ensureUser(ctx context.Context, userID string) error {
	if _, err := s.repo.User.GetByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func toAbsenceResponse(a *model.Absence) dto.AbsenceResponse {
	return dto.AbsenceResponse{
		ID:     a.AbsenceID,
		UserID: a.UserID,
		Date:   a.AbsenceDate.String(),
		Period: a.Period,
		Reason: a.Reason,
		Source: a.Source,
	}
}
