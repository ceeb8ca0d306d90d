package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"compliance-tracker/internal/compliance"
	"compliance-tracker/internal/dto"
	"compliance-tracker/internal/model"
	"compliance-tracker/internal/repository"
	"compliance-tracker/pkg/mailer"
	"compliance-tracker/pkg/redis"
)

// ── 通知模块业务错误 ──

var (
	ErrMailNotConfigured = errors.New("邮件服务未配置")
)

// dispatchClaimTTL 派发占位的有效期，需覆盖一次发送的最长耗时
const dispatchClaimTTL = 10 * time.Minute

// NotificationService 漏检提醒业务接口
//
// 设计说明：
//   - 每个批次针对单一时段（AM / PM）与单一日期，日期由 asOf 在配置时区下换算
//   - 按用户顺序处理；单个用户失败不影响其余用户
//   - (user, date, period) 每天最多通知一次：先查发送记录，成功后写入（唯一约束兜底）
//   - 发送失败不写记录，下次批次自动重试
type NotificationService interface {
	// RunCheck 执行一次漏检提醒批次
	RunCheck(ctx context.Context, period compliance.Period, asOf time.Time) (*dto.CheckOutcome, error)
}

type notificationService struct {
	repo   *repository.Repository
	mail   Mailer
	locker DispatchLocker
	local  *localClaims
	loc    *time.Location
	logger *zap.Logger
}

// localClaims 进程内派发占位，Redis 未启用或不可用时仍能挡住同进程内的并发批次
type localClaims struct {
	mu   sync.Mutex
	held map[string]time.Time // key -> 过期时刻
}

func newLocalClaims() *localClaims {
	return &localClaims{held: make(map[string]time.Time)}
}

// claim 占位成功返回 true；已过期的占位视为空闲
func (l *localClaims) claim(key string, now time.Time, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		return false
	}
	l.held[key] = now.Add(ttl)
	return true
}

func (l *localClaims) release(key string) {
	l.mu.Lock()
	delete(l.held, key)
	l.mu.Unlock()
}

// NewNotificationService 创建 NotificationService 实例
// mail 为 nil 表示邮件未配置，批次会以 ErrMailNotConfigured 失败；locker 可为 nil
func NewNotificationService(repo *repository.Repository, mail Mailer, locker DispatchLocker, loc *time.Location, logger *zap.Logger) NotificationService {
	return &notificationService{
		repo:   repo,
		mail:   mail,
		locker: locker,
		local:  newLocalClaims(),
		loc:    loc,
		logger: logger,
	}
}

// ═══════════════════════════════════════════════════════════
// RunCheck — 漏检提醒批次
// ═══════════════════════════════════════════════════════════

func (s *notificationService) RunCheck(ctx context.Context, period compliance.Period, asOf time.Time) (*dto.CheckOutcome, error) {
	if s.mail == nil {
		s.logger.Error("邮件服务未配置，跳过漏检提醒", zap.String("period", string(period)))
		return nil, ErrMailNotConfigured
	}
	window, ok := compliance.WindowFor(period)
	if !ok {
		return nil, fmt.Errorf("%w: %q", compliance.ErrInvalidPeriod, period)
	}

	day := compliance.DayOf(asOf, s.loc)
	runID := uuid.NewString()
	log := s.logger.With(
		zap.String("run_id", runID),
		zap.String("period", string(period)),
		zap.String("date", day.String()),
	)

	// 1. 批量加载：待检用户、当日检测记录与缺勤
	users, err := s.repo.User.ListNotifiable(ctx)
	if err != nil {
		log.Error("查询待检用户失败", zap.Error(err))
		return nil, fmt.Errorf("查询待检用户: %w", err)
	}
	records, err := s.repo.TestRecord.ListByDate(ctx, day)
	if err != nil {
		log.Error("查询检测记录失败", zap.Error(err))
		return nil, fmt.Errorf("查询检测记录: %w", err)
	}
	absences, err := s.repo.Absence.ListByDate(ctx, day)
	if err != nil {
		log.Error("查询缺勤记录失败", zap.Error(err))
		return nil, fmt.Errorf("查询缺勤记录: %w", err)
	}

	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })

	// 2. 逐个用户评估并派发
	outcome := &dto.CheckOutcome{
		RunID:   runID,
		Period:  string(period),
		Date:    day.String(),
		Results: make([]dto.CheckResult, 0, len(users)),
	}
	for i := range users {
		in := compliance.Input{
			User:     &users[i],
			Date:     day,
			Period:   period,
			Records:  records,
			Absences: absences,
			Location: s.loc,
		}
		outcome.Add(s.dispatchOne(ctx, log, runID, in, window))
	}

	log.Info("漏检提醒批次完成",
		zap.Int("users", len(users)),
		zap.Int("sent", outcome.Sent),
		zap.Int("skipped", outcome.Skipped),
		zap.Int("failed", outcome.Failed),
	)
	return outcome, nil
}

// dispatchOne 评估单个用户，必要时发送提醒
func (s *notificationService) dispatchOne(ctx context.Context, log *zap.Logger, runID string, in compliance.Input, window compliance.Window) dto.CheckResult {
	u := in.User
	log = log.With(zap.String("user_id", u.UserID))

	res := compliance.Evaluate(in)
	for _, w := range res.Warnings {
		log.Warn("检测数据不一致", zap.String("detail", w))
	}

	item := dto.CheckResult{UserID: u.UserID, Name: u.FullName(), Status: string(res.Status)}
	if res.Status != compliance.StatusMissing {
		item.Outcome = dto.OutcomeSkipped
		item.Reason = res.Reason
		if item.Reason == "" {
			item.Reason = dto.ReasonNotMissing
		}
		return item
	}

	addr, ok := u.NotifyAddress()
	if !ok {
		item.Outcome = dto.OutcomeSkipped
		item.Reason = dto.ReasonNoManagerEmail
		return item
	}

	// 进程内占位须先于查询发送记录，后到的批次才能看到先行批次写入的记录
	key := redis.DispatchKey(u.UserID, in.Date.String(), string(in.Period))
	if !s.local.claim(key, time.Now(), dispatchClaimTTL) {
		item.Outcome = dto.OutcomeSkipped
		item.Reason = dto.ReasonInFlight
		return item
	}
	keepLocal := false
	defer func() {
		if !keepLocal {
			s.local.release(key)
		}
	}()

	// 已通知过：每个 (user, date, period) 最多一封
	sent, err := s.repo.NotificationEvent.Exists(ctx, u.UserID, in.Date, string(in.Period))
	if err != nil {
		log.Error("查询发送记录失败", zap.Error(err))
		item.Outcome = dto.OutcomeFailed
		item.Reason = dto.ReasonLookupFailed
		return item
	}
	if sent {
		item.Outcome = dto.OutcomeSkipped
		item.Reason = dto.ReasonAlreadyNotified
		return item
	}

	// 跨实例互斥：拿不到占位说明另一批次正在处理
	claimed := false
	if s.locker != nil {
		ok, err := s.locker.ClaimDispatch(ctx, key, runID, dispatchClaimTTL)
		switch {
		case err != nil:
			log.Warn("Redis 占位失败，降级为进程内占位与数据库去重", zap.Error(err))
		case !ok:
			item.Outcome = dto.OutcomeSkipped
			item.Reason = dto.ReasonInFlight
			return item
		default:
			claimed = true
		}
	}

	if err := s.sendMissedTest(ctx, addr, u, in, window); err != nil {
		log.Error("发送漏检提醒失败", zap.String("to", addr), zap.Error(err))
		if claimed {
			if err := s.locker.ReleaseDispatch(ctx, key, runID); err != nil {
				log.Warn("释放 Redis 占位失败", zap.Error(err))
			}
		}
		item.Outcome = dto.OutcomeFailed
		item.Reason = dto.ReasonSendFailed
		return item
	}

	// 邮件已发出：记录写入失败只记日志，两级占位都保留到过期以挡住紧随其后的重复批次
	event := &model.NotificationEvent{
		UserID:       u.UserID,
		EventDate:    in.Date,
		Period:       string(in.Period),
		ManagerEmail: addr,
		RunID:        runID,
		SentAt:       time.Now(),
	}
	if inserted, err := s.repo.NotificationEvent.Record(ctx, event); err != nil {
		log.Error("写入发送记录失败", zap.Error(err))
		keepLocal = true
	} else if !inserted {
		log.Warn("发送记录已存在，可能与其他批次重复发送")
	}

	log.Info("已发送漏检提醒", zap.String("to", addr))
	item.Outcome = dto.OutcomeSent
	return item
}

func (s *notificationService) sendMissedTest(ctx context.Context, to string, u *model.User, in compliance.Input, window compliance.Window) error {
	data := missedTestData{
		Employee: u.FullName(),
		Period:   string(in.Period),
		Date:     in.Date.String(),
		Window:   window.String(),
	}
	body, err := render(missedTestTmpl, data)
	if err != nil {
		return err
	}
	return s.mail.Send(ctx, &mailer.Message{
		To:      []string{to},
		Subject: missedTestSubject(data),
		HTML:    body,
	})
}
