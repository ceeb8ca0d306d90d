// Package scheduler 按固定本地挂钟时间触发批次任务。
//
// 触发时刻按配置时区逐日解析，夏令时切换当天仍落在正确的本地时间。
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"compliance-tracker/internal/compliance"
)

var (
	ErrDuplicateTrigger = errors.New("触发器名称重复")
	ErrInvalidTrigger   = errors.New("触发器缺少名称、星期或处理函数")
)

// ── 星期掩码 ──

// Weekdays 星期位掩码，第 n 位对应 time.Weekday(n)
type Weekdays uint8

// Days 由若干星期构造掩码
func Days(days ...time.Weekday) Weekdays {
	var w Weekdays
	for _, d := range days {
		w |= 1 << uint(d)
	}
	return w
}

var (
	MondayToFriday = Days(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday)
	FridayOnly     = Days(time.Friday)
	EveryDay       = MondayToFriday | Days(time.Saturday, time.Sunday)
)

// Has 判断是否包含某天
func (w Weekdays) Has(d time.Weekday) bool {
	return w&(1<<uint(d)) != 0
}

// ── 触发器 ──

// Handler 批次处理函数；asOf 为计划触发时刻（而非实际执行时刻）
type Handler func(ctx context.Context, asOf time.Time) error

// Trigger 描述一个定时任务
type Trigger struct {
	Name    string
	At      compliance.Clock
	Days    Weekdays
	Handler Handler
}

// Next 返回严格晚于 after 的下一次触发时刻（loc 本地时间）
func (t Trigger) Next(after time.Time, loc *time.Location) time.Time {
	local := after.In(loc)
	h, m, s := int(t.At)/3600, int(t.At)%3600/60, int(t.At)%60
	for i := 0; i <= 7; i++ {
		c := time.Date(local.Year(), local.Month(), local.Day()+i, h, m, s, 0, loc)
		if t.Days.Has(c.Weekday()) && c.After(after) {
			return c
		}
	}
	return time.Time{}
}

// ── 调度器 ──

// Scheduler 单进程定时调度器
//
// 只保存每个触发器的下一次触发时刻；到期的触发器在同一 goroutine 中顺序执行，
// 单个任务的错误或 panic 不影响其他任务。
type Scheduler struct {
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	triggers []Trigger
	next     map[string]time.Time
}

// Option 调度器选项
type Option func(*Scheduler)

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New 创建调度器
func New(loc *time.Location, logger *zap.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		loc:    loc,
		logger: logger,
		now:    time.Now,
		next:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add 注册触发器，并以当前时刻计算首次触发时间
func (s *Scheduler) Add(t Trigger) error {
	if t.Name == "" || t.Days == 0 || t.Handler == nil {
		return fmt.Errorf("%w: %q", ErrInvalidTrigger, t.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.next[t.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTrigger, t.Name)
	}
	s.triggers = append(s.triggers, t)
	s.next[t.Name] = t.Next(s.now(), s.loc)

	s.logger.Info("已注册定时任务",
		zap.String("trigger", t.Name),
		zap.String("at", t.At.String()),
		zap.Time("next", s.next[t.Name]),
	)
	return nil
}

// NextFire 查询某触发器的下一次触发时刻
func (s *Scheduler) NextFire(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.next[name]
	return t, ok
}

// Run 阻塞运行直到 ctx 取消
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("调度器已启动", zap.String("timezone", s.loc.String()))
	for {
		wait, ok := s.untilNext()
		if !ok {
			<-ctx.Done()
			s.logger.Info("调度器已停止")
			return
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("调度器已停止")
			return
		case <-timer.C:
			s.Tick(ctx, s.now())
		}
	}
}

// untilNext 距最早一次触发的等待时长
func (s *Scheduler) untilNext() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var earliest time.Time
	for _, t := range s.next {
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}
	if earliest.IsZero() {
		return 0, false
	}
	wait := earliest.Sub(s.now())
	if wait < 0 {
		wait = 0
	}
	return wait, true
}

// Tick 执行所有在 now 之前到期的触发器，返回执行数量
//
// 错过的多次触发（如进程休眠）只补执行一次；执行后以 now 重新计算下一次触发时刻。
// 任务使用与 ctx 取消解绑的上下文，关闭信号不会打断进行中的批次。
func (s *Scheduler) Tick(ctx context.Context, now time.Time) int {
	type due struct {
		trigger Trigger
		asOf    time.Time
	}

	s.mu.Lock()
	var fire []due
	for _, t := range s.triggers {
		at := s.next[t.Name]
		if at.IsZero() || at.After(now) {
			continue
		}
		fire = append(fire, due{trigger: t, asOf: at})
		s.next[t.Name] = t.Next(now, s.loc)
	}
	s.mu.Unlock()

	sort.SliceStable(fire, func(i, j int) bool { return fire[i].asOf.Before(fire[j].asOf) })

	jobCtx := context.WithoutCancel(ctx)
	for _, d := range fire {
		s.fire(jobCtx, d.trigger, d.asOf)
	}
	return len(fire)
}

func (s *Scheduler) fire(ctx context.Context, t Trigger, asOf time.Time) {
	log := s.logger.With(zap.String("trigger", t.Name), zap.Time("as_of", asOf))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("定时任务 panic", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	if err := t.Handler(ctx, asOf); err != nil {
		log.Error("定时任务失败", zap.Error(err), zap.Duration("latency", time.Since(start)))
		return
	}
	log.Info("定时任务完成", zap.Duration("latency", time.Since(start)))
}
