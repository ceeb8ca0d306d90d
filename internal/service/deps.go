package service

import (
	"context"
	"time"

	"compliance-tracker/pkg/mailer"
)

// Mailer 邮件发送能力（pkg/mailer.Mailer 实现；测试中替换为假实现）
type Mailer interface {
	Send(ctx context.Context, msg *mailer.Message) error
}

// DispatchLocker 跨进程的告警派发占位（pkg/redis.Client 实现）
//
// 可为 nil：Redis 不可用时只依赖数据库唯一约束去重。
type DispatchLocker interface {
	ClaimDispatch(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseDispatch(ctx context.Context, key, owner string) error
}
