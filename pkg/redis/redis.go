package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"compliance-tracker/config"
)

// Client Redis 客户端封装
// 用于通知派发的并发占位（防止重叠批次重复发送）与运维接口限流
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return NewFromClient(rdb, logger), nil
}

// NewFromClient 包装已有的 go-redis 客户端
func NewFromClient(rdb *goredis.Client, logger *zap.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

// ── 派发占位 ──

const dispatchPrefix = "dispatch:claim:"

// 仅当值与持有者一致时才删除，避免误删其他批次的占位
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// DispatchKey 生成 (user, date, period) 的占位 key
func DispatchKey(userID, date, period string) string {
	return dispatchPrefix + userID + ":" + date + ":" + period
}

// ClaimDispatch 尝试占位；返回 false 表示已有其他批次正在处理同一 key
func (c *Client) ClaimDispatch(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("Redis 占位失败: %w", err)
	}
	return ok, nil
}

// ReleaseDispatch 释放本批次持有的占位
func (c *Client) ReleaseDispatch(ctx context.Context, key, owner string) error {
	err := releaseScript.Run(ctx, c.rdb, []string{key}, owner).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("Redis 释放占位失败: %w", err)
	}
	return nil
}

// ── 限流 ──

// CheckRateLimit 固定窗口计数：窗口内第 limit+1 次起返回 false
// 窗口从首次计数开始，过期时间只在首次设置
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("Redis 限流计数失败: %w", err)
	}
	if n == 1 {
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("Redis 设置限流窗口失败: %w", err)
		}
	}
	return n <= int64(limit), nil
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
