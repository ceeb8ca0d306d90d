package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"compliance-tracker/config"
	"compliance-tracker/internal/api/handler"
	"compliance-tracker/internal/api/middleware"
	"compliance-tracker/pkg/jwt"
	"compliance-tracker/pkg/redis"
)

// 手动触发批次的限流：每用户每路由每分钟 10 次
const (
	opsRateLimit  = 10
	opsRateWindow = time.Minute
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 可为 nil（Redis 不可用时限流降级放行）
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())

	// ── 健康检查 ──
	r.GET("/health", healthCheck(db, rdb))

	var limiter middleware.RateLimiter
	if rdb != nil {
		limiter = rdb
	}

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr))
	{
		// 运维模块：手动触发批次
		ops := v1.Group("/ops")
		{
			ops.POST("/checks/:period", middleware.RoleAuth(jwt.RoleAdmin), middleware.RateLimit(limiter, opsRateLimit, opsRateWindow), h.Ops.RunCheck)
			ops.POST("/reports/weekly", middleware.RoleAuth(jwt.RoleAdmin), middleware.RateLimit(limiter, opsRateLimit, opsRateWindow), h.Ops.SendWeeklyReport)
			ops.GET("/reports/weekly.csv", middleware.RoleAuth(jwt.RoleAdmin, jwt.RoleManager), h.Ops.DownloadWeeklyCSV)
		}

		// 合规查询模块
		compliance := v1.Group("/compliance")
		compliance.Use(middleware.RoleAuth(jwt.RoleAdmin, jwt.RoleManager))
		{
			compliance.GET("/status", h.Compliance.GetStatus)
			compliance.GET("/users/:id/history", h.Compliance.GetUserHistory)
		}

		// 缺勤模块
		absences := v1.Group("/absences")
		absences.Use(middleware.RoleAuth(jwt.RoleAdmin, jwt.RoleManager))
		{
			absences.POST("", h.Absence.CreateAbsence)
			absences.POST("/import", middleware.BodyLimit(cfg.Server.MaxBodyBytes), h.Absence.ImportICS)
		}
	}

	return r
}

// healthCheck 数据库必须可达；Redis 为可选依赖，只报告状态
func healthCheck(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"status": "ok", "database": "ok", "redis": "disabled"}
		code := http.StatusOK

		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				status["status"] = "degraded"
				status["database"] = "unreachable"
				code = http.StatusServiceUnavailable
			}
		}
		if rdb != nil {
			status["redis"] = "ok"
			if err := rdb.Ping(ctx); err != nil {
				status["redis"] = "unreachable"
			}
		}

		c.JSON(code, status)
	}
}
