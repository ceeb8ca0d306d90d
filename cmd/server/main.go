package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"compliance-tracker/config"
	"compliance-tracker/internal/api/handler"
	"compliance-tracker/internal/api/router"
	"compliance-tracker/internal/repository"
	"compliance-tracker/internal/scheduler"
	"compliance-tracker/internal/service"
	"compliance-tracker/pkg/database"
	"compliance-tracker/pkg/jwt"
	applogger "compliance-tracker/pkg/logger"
	"compliance-tracker/pkg/mailer"
	"compliance-tracker/pkg/redis"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("COMPLIANCE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	loc, err := cfg.Schedule.Location()
	if err != nil {
		logger.Fatal("时区配置无效", zap.Error(err))
	}

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("timezone", loc.String()),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级为仅数据库去重，不中断启动）
	var locker service.DispatchLocker
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，派发锁与限流将不可用", zap.Error(err))
		rdb = nil
	} else {
		locker = rdb
	}

	// 5. 初始化邮件（可选：未配置时提醒与周报批次会报错，查询接口不受影响）
	var mail service.Mailer
	smtp, err := mailer.New(&cfg.Mail, logger)
	if err != nil {
		logger.Error("邮件服务不可用，提醒与周报将无法发送", zap.Error(err))
	} else {
		mail = smtp
		logger.Info("邮件服务已就绪", zap.Duration("send_timeout", smtp.Timeout()))
	}

	// 6. 初始化 JWT 管理器
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 7. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, mail, locker, loc, logger)
	h := handler.NewHandler(svc, loc, logger)

	// 8. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, db, logger)

	// 9. 启动定时任务
	ctx, stop := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	if cfg.Schedule.Enabled {
		triggers, err := scheduler.ComplianceTriggers(&cfg.Schedule, svc.Notification, svc.Report)
		if err != nil {
			logger.Fatal("定时任务配置无效", zap.Error(err))
		}
		sched := scheduler.New(loc, logger.Named("scheduler"))
		for _, t := range triggers {
			if err := sched.Add(t); err != nil {
				logger.Fatal("注册定时任务失败", zap.Error(err))
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Run(ctx)
		}()
	} else {
		logger.Info("定时任务已禁用")
	}

	// 10. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // 手动触发批次需逐封发送邮件
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 11. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 停止调度器：进行中的批次会执行完毕
	stop()
	wg.Wait()

	// 关闭数据库连接
	if sqlDB != nil {
		sqlDB.Close()
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
