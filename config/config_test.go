package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Auth:   AuthConfig{JWTSecret: "test-secret-key-for-unit-testing"},
		Schedule: ScheduleConfig{
			Timezone:       "America/New_York",
			MorningCheck:   "10:05",
			AfternoonCheck: "15:05",
			WeeklyReport:   "16:00",
		},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("期望校验通过，实际: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"空密钥", func(c *Config) { c.Auth.JWTSecret = "" }, "jwt_secret"},
		{"密钥过短", func(c *Config) { c.Auth.JWTSecret = "short" }, "16"},
		{"端口越界", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"无效时区", func(c *Config) { c.Schedule.Timezone = "Mars/Phobos" }, "时区"},
		{"时间格式错误", func(c *Config) { c.Schedule.MorningCheck = "25:99" }, "schedule.morning_check"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("期望校验失败")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("错误信息应包含 %q，实际: %v", tc.want, err)
			}
		})
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("COMPLIANCE_AUTH_JWT_SECRET", "env-secret-value-123456")
	t.Setenv("COMPLIANCE_REPORT_RECIPIENT", "compliance@example.com")
	t.Setenv("COMPLIANCE_SCHEDULE_TIMEZONE", "America/Chicago")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.Auth.JWTSecret != "env-secret-value-123456" {
		t.Errorf("期望从环境变量读取 jwt_secret，实际=%q", cfg.Auth.JWTSecret)
	}
	if cfg.Report.Recipient != "compliance@example.com" {
		t.Errorf("期望 recipient=compliance@example.com，实际=%q", cfg.Report.Recipient)
	}
	if cfg.Schedule.Timezone != "America/Chicago" {
		t.Errorf("期望 timezone=America/Chicago，实际=%q", cfg.Schedule.Timezone)
	}
	if cfg.Schedule.MorningCheck != "10:05" {
		t.Errorf("期望默认 morning_check=10:05，实际=%q", cfg.Schedule.MorningCheck)
	}
	if cfg.Mail.Timeout.Seconds() != 15 {
		t.Errorf("期望默认邮件超时 15s，实际=%v", cfg.Mail.Timeout)
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("COMPLIANCE_AUTH_JWT_SECRET", "")
	if _, err := Load(""); err == nil {
		t.Fatal("缺少 jwt_secret 时 Load 应失败")
	}
}
