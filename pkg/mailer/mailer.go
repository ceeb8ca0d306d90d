package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"compliance-tracker/config"
)

var (
	// ErrNotConfigured SMTP 主机或发件人缺失
	ErrNotConfigured = errors.New("邮件服务未配置")
	// ErrNoRecipient 邮件缺少收件人
	ErrNoRecipient = errors.New("邮件缺少收件人")
)

const defaultTimeout = 15 * time.Second

// Attachment 邮件附件
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message 一封待发送的邮件
type Message struct {
	To          []string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Mailer 基于 SMTP 的邮件发送器
type Mailer struct {
	from    string
	timeout time.Duration
	client  *mail.Client
	logger  *zap.Logger
}

// New 根据配置创建 Mailer
// 主机或发件人为空时返回 ErrNotConfigured，由调用方决定降级
func New(cfg *config.MailConfig, logger *zap.Logger) (*Mailer, error) {
	if cfg.SMTPHost == "" || cfg.From == "" {
		return nil, ErrNotConfigured
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTimeout(timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("创建 SMTP 客户端失败: %w", err)
	}

	return &Mailer{from: cfg.From, timeout: timeout, client: client, logger: logger}, nil
}

// Timeout 单封邮件的发送超时
func (m *Mailer) Timeout() time.Duration {
	return m.timeout
}

// Send 发送一封邮件，超时由 ctx 与客户端超时共同约束
func (m *Mailer) Send(ctx context.Context, msg *Message) error {
	built, err := buildMsg(m.from, msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	if err := m.client.DialAndSendWithContext(ctx, built); err != nil {
		return fmt.Errorf("SMTP 发送失败: %w", err)
	}

	m.logger.Debug("邮件已发送",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Duration("latency", time.Since(start)),
	)
	return nil
}

// buildMsg 将 Message 转为 go-mail 消息
func buildMsg(from string, msg *Message) (*mail.Msg, error) {
	if msg == nil || len(msg.To) == 0 {
		return nil, ErrNoRecipient
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("无效的发件人 %q: %w", from, err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("无效的收件人 %v: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)

	for _, a := range msg.Attachments {
		var opts []mail.FileOption
		if a.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(a.ContentType)))
		}
		if err := m.AttachReader(a.Filename, bytes.NewReader(a.Content), opts...); err != nil {
			return nil, fmt.Errorf("添加附件 %s 失败: %w", a.Filename, err)
		}
	}

	return m, nil
}
