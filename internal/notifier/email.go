package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"sort"
	"strings"

	"placement-portal/internal/model"
)

// EmailConfig 邮件配置。
type EmailConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	From     string `yaml:"from" json:"from"`
	Subject  string `yaml:"subject" json:"subject"`
}

// EmailMessage 表示一封邮件。
type EmailMessage struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// EmailSender 抽象发送接口，便于测试替换。
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailDirectory 按用户 ID 查询邮箱。
type EmailDirectory interface {
	UserEmails(ctx context.Context, ids []string) (map[string]string, error)
}

// SMTPClient 封装 SMTP 发送。
type SMTPClient struct {
	addr string
	auth smtp.Auth
}

func NewSMTPClient(cfg EmailConfig) *SMTPClient {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPClient{addr: addr, auth: auth}
}

func (c *SMTPClient) Send(ctx context.Context, msg EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data := buildEmailData(msg)
	return smtp.SendMail(c.addr, c.auth, msg.From, msg.To, []byte(data))
}

// EmailDelivery 将高优先级通知按收件人汇总后发送邮件。
type EmailDelivery struct {
	cfg       EmailConfig
	sender    EmailSender
	directory EmailDirectory
}

// NewEmailDelivery 创建 EmailDelivery。
func NewEmailDelivery(cfg EmailConfig, directory EmailDirectory, sender EmailSender) *EmailDelivery {
	if sender == nil {
		sender = NewSMTPClient(cfg)
	}
	if cfg.Subject == "" {
		cfg.Subject = "Placement update"
	}
	return &EmailDelivery{cfg: cfg, sender: sender, directory: directory}
}

// Deliver 仅处理高优先级通知，没有邮箱的用户会被跳过。
func (d EmailDelivery) Deliver(ctx context.Context, items []model.Notification) error {
	byUser := make(map[string][]model.Notification)
	for _, n := range items {
		if n.Priority != model.PriorityHigh {
			continue
		}
		byUser[n.UserID] = append(byUser[n.UserID], n)
	}
	if len(byUser) == 0 {
		return nil
	}

	ids := make([]string, 0, len(byUser))
	for id := range byUser {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	emails, err := d.directory.UserEmails(ctx, ids)
	if err != nil {
		return fmt.Errorf("lookup emails: %w", err)
	}

	var failed []string
	for _, id := range ids {
		addr := emails[id]
		if addr == "" {
			continue
		}
		msg := EmailMessage{
			From:    d.cfg.From,
			To:      []string{addr},
			Subject: d.cfg.Subject,
			Body:    buildBody(byUser[id]),
		}
		if err := d.sender.Send(ctx, msg); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", addr, err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("send email: %s", strings.Join(failed, "; "))
	}
	return nil
}

func buildBody(items []model.Notification) string {
	var b strings.Builder
	for _, n := range items {
		b.WriteString(fmt.Sprintf("%s\n%s\n\n", n.Title, n.Message))
	}
	return b.String()
}

func buildEmailData(msg EmailMessage) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", msg.From))
	b.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ",")))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)
	return b.String()
}
