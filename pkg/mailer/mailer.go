// Package mailer renders and delivers transactional email over SMTP.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/reathuta/lms/config"
)

const loginCodeHTML = `<div style="font-family:sans-serif;padding:20px;border:1px solid #eee;border-radius:10px;">
  <h2 style="color:#2563eb;">REATHUTA LMS</h2>
  <p>Your verification code is: <b>{{.Code}}</b></p>
  <p style="color:#666;font-size:12px;">It expires in {{.Minutes}} minutes. If you did not request it, ignore this email.</p>
</div>`

var loginCodeTmpl = template.Must(template.New("login_code").Parse(loginCodeHTML))

// LoginCodeSubject is the subject line of one-time code emails.
const LoginCodeSubject = "Your REATHUTA Access Code"

// RenderLoginCode renders the HTML body carrying a one-time login code.
func RenderLoginCode(code string, ttl time.Duration) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Code    string
		Minutes int
	}{Code: code, Minutes: int(ttl.Minutes())}
	if err := loginCodeTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render login code: %w", err)
	}
	return buf.String(), nil
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends HTML email through the configured SMTP relay. With no SMTP host
// configured, messages are logged and dropped.
type Mailer struct {
	cfg    config.EmailConfig
	send   sendFunc
	logger *zap.Logger
}

// New creates a mailer.
func New(cfg config.EmailConfig, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{cfg: cfg, send: smtp.SendMail, logger: logger}
}

// Send delivers one HTML message.
func (m *Mailer) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.cfg.Enabled() {
		m.logger.Warn("smtp not configured, email dropped", zap.String("to", to), zap.String("subject", subject))
		return nil
	}
	msg := []byte(fmt.Sprintf(
		"From: %s <%s>\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		m.cfg.FromName, m.cfg.FromAddress, to, subject, html,
	))
	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)
	}
	addr := m.cfg.SMTPHost + ":" + strconv.Itoa(m.cfg.SMTPPort)
	if err := m.send(addr, auth, m.cfg.FromAddress, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	m.logger.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// SendLoginCode renders and sends a one-time code email directly.
func (m *Mailer) SendLoginCode(ctx context.Context, email, code string, ttl time.Duration) error {
	body, err := RenderLoginCode(code, ttl)
	if err != nil {
		return err
	}
	return m.Send(ctx, email, LoginCodeSubject, body)
}
