package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Alert is a single notification.
type Alert struct {
	Subject string
	Message string
	Details map[string]any
	Time    time.Time
}

// Sink delivers alerts.
type Sink interface {
	Send(ctx context.Context, a Alert) error
}

// LogSink writes alerts to a logger at error level.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Send(ctx context.Context, a Alert) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	args := []any{"subject", a.Subject}
	for _, k := range sortedKeys(a.Details) {
		args = append(args, k, a.Details[k])
	}
	logger.ErrorContext(ctx, "alert: "+a.Message, args...)
	return nil
}

// MultiSink fans an alert out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Send(ctx context.Context, a Alert) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MailConfig configures SMTP delivery.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// MailSink sends alerts by e-mail.
type MailSink struct {
	cfg  MailConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailSink returns an SMTP sink. Authentication is used when a
// username is configured.
func NewMailSink(cfg MailConfig) *MailSink {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &MailSink{cfg: cfg, send: smtp.SendMail}
}

func (m *MailSink) Send(_ context.Context, a Alert) error {
	if len(m.cfg.To) == 0 {
		return errors.New("alert mail: no recipients")
	}
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, auth, m.cfg.From, m.cfg.To, m.message(a)); err != nil {
		return fmt.Errorf("alert mail: %w", err)
	}
	return nil
}

func (m *MailSink) message(a Alert) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: \"MCP Alert System\" <%s>\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", a.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(a.Message)
	b.WriteString("\r\n\r\n")
	for _, k := range sortedKeys(a.Details) {
		fmt.Fprintf(&b, "%s: %v\r\n", k, a.Details[k])
	}
	fmt.Fprintf(&b, "time: %s\r\n", a.Time.Format(time.RFC3339))
	return []byte(b.String())
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
