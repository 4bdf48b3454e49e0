package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tradehub/internal/config"
)

var notifierTracer = otel.Tracer("github.com/Additional-Code/tradehub/notifier")

// Sender delivers one transactional message to a recipient address.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Module provides the mail sender and dispatcher to the Fx graph.
var Module = fx.Provide(NewSender, NewDispatcher)

// NewSender builds the configured sender (smtp or noop when disabled).
func NewSender(cfg config.Config, logger *zap.Logger) Sender {
	if !cfg.Mail.Enabled {
		logger.Info("mail disabled; using noop sender")
		return noopSender{}
	}
	return &smtpSender{
		host:     cfg.Mail.Host,
		port:     cfg.Mail.Port,
		username: cfg.Mail.Username,
		password: cfg.Mail.Password,
		from:     cfg.Mail.From,
	}
}

type noopSender struct{}

func (noopSender) Send(context.Context, string, string, string) error { return nil }

type smtpSender struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func (s *smtpSender) Send(ctx context.Context, to, subject, body string) error {
	_, span := notifierTracer.Start(ctx, "smtp.Send")
	defer span.End()
	span.SetAttributes(attribute.String("mail.to", to))

	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", s.from, to, subject, body))
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if err := smtp.SendMail(addr, auth, s.from, []string{to}, msg); err != nil {
		span.RecordError(err)
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// Dispatcher sends notifications off the request path. Delivery is
// best-effort: failures are logged and never surfaced to the triggering
// operation.
type Dispatcher struct {
	sender  Sender
	logger  *zap.Logger
	timeout time.Duration
}

// NewDispatcher wires a Dispatcher around the configured sender.
func NewDispatcher(sender Sender, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, logger: logger, timeout: 30 * time.Second}
}

// Dispatch fires the message in the background, detached from the caller's
// context so the response never waits on delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, to, subject, body string) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		if err := d.sender.Send(sendCtx, to, subject, body); err != nil {
			d.logger.Warn("notification delivery failed",
				zap.String("to", to),
				zap.String("subject", subject),
				zap.Error(err),
			)
		}
	}()
}

// DispatchSync delivers a message inline, for callers that already run in
// the background (the sweeper) and want the error for per-run accounting.
func (d *Dispatcher) DispatchSync(ctx context.Context, to, subject, body string) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.sender.Send(sendCtx, to, subject, body)
}
