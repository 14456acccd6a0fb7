package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-repo-api/pkg/config"
)

// Message is one outbound email. Bcc recipients are not disclosed to each other.
type Message struct {
	To      []string
	Bcc     []string
	Subject string
	Text    string
}

// Recipients returns every address the message is delivered to.
func (m Message) Recipients() int {
	return len(m.To) + len(m.Bcc)
}

// Mailer is the outbound message channel. Delivery receipts are not reported back.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New picks the mailer implementation configured for the environment.
func New(cfg config.MailConfig, logger *zap.Logger) (Mailer, error) {
	switch cfg.Driver {
	case "", config.MailDriverLog:
		return NewLogMailer(logger), nil
	case config.MailDriverResend:
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("mail driver resend requires RESEND_API_KEY")
		}
		return NewResendMailer(resend.NewClient(cfg.ResendAPIKey).Emails, cfg.From, logger), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
}

type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendMailer delivers messages through the Resend API.
type ResendMailer struct {
	emails emailSender
	from   string
	logger *zap.Logger
}

// NewResendMailer wraps a Resend emails client.
func NewResendMailer(emails emailSender, from string, logger *zap.Logger) *ResendMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResendMailer{emails: emails, from: from, logger: logger}
}

// Send submits the message. Bcc-only messages are addressed to the sender.
func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	if msg.Recipients() == 0 {
		return fmt.Errorf("message has no recipients")
	}
	to := msg.To
	if len(to) == 0 {
		to = []string{senderAddress(m.from)}
	}
	resp, err := m.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      to,
		Bcc:     msg.Bcc,
		Subject: msg.Subject,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	m.logger.Debug("email sent", zap.String("id", resp.Id), zap.Int("recipients", msg.Recipients()))
	return nil
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer builds the development mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send logs the message envelope.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if msg.Recipients() == 0 {
		return fmt.Errorf("message has no recipients")
	}
	m.logger.Info("email sent (log mailer)",
		zap.Strings("to", msg.To),
		zap.Int("bcc", len(msg.Bcc)),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// senderAddress extracts "a@b" from "Name <a@b>".
func senderAddress(from string) string {
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.LastIndex(from, ">"); end > start {
			return strings.TrimSpace(from[start+1 : end])
		}
	}
	return strings.TrimSpace(from)
}
