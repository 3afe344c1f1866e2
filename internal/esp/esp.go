// Package esp delivers rendered notification emails through an outbound
// mail provider. Each provider implements Sender; New picks one from config.
package esp

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/ignite/membership-api/internal/config"
)

// Attachment is a file carried by a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is one outbound email.
type Message struct {
	FromName    string
	FromEmail   string
	To          string
	Subject     string
	HTMLContent string
	Attachments []Attachment
	// Reference correlates the message with the request that produced it.
	Reference string
	Headers   map[string]string
}

// From returns the RFC 5322 From header value.
func (m *Message) From() string {
	addr := mail.Address{Name: m.FromName, Address: m.FromEmail}
	return addr.String()
}

// SendResult describes an accepted message.
type SendResult struct {
	MessageID string
	ESPType   string
	SentAt    time.Time
}

// Sender is the mail-transport contract the dispatcher depends on. Send
// returns an error for every failed delivery attempt; it never retries.
type Sender interface {
	Send(ctx context.Context, msg *Message) (*SendResult, error)
	Name() string
}

// New builds the Sender selected by cfg.Mail.Provider.
func New(ctx context.Context, cfg *config.Config) (Sender, error) {
	timeout := cfg.Mail.Timeout()

	switch cfg.Mail.Provider {
	case config.ProviderSMTP:
		return NewSMTPSender(cfg.SMTP, timeout), nil
	case config.ProviderSES:
		return NewSESSender(ctx, cfg.SES, timeout)
	case config.ProviderSendGrid:
		return NewSendGridSender(cfg.SendGrid, timeout), nil
	case config.ProviderSparkPost:
		return NewSparkPostSender(cfg.SparkPost, timeout), nil
	case config.ProviderLog:
		return NewLogSender(), nil
	default:
		return nil, fmt.Errorf("unsupported mail provider: %q", cfg.Mail.Provider)
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
