package esp

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/membership-api/internal/config"
	"github.com/ignite/membership-api/internal/pkg/logger"
)

// LogSender accepts every message and only logs it. It is meant for local
// development, where no provider credentials are available.
type LogSender struct{}

// NewLogSender creates a LogSender.
func NewLogSender() *LogSender { return &LogSender{} }

// Name returns the provider name.
func (LogSender) Name() string { return config.ProviderLog }

// Send logs the message envelope and reports success.
func (LogSender) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	logger.Info("email not delivered (log provider)",
		"message_id", id,
		"from", msg.From(),
		"to", msg.To,
		"subject", msg.Subject,
		"attachments", len(msg.Attachments),
		"html_bytes", len(msg.HTMLContent),
	)
	return &SendResult{MessageID: id, ESPType: config.ProviderLog, SentAt: time.Now()}, nil
}
