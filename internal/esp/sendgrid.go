package esp

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/ignite/membership-api/internal/config"
	"github.com/ignite/membership-api/internal/pkg/logger"
)

const sendGridMailSendPath = "/v3/mail/send"

// SendGridSender sends emails via the SendGrid v3 Mail Send API.
type SendGridSender struct {
	apiKey  string
	baseURL string
	timeout time.Duration
}

// NewSendGridSender creates a SendGrid sender.
func NewSendGridSender(cfg config.SendGridConfig, timeout time.Duration) *SendGridSender {
	return &SendGridSender{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		timeout: timeout,
	}
}

// Name returns the provider name.
func (s *SendGridSender) Name() string { return config.ProviderSendGrid }

// Send delivers a single email through SendGrid.
func (s *SendGridSender) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("SendGrid API key not configured")
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	request := sendgrid.GetRequest(s.apiKey, sendGridMailSendPath, s.baseURL)
	request.Method = rest.Post
	request.Body = mail.GetRequestBody(s.buildMail(msg))

	response, err := rest.SendWithContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("SendGrid send: %w", err)
	}
	if response.StatusCode >= 400 {
		return nil, fmt.Errorf("SendGrid error %d: %s", response.StatusCode, response.Body)
	}

	messageID := ""
	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 {
		messageID = ids[0]
	}
	logger.Debug("sendgrid message accepted", "to", msg.To, "message_id", messageID)

	return &SendResult{MessageID: messageID, ESPType: config.ProviderSendGrid, SentAt: time.Now()}, nil
}

func (s *SendGridSender) buildMail(msg *Message) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(msg.FromName, msg.FromEmail))
	m.Subject = msg.Subject

	personalization := mail.NewPersonalization()
	personalization.AddTos(mail.NewEmail("", msg.To))
	if msg.Reference != "" {
		personalization.SetCustomArg("reference", msg.Reference)
	}
	m.AddPersonalizations(personalization)
	m.AddContent(mail.NewContent("text/html", msg.HTMLContent))

	for k, v := range msg.Headers {
		m.SetHeader(k, v)
	}

	for _, att := range msg.Attachments {
		a := mail.NewAttachment()
		a.SetContent(base64.StdEncoding.EncodeToString(att.Content))
		a.SetType(att.ContentType)
		a.SetFilename(att.Filename)
		a.SetDisposition("attachment")
		m.AddAttachment(a)
	}
	return m
}
