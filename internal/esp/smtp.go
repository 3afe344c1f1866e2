package esp

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/ignite/membership-api/internal/config"
	"github.com/ignite/membership-api/internal/pkg/logger"
)

// SMTPSender delivers through an authenticated SMTP relay (Gmail by
// default). Port 465 uses implicit TLS; other ports upgrade with STARTTLS
// when the server offers it.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	timeout   time.Duration
	tlsConfig *tls.Config
}

// NewSMTPSender creates an SMTP sender.
func NewSMTPSender(cfg config.SMTPConfig, timeout time.Duration) *SMTPSender {
	if cfg.InsecureSkipVerify {
		log.Printf("[SMTP] Warning: TLS certificate verification disabled for %s", cfg.Host)
	}
	return &SMTPSender{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		timeout:  timeout,
		tlsConfig: &tls.Config{
			ServerName:         cfg.Host,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			MinVersion:         tls.VersionTLS12,
		},
	}
}

// Name returns the provider name.
func (s *SMTPSender) Name() string { return config.ProviderSMTP }

// Send delivers a single email over SMTP.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := buildMIME(msg, time.Now())
	if err != nil {
		return nil, fmt.Errorf("build message: %w", err)
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial %s:%d: %w", s.host, s.port, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if s.port != 465 {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(s.tlsConfig); err != nil {
				return nil, fmt.Errorf("starttls: %w", err)
			}
		}
	}
	if s.username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
				return nil, fmt.Errorf("auth: %w", err)
			}
		}
	}

	if err := c.Mail(msg.FromEmail); err != nil {
		return nil, fmt.Errorf("mail from: %w", err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		return nil, fmt.Errorf("rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finish body: %w", err)
	}
	if err := c.Quit(); err != nil {
		logger.Warn("smtp quit failed", "host", s.host, "error", err)
	}

	logger.Debug("smtp message accepted", "to", msg.To, "reference", msg.Reference)
	return &SendResult{MessageID: msg.Reference, ESPType: config.ProviderSMTP, SentAt: time.Now()}, nil
}

func (s *SMTPSender) dial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	if s.port == 465 {
		d := &tls.Dialer{Config: s.tlsConfig}
		return d.DialContext(ctx, "tcp", addr)
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}
