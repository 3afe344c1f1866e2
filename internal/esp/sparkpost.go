package esp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/membership-api/internal/config"
	"github.com/ignite/membership-api/internal/pkg/logger"
)

// SparkPostSender sends emails through the SparkPost Transmissions API.
type SparkPostSender struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSparkPostSender creates a SparkPost sender.
func NewSparkPostSender(cfg config.SparkPostConfig, timeout time.Duration) *SparkPostSender {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.sparkpost.com/api/v1"
	}
	return &SparkPostSender{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (s *SparkPostSender) Name() string { return config.ProviderSparkPost }

type sparkPostAttachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"`
}

type sparkPostResponse struct {
	Results struct {
		TotalAcceptedRecipients int    `json:"total_accepted_recipients"`
		ID                      string `json:"id"`
	} `json:"results"`
	Errors []struct {
		Message     string `json:"message"`
		Description string `json:"description"`
		Code        string `json:"code"`
	} `json:"errors"`
}

// Send delivers a single email through SparkPost.
func (s *SparkPostSender) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("SparkPost API key not configured")
	}

	content := map[string]interface{}{
		"from": map[string]string{
			"email": msg.FromEmail,
			"name":  msg.FromName,
		},
		"subject": msg.Subject,
		"html":    msg.HTMLContent,
	}
	if len(msg.Headers) > 0 {
		content["headers"] = msg.Headers
	}
	if len(msg.Attachments) > 0 {
		atts := make([]sparkPostAttachment, 0, len(msg.Attachments))
		for _, a := range msg.Attachments {
			atts = append(atts, sparkPostAttachment{
				Name: a.Filename,
				Type: a.ContentType,
				Data: base64.StdEncoding.EncodeToString(a.Content),
			})
		}
		content["attachments"] = atts
	}

	transmission := map[string]interface{}{
		"recipients": []map[string]interface{}{
			{"address": map[string]string{"email": msg.To}},
		},
		"content": content,
		"options": map[string]interface{}{
			"transactional":  true,
			"open_tracking":  false,
			"click_tracking": false,
		},
	}
	if msg.Reference != "" {
		transmission["metadata"] = map[string]string{"reference": msg.Reference}
	}

	body, err := json.Marshal(transmission)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/transmissions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("SparkPost API error: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	var spResp sparkPostResponse
	_ = json.Unmarshal(respBody, &spResp)

	if resp.StatusCode != http.StatusOK || len(spResp.Errors) > 0 {
		errMsg := fmt.Sprintf("status %d", resp.StatusCode)
		if len(spResp.Errors) > 0 {
			errMsg = spResp.Errors[0].Message
		}
		return nil, fmt.Errorf("SparkPost error: %s", errMsg)
	}
	if spResp.Results.TotalAcceptedRecipients == 0 {
		return nil, fmt.Errorf("SparkPost rejected recipient")
	}

	logger.Debug("sparkpost message accepted", "to", msg.To, "message_id", spResp.Results.ID)
	return &SendResult{MessageID: spResp.Results.ID, ESPType: config.ProviderSparkPost, SentAt: time.Now()}, nil
}
