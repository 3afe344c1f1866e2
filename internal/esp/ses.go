package esp

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/membership-api/internal/config"
	"github.com/ignite/membership-api/internal/pkg/logger"
)

// sesAPI is the subset of the SES v2 client used here.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends emails via AWS SES using the SDK v2. Messages go out as
// raw MIME so attachments are supported.
type SESSender struct {
	client           sesAPI
	configurationSet string
	timeout          time.Duration
}

// NewSESSender creates an SES sender. Static credentials are used when both
// keys are configured; otherwise the default AWS credential chain applies.
func NewSESSender(ctx context.Context, cfg config.SESConfig, timeout time.Duration) (*SESSender, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return newSESSenderWithClient(sesv2.NewFromConfig(awsCfg), cfg.ConfigurationSet, timeout), nil
}

func newSESSenderWithClient(client sesAPI, configurationSet string, timeout time.Duration) *SESSender {
	return &SESSender{client: client, configurationSet: configurationSet, timeout: timeout}
}

// Name returns the provider name.
func (s *SESSender) Name() string { return config.ProviderSES }

// Send delivers a single email through AWS SES.
func (s *SESSender) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := buildMIME(msg, time.Now())
	if err != nil {
		return nil, fmt.Errorf("build message: %w", err)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From()),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	}
	if msg.Reference != "" {
		input.EmailTags = []types.MessageTag{
			{Name: aws.String("reference"), Value: aws.String(msg.Reference)},
		}
	}
	if s.configurationSet != "" {
		input.ConfigurationSetName = aws.String(s.configurationSet)
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("SES send: %w", err)
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}
	logger.Debug("ses message accepted", "to", msg.To, "message_id", messageID)

	return &SendResult{MessageID: messageID, ESPType: config.ProviderSES, SentAt: time.Now()}, nil
}
