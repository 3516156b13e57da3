package mail

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	appconfig "github.com/stitchfolk/pattern-delivery/internal/config"
	"github.com/stitchfolk/pattern-delivery/internal/pkg/logger"
)

// SESSender sends emails via AWS SES using the SDK v2. Messages carry file
// attachments, so the raw MIME API is used rather than the simple one.
type SESSender struct {
	client *sesv2.Client
	log    *logger.Logger
}

// NewSESSender creates an SES sender. With empty credentials the default
// AWS credential chain is used (IAM role on ECS).
func NewSESSender(ctx context.Context, cfg appconfig.SESConfig) (*SESSender, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &SESSender{
		client: sesv2.NewFromConfig(awsCfg),
		log:    logger.With("mail"),
	}, nil
}

// Send delivers a single email through AWS SES and returns the SES message ID.
func (s *SESSender) Send(ctx context.Context, msg *Message) (string, error) {
	raw, err := buildMIME(msg)
	if err != nil {
		return "", fmt.Errorf("building mime message: %w", err)
	}

	result, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	})
	if err != nil {
		return "", fmt.Errorf("sending via SES: %w", err)
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}

	s.log.Info("sent delivery email",
		"recipient", msg.To,
		"message_id", messageID,
		"attachments", len(msg.Attachments))

	return messageID, nil
}
