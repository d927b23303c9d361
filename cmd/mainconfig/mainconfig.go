// Package mainconfig holds the startup wiring the api and worker binaries
// share: which AWS services CareConnect needs and how their SDK config loads.
package mainconfig

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	appconfig "github.com/goldenlife/careconnect/internal/config"
)

// NeedsAWS reports whether domain events fan out to an SQS queue or
// notification email goes through SES. Otherwise events stay in-process and
// email uses SendGrid or the stub sender, and AWS is never contacted.
func NeedsAWS(cfg *appconfig.Config) bool {
	return strings.TrimSpace(cfg.EventsQueueURL) != "" || cfg.EmailProvider == "ses"
}

// LoadAWSConfig builds the SDK config the SQS event publisher and the SES
// mailer are created from. Static keys win over the default credential chain
// when both are set. AWSEndpointOverride points both clients at one endpoint,
// which is how a local SQS/SES emulator is reached in development.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if key, secret := strings.TrimSpace(cfg.AWSAccessKeyID), strings.TrimSpace(cfg.AWSSecretAccessKey); key != "" && secret != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}
	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(endpoint)
	}
	return awsCfg, nil
}
