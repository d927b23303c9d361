package bootstrap

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/goldenlife/careconnect/internal/config"
	"github.com/goldenlife/careconnect/internal/notify"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// BuildEmailSender picks the email transport named by EMAIL_PROVIDER. "auto"
// prefers SendGrid when a key is present and otherwise logs messages through
// the stub sender. awsCfg is only consulted for "ses".
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (notify.EmailSender, string, error) {
	if cfg == nil {
		return nil, "", fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.EmailProvider))
	// NewSendGridSender returns a nil pointer without a key; keep it out of
	// the interface.
	sendgrid := func() notify.EmailSender {
		s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
		if s == nil {
			return nil
		}
		return s
	}

	switch provider {
	case "", "auto":
		if s := sendgrid(); s != nil {
			return s, "sendgrid", nil
		}
		return notify.NewStubEmailSender(logger), "stub", nil
	case "sendgrid":
		if s := sendgrid(); s != nil {
			return s, "sendgrid", nil
		}
		return nil, "", fmt.Errorf("bootstrap: EMAIL_PROVIDER=sendgrid requires SENDGRID_API_KEY")
	case "ses":
		if awsCfg == nil {
			return nil, "", fmt.Errorf("bootstrap: EMAIL_PROVIDER=ses requires AWS configuration")
		}
		client := sesv2.NewFromConfig(*awsCfg)
		return notify.NewSESSender(client, notify.SESConfig{
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger), "ses", nil
	case "stub", "none":
		return notify.NewStubEmailSender(logger), "stub", nil
	}
	return nil, "", fmt.Errorf("bootstrap: unknown EMAIL_PROVIDER %q", provider)
}
