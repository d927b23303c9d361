package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/goldenlife/careconnect/internal/config"
	"github.com/goldenlife/careconnect/internal/events"
	"github.com/goldenlife/careconnect/internal/notify"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// BuildOutboxHandler fans each outbox event out to SQS, when EVENTS_QUEUE_URL
// is set, and then to the notifier.
func BuildOutboxHandler(cfg *appconfig.Config, awsCfg *aws.Config, notifier *notify.Notifier, logger *logging.Logger) events.DeliveryHandler {
	if logger == nil {
		logger = logging.Default()
	}
	var fan events.Fanout
	if queueURL := strings.TrimSpace(cfg.EventsQueueURL); queueURL != "" && awsCfg != nil {
		fan = append(fan, events.NewSQSPublisher(sqs.NewFromConfig(*awsCfg), queueURL))
		logger.Info("outbox events publish to SQS", "queue_url", queueURL)
	}
	if notifier != nil {
		fan = append(fan, notifier)
	}
	return fan
}
