package events

import (
	"context"
	"time"

	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/observability/metrics"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// DeliveryHandler emits events to downstream transports.
type DeliveryHandler interface {
	Handle(ctx context.Context, event models.OutboxEvent) error
}

// HandlerFunc adapts a function to DeliveryHandler.
type HandlerFunc func(ctx context.Context, event models.OutboxEvent) error

func (f HandlerFunc) Handle(ctx context.Context, event models.OutboxEvent) error {
	return f(ctx, event)
}

// Deliverer polls the outbox and invokes the handler.
type Deliverer struct {
	store     storage.OutboxStore
	handler   DeliveryHandler
	logger    *logging.Logger
	metrics   *metrics.OutboxMetrics
	batchSize int32
	interval  time.Duration
}

func NewDeliverer(store storage.OutboxStore, handler DeliveryHandler, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:     store,
		handler:   handler,
		logger:    logger,
		batchSize: 25,
		interval:  2 * time.Second,
	}
}

func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

func (d *Deliverer) WithMetrics(m *metrics.OutboxMetrics) *Deliverer {
	d.metrics = m
	return d
}

func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.handler == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Drain(ctx)
		}
	}
}

// Drain delivers one batch and returns how many events were marked delivered.
func (d *Deliverer) Drain(ctx context.Context) int {
	pending, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return 0
	}
	delivered := 0
	for _, ev := range pending {
		if err := d.handler.Handle(ctx, ev); err != nil {
			d.logger.Error("outbox delivery failed", "error", err, "event_id", ev.ID, "type", ev.Type)
			d.metrics.ObserveDelivery(ev.Type, "failed")
			continue
		}
		ok, err := d.store.MarkDelivered(ctx, ev.ID)
		if err != nil {
			d.logger.Error("failed to mark outbox delivered", "error", err, "event_id", ev.ID)
			continue
		}
		if ok {
			delivered++
			d.metrics.ObserveDelivery(ev.Type, "delivered")
			d.logger.Debug("outbox delivered", "event_id", ev.ID, "type", ev.Type)
		}
	}
	return delivered
}

// Fanout invokes every handler; the first error wins but all handlers run.
type Fanout []DeliveryHandler

func (f Fanout) Handle(ctx context.Context, event models.OutboxEvent) error {
	var first error
	for _, h := range f {
		if h == nil {
			continue
		}
		if err := h.Handle(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
