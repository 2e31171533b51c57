package kafka

import (
	"context"
	"errors"
	"log/slog"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	appoutbox "tinyhouse/internal/app/outbox"
	"tinyhouse/internal/infra/outbox"
)

// Dispatcher decodes cloud events and fans them out to subscribers.
// Messages that are not cloud events are logged and acknowledged.
type Dispatcher struct {
	Subscribers []appoutbox.Subscriber
	Logger      *slog.Logger
}

func (d Dispatcher) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		if h == nil {
			continue
		}
		headers[string(h.Key)] = string(h.Value)
	}
	rec, err := outbox.DecodeCloudEvent(msg.Value, headers)
	if err != nil {
		d.logger().Warn("skipping message",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.Any("err", err),
		)
		return nil
	}
	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(rec.Headers))

	var errs []error
	for _, sub := range d.Subscribers {
		if err := sub.OnEvent(ctx, rec); err != nil {
			d.logger().Error("subscriber failed",
				slog.String("subscriber", sub.Name()),
				slog.String("event_id", rec.ID),
				slog.String("event", rec.Name),
				slog.Any("err", err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
