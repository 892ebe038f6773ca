package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/bakehouse/ordering/internal/messaging"
)

type Consumer interface {
	Topic() string
	Consume(ctx context.Context, handler messaging.Handler) error
}

type Route struct {
	Consumer Consumer
	Handle   messaging.Handler
}

// Run consumes every route until ctx is cancelled or one consumer fails.
func Run(ctx context.Context, logger *slog.Logger, routes ...Route) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, route := range routes {
		g.Go(func() error {
			logger.Info("consuming topic", "topic", route.Consumer.Topic())
			err := route.Consumer.Consume(ctx, route.Handle)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// LogFailure reports a handler error for a message that will still be committed.
func LogFailure(logger *slog.Logger) messaging.ErrorHandler {
	return func(_ context.Context, msg kafka.Message, err error) {
		logger.Error("event handling failed", "error", err, "topic", msg.Topic, "offset", msg.Offset,
			"key", string(msg.Key), "event_type", messaging.EventType(msg))
	}
}
