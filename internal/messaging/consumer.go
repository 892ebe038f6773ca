package messaging

import (
	"context"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	consumerTracer = otel.Tracer("messaging/consumer")
	consumerMeter  = otel.Meter("bakehouse/messaging")
)

// Handler processes the JSON payload of one event.
type Handler func(ctx context.Context, payload []byte) error

// ErrorHandler is told about a message whose handler failed.
type ErrorHandler func(ctx context.Context, msg kafka.Message, err error)

// Consumer reads one topic as part of a consumer group and commits each
// message after it has been handled.
type Consumer struct {
	reader    *kafka.Reader
	topic     string
	groupID   string
	onError   ErrorHandler
	processed metric.Int64Counter
	duration  metric.Float64Histogram
}

type consumerConfig struct {
	reader  kafka.ReaderConfig
	onError ErrorHandler
}

type ConsumerOption func(*consumerConfig)

// WithStartOffset picks where a new consumer group starts reading.
func WithStartOffset(offset int64) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.reader.StartOffset = offset
	}
}

// WithMaxWait bounds how long a fetch waits for new messages.
func WithMaxWait(d time.Duration) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.reader.MaxWait = d
	}
}

// WithErrorHandler makes handler failures non-fatal: onError is called and the message is
// committed. Without it Consume returns the first handler error.
func WithErrorHandler(onError ErrorHandler) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.onError = onError
	}
}

func NewConsumer(brokers []string, topic, groupID string, opts ...ConsumerOption) *Consumer {
	cfg := consumerConfig{
		reader: kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
			MaxWait: time.Second,
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	processed, _ := consumerMeter.Int64Counter("bakery.events.processed",
		metric.WithDescription("Events handled by topic and outcome"))
	duration, _ := consumerMeter.Float64Histogram("bakery.events.process.duration",
		metric.WithDescription("Time spent handling one event"),
		metric.WithUnit("s"))

	return &Consumer{
		reader:    kafka.NewReader(cfg.reader),
		topic:     topic,
		groupID:   groupID,
		onError:   cfg.onError,
		processed: processed,
		duration:  duration,
	}
}

func (c *Consumer) Topic() string {
	return c.topic
}

// Consume handles messages until ctx is cancelled or the reader fails.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		if err := c.processMessage(ctx, msg, handler); err != nil {
			if c.onError == nil {
				return err
			}
			c.onError(ctx, msg, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message, handler Handler) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, NewMessageCarrier(&msg))

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
			semconv.MessagingMessageBodySize(len(msg.Value)),
			attribute.String("bakery.event_type", EventType(msg)),
		),
	)
	defer span.End()

	start := time.Now()
	err := handler(spanCtx, msg.Value)
	c.record(spanCtx, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (c *Consumer) record(ctx context.Context, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("topic", c.topic),
		attribute.String("outcome", outcome),
	)
	c.processed.Add(ctx, 1, attrs)
	c.duration.Record(ctx, elapsed.Seconds(), attrs)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
