package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	TopicOrderCreated    = "order.created"
	TopicReceiptCreated  = "receipt.created"
	TopicInvoiceReceived = "invoice.received"
)

// HeaderEventType names the Go type of the payload so consumers can tell events apart in tooling.
const HeaderEventType = "event-type"

var (
	producerTracer = otel.Tracer("messaging/producer")
	producerMeter  = otel.Meter("bakehouse/messaging")
)

// Producer publishes JSON events to one topic. Writes wait for all in-sync replicas;
// an order or receipt event that was acknowledged must not be lost.
type Producer struct {
	writer    *kafka.Writer
	topic     string
	published metric.Int64Counter
}

func NewProducer(brokers []string, topic string) *Producer {
	// The SDK hands back a usable noop instrument alongside any error.
	published, _ := producerMeter.Int64Counter("bakery.events.published",
		metric.WithDescription("Events written to Kafka by topic and outcome"))

	return &Producer{
		topic:     topic,
		published: published,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
		},
	}
}

func (p *Producer) Topic() string {
	return p.topic
}

// Publish sends event keyed by its aggregate id, so every event of one order lands on the
// same partition.
func (p *Producer) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(eventType(event))},
		},
	}

	ctx, span := producerTracer.Start(ctx, "send "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingKafkaMessageKey(key),
			semconv.MessagingMessageBodySize(len(data)),
		),
	)
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, NewMessageCarrier(&msg))

	err = p.writer.WriteMessages(ctx, msg)
	p.record(ctx, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (p *Producer) record(ctx context.Context, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.published.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", p.topic),
		attribute.String("outcome", outcome),
	))
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
