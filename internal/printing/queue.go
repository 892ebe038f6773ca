package printing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/bakehouse/ordering/internal/messaging"
)

const JobsQueue = "print.jobs"

var queueTracer = otel.Tracer("printing/queue")

func declareJobsQueue(ch *amqp.Channel) error {
	_, err := ch.QueueDeclare(
		JobsQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare %s: %w", JobsQueue, err)
	}
	return nil
}

// JobPublisher enqueues print jobs on the durable print queue.
type JobPublisher struct {
	ch *amqp.Channel
}

func NewJobPublisher(conn *amqp.Connection) (*JobPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareJobsQueue(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &JobPublisher{ch: ch}, nil
}

func (p *JobPublisher) Close() error {
	return p.ch.Close()
}

func (p *JobPublisher) PublishJob(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal print job: %w", err)
	}

	ctx, span := queueTracer.Start(ctx, "send "+JobsQueue,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemRabbitmq,
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(JobsQueue),
		),
	)
	defer span.End()

	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, messaging.TableCarrier(headers))

	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err = p.ch.PublishWithContext(
		pubCtx,
		"",        // default exchange
		JobsQueue, // queue name as routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ID,
			Headers:      headers,
			Body:         body,
		},
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Outcome decides how a delivery is settled.
type Outcome int

const (
	Ack Outcome = iota
	Requeue
	Drop
)

// Settle maps a handling result to an ack decision. Undecodable payloads are dropped.
// A failed print is retried once and then dropped.
func Settle(decodeErr, handleErr error, redelivered bool) Outcome {
	switch {
	case decodeErr != nil:
		return Drop
	case handleErr == nil:
		return Ack
	case redelivered:
		return Drop
	default:
		return Requeue
	}
}

func settle(d Acknowledger, o Outcome) error {
	switch o {
	case Ack:
		return d.Ack(false)
	case Requeue:
		return d.Nack(false, true)
	default:
		return d.Nack(false, false)
	}
}

// JobConsumer feeds queued print jobs to a handler.
type JobConsumer struct {
	ch     *amqp.Channel
	logger *slog.Logger
}

func NewJobConsumer(conn *amqp.Connection, logger *slog.Logger) (*JobConsumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareJobsQueue(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}
	// One job at a time per consumer; printers are slow.
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &JobConsumer{ch: ch, logger: logger}, nil
}

func (c *JobConsumer) Close() error {
	return c.ch.Close()
}

// Consume blocks until ctx is done or the channel closes.
func (c *JobConsumer) Consume(ctx context.Context, handler func(ctx context.Context, job Job) error) error {
	msgs, err := c.ch.Consume(
		JobsQueue,
		"printer", // consumer tag
		false,     // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("stopping print job consumer")
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("%s channel closed", JobsQueue)
			}
			c.process(ctx, msg, handler)
		}
	}
}

func (c *JobConsumer) process(ctx context.Context, msg amqp.Delivery, handler func(ctx context.Context, job Job) error) {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, messaging.TableCarrier(msg.Headers))
	spanCtx, span := queueTracer.Start(parentCtx, "process "+JobsQueue,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemRabbitmq,
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(JobsQueue),
		),
	)
	defer span.End()

	var job Job
	decodeErr := json.Unmarshal(msg.Body, &job)
	var handleErr error
	if decodeErr != nil {
		c.logger.Error("dropping malformed print job", "error", decodeErr, "message_id", msg.MessageId)
		span.RecordError(decodeErr)
	} else if handleErr = handler(spanCtx, job); handleErr != nil {
		c.logger.Error("print job failed", "error", handleErr, "job_id", job.ID, "redelivered", msg.Redelivered)
		span.RecordError(handleErr)
		span.SetStatus(codes.Error, handleErr.Error())
	}

	if err := settle(msg, Settle(decodeErr, handleErr, msg.Redelivered)); err != nil {
		c.logger.Error("failed to settle print job", "error", err, "message_id", msg.MessageId)
	}
}
