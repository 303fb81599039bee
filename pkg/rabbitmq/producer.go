/**
 * @description
 * This package provides the RabbitMQ plumbing for the durable job pipeline.
 * The producer publishes due scheduled jobs onto the work exchange; the
 * consumer (consumer.go) feeds them to the worker. Messages are the JSON
 * serialization of domain.ScheduledJobDetails, so a worker never needs a
 * database round trip to start executing.
 *
 * @dependencies
 * - context, encoding/json, time: Standard Go libraries.
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 * - internal/domain: The scheduled-job model.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
)

// JobsExchange is the durable topic exchange all job traffic flows through.
const JobsExchange = "commerce.jobs"

// RoutingKeyScheduled is the routing key for promoted scheduled jobs.
const RoutingKeyScheduled = "jobs.scheduled"

// JobProducer holds the RabbitMQ connection and channel for publishing jobs.
type JobProducer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// Publisher is the interface implemented by types that can publish jobs.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	PublishJob(ctx context.Context, job domain.ScheduledJobDetails) error
	Close()
}

// JobProducerFallback is a no-op publisher used when RabbitMQ is unavailable
// at startup; jobs stay in the database and are promoted on a later pass.
type JobProducerFallback struct{}

func (p *JobProducerFallback) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	log.Printf("level=warn component=rabbitmq_producer mode=fallback msg=\"publish skipped\" exchange=%s routing_key=%s", exchange, routingKey)
	return nil
}

func (p *JobProducerFallback) PublishJob(ctx context.Context, job domain.ScheduledJobDetails) error {
	log.Printf("level=warn component=rabbitmq_producer mode=fallback msg=\"job publish skipped\" job_id=%s job_type=%s", job.JobID, job.JobType)
	return nil
}

func (p *JobProducerFallback) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	// If any stray characters precede the scheme, slice from first occurrence of amqp
	idx := strings.Index(strings.ToLower(clean), "amqp")
	if idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewJobProducer creates and returns a new JobProducer.
func NewJobProducer(amqpURL string) (*JobProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	// Use a bounded dial timeout so startup does not hang indefinitely
	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &JobProducer{conn: conn, channel: ch}, nil
}

// Publish sends a message to a specific exchange with a routing key.
func (p *JobProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	if err := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		log.Printf("level=warn component=rabbitmq_producer msg=\"exchange declare failed; reopening channel\" exchange=%s err=%v", exchange, err)
		if p.conn != nil {
			ch, chErr := p.conn.Channel()
			if chErr != nil {
				return err
			}
			p.channel = ch
			if err2 := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err2 != nil {
				return err2
			}
		} else {
			return err
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	return p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	})
}

// PublishJob publishes one promoted scheduled job.
func (p *JobProducer) PublishJob(ctx context.Context, job domain.ScheduledJobDetails) error {
	return p.Publish(ctx, JobsExchange, RoutingKeyScheduled, job)
}

// Close shuts down the channel and connection.
func (p *JobProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
