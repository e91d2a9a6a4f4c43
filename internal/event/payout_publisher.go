package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"coordination-service/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	PayoutEventsQueue = "payout_run_events"
)

// PayoutRunEvent is the message published after every orchestration run so
// downstream services (notifications, dashboards) can react.
type PayoutRunEvent struct {
	Location           string    `json:"location"`
	ObservedAt         time.Time `json:"observed_at"`
	PoliciesChecked    int       `json:"policies_checked"`
	ThresholdsBreached int       `json:"thresholds_breached"`
	ClaimsTriggered    []string  `json:"claims_triggered"`
	Errors             []string  `json:"errors"`
	PublishedAt        time.Time `json:"published_at"`
}

// PayoutPublisher publishes payout run events to RabbitMQ. Satisfies the
// orchestrator's RunNotifier.
type PayoutPublisher struct {
	conn              *RabbitMQConnection
	messagesPublished int64
	messagesFailed    int64
}

func NewPayoutPublisher(conn *RabbitMQConnection) *PayoutPublisher {
	return &PayoutPublisher{conn: conn}
}

// NotifyRunCompleted publishes one run outcome to the payout events queue.
func (p *PayoutPublisher) NotifyRunCompleted(ctx context.Context, obs models.WeatherConsensus, outcome *models.PayoutOutcome) error {
	_, err := p.conn.Channel.QueueDeclare(
		PayoutEventsQueue, // queue name
		true,              // durable
		false,             // delete when unused
		false,             // exclusive
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	event := PayoutRunEvent{
		Location:           obs.Location,
		ObservedAt:         obs.Timestamp,
		PoliciesChecked:    outcome.PoliciesChecked,
		ThresholdsBreached: outcome.ThresholdsBreached,
		ClaimsTriggered:    outcome.ClaimsTriggered,
		Errors:             outcome.Errors,
		PublishedAt:        time.Now(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to marshal payout run event: %w", err)
	}

	err = p.conn.Channel.PublishWithContext(
		ctx,
		"",                // exchange
		PayoutEventsQueue, // routing key (queue name)
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to publish payout run event: %w", err)
	}

	p.messagesPublished++

	slog.Info("Payout run event published",
		"queue", PayoutEventsQueue,
		"location", obs.Location,
		"claims_triggered", len(outcome.ClaimsTriggered),
	)

	return nil
}

// GetMetrics returns publisher metrics
func (p *PayoutPublisher) GetMetrics() map[string]any {
	return map[string]any{
		"messages_published": p.messagesPublished,
		"messages_failed":    p.messagesFailed,
		"queue":              PayoutEventsQueue,
	}
}
