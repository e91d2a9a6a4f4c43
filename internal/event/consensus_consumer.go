package event

import (
	"context"
	"encoding/json"
	"log/slog"

	"coordination-service/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	WeatherConsensusQueue = "weather_consensus_events"
)

// ConsensusHandler processes one consensus-validated weather observation.
// Implemented by the automatic payout service.
type ConsensusHandler interface {
	ProcessConsensus(ctx context.Context, obs models.WeatherConsensus) (*models.PayoutOutcome, error)
}

// ConsensusConsumer consumes weather consensus events from RabbitMQ and
// feeds them into the payout orchestrator.
type ConsensusConsumer struct {
	conn    *RabbitMQConnection
	handler ConsensusHandler
}

func NewConsensusConsumer(conn *RabbitMQConnection, handler ConsensusHandler) *ConsensusConsumer {
	return &ConsensusConsumer{
		conn:    conn,
		handler: handler,
	}
}

// Start begins consuming consensus events.
func (c *ConsensusConsumer) Start(ctx context.Context) error {
	_, err := c.conn.Channel.QueueDeclare(
		WeatherConsensusQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	msgs, err := c.conn.Channel.Consume(
		WeatherConsensusQueue,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (we ack after processing)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	slog.Info("Consensus consumer started", "queue", WeatherConsensusQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				slog.Info("Consensus consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Warn("Consensus consumer channel closed")
					return
				}
				c.processMessage(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *ConsensusConsumer) processMessage(ctx context.Context, msg amqp.Delivery) {
	var obs models.WeatherConsensus
	if err := json.Unmarshal(msg.Body, &obs); err != nil {
		slog.Error("failed to unmarshal weather consensus event", "error", err)
		// Malformed message, drop without requeue.
		msg.Nack(false, false)
		return
	}

	slog.Info("Received weather consensus event",
		"location", obs.Location,
		"rainfall", obs.Rainfall,
		"temperature", obs.Temperature,
		"humidity", obs.Humidity,
	)

	outcome, err := c.handler.ProcessConsensus(ctx, obs)
	if err != nil {
		slog.Error("failed to process weather consensus event",
			"location", obs.Location,
			"error", err,
		)
		// The run produced no partial results; requeue for retry.
		msg.Nack(false, true)
		return
	}

	slog.Info("Weather consensus event processed",
		"location", obs.Location,
		"policies_checked", outcome.PoliciesChecked,
		"claims_triggered", len(outcome.ClaimsTriggered),
		"errors", len(outcome.Errors),
	)
	msg.Ack(false)
}
