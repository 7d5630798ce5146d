package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/MrJamesThe3rd/grouper/internal/broker"
)

// QueuePublisher sends MatchRequests as JSON onto a broker queue.
type QueuePublisher struct {
	queue broker.Sender
}

func NewQueuePublisher(queue broker.Sender) *QueuePublisher {
	return &QueuePublisher{queue: queue}
}

func (p *QueuePublisher) Publish(ctx context.Context, req MatchRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling match request: %w", err)
	}

	return p.queue.Send(ctx, body)
}

type ResultHandler interface {
	OnMessage(ctx context.Context, result MatchResult) (*ApplyResult, error)
}

// ResultConsumer feeds broker deliveries into a ResultHandler. Business
// failures acknowledge the message; anything else is left for redelivery.
type ResultConsumer struct {
	handler ResultHandler
	logger  *slog.Logger
}

func NewResultConsumer(handler ResultHandler, logger *slog.Logger) *ResultConsumer {
	if logger == nil {
		logger = slog.Default()
	}

	return &ResultConsumer{handler: handler, logger: logger}
}

// Handle is a broker.Handler.
func (c *ResultConsumer) Handle(ctx context.Context, msg broker.Message) error {
	var result MatchResult
	if err := json.Unmarshal(msg.Body, &result); err != nil {
		c.logger.Error("discarding undecodable match result", "message_id", msg.ID, "error", err)
		return nil
	}

	_, err := c.handler.OnMessage(ctx, result)
	if err == nil {
		return nil
	}

	if IsTerminal(err) {
		c.logger.Warn("match result not applied",
			"message_id", msg.ID,
			"correlation_id", result.CorrelationID,
			"error", err,
		)

		return nil
	}

	return err
}

// Run consumes queue until ctx is cancelled.
func (c *ResultConsumer) Run(ctx context.Context, queue broker.Queue) error {
	return queue.Consume(ctx, c.Handle)
}
