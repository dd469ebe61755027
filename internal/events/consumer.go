package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

type HandlerFunc func(ctx context.Context, event *Event) error

// Consumer dispatches events from a subscriber to registered handlers.
type Consumer struct {
	router     *message.Router
	subscriber message.Subscriber
	logger     *slog.Logger
	handlers   int
}

func NewConsumer(subscriber message.Subscriber, logger *slog.Logger) (*Consumer, error) {
	router, err := message.NewRouter(message.RouterConfig{}, watermill.NewSlogLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create event router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)

	return &Consumer{router: router, subscriber: subscriber, logger: logger}, nil
}

// Handle registers fn for topic. Returning an error nacks the message.
func (c *Consumer) Handle(name, topic string, fn HandlerFunc) {
	c.handlers++
	c.router.AddNoPublisherHandler(name, topic, c.subscriber, func(msg *message.Message) error {
		var event Event
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			// poison message, ack it so it is not redelivered forever
			c.logger.Error("Dropping malformed event", "handler", name, "message_uuid", msg.UUID, "error", err)
			return nil
		}
		if err := fn(msg.Context(), &event); err != nil {
			c.logger.Error("Event handler failed", "handler", name, "event_id", event.ID, "error", err)
			return err
		}
		return nil
	})
}

func (c *Consumer) HasHandlers() bool {
	return c.handlers > 0
}

// Run blocks until ctx is cancelled or the router stops.
func (c *Consumer) Run(ctx context.Context) error {
	return c.router.Run(ctx)
}

// Running is closed once every handler is subscribed.
func (c *Consumer) Running() chan struct{} {
	return c.router.Running()
}

func (c *Consumer) Close() error {
	return c.router.Close()
}
