package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// WatermillBridge implements Publisher and Subscriber on top of watermill's
// in-memory GoChannel.
type WatermillBridge struct {
	pub    message.Publisher
	sub    message.Subscriber
	tracer trace.Tracer
	logger *slog.Logger
}

const (
	// Metadata keys used to carry Message fields through watermill.
	metaKeyUserID = "user_id"
	metaKeyTopic  = "topic"
)

// BridgeOption configures a WatermillBridge.
type BridgeOption func(*bridgeOptions)

type bridgeOptions struct {
	tracer       trace.Tracer
	logger       *slog.Logger
	outputBuffer int64
}

// WithTracer records a span for every publish and every handled message.
func WithTracer(tracer trace.Tracer) BridgeOption {
	return func(o *bridgeOptions) {
		o.tracer = tracer
	}
}

// WithLogger sets the logger used for handler failures.
func WithLogger(logger *slog.Logger) BridgeOption {
	return func(o *bridgeOptions) {
		o.logger = logger
	}
}

// WithOutputBuffer sets the per-subscriber channel buffer.
func WithOutputBuffer(n int64) BridgeOption {
	return func(o *bridgeOptions) {
		o.outputBuffer = n
	}
}

// NewWatermillBridge initializes an in-memory bus.
func NewWatermillBridge(opts ...BridgeOption) *WatermillBridge {
	o := bridgeOptions{
		tracer:       noop.NewTracerProvider().Tracer(tracerName),
		logger:       slog.Default(),
		outputBuffer: 64,
	}
	for _, opt := range opts {
		opt(&o)
	}

	wmLogger := watermill.NewStdLogger(false, false)
	// Publish waits for every subscriber to ack, which keeps events from
	// one publisher in order.
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            o.outputBuffer,
			BlockPublishUntilSubscriberAck: true,
		},
		wmLogger,
	)

	return &WatermillBridge{
		pub:    NewPublisherTracingMiddleware(goChannel, o.tracer),
		sub:    goChannel,
		tracer: o.tracer,
		logger: o.logger.With("service", "pubsub"),
	}
}

// mapToWatermillMessage converts a Message to a watermill message.
func mapToWatermillMessage(ctx context.Context, msg Message) *message.Message {
	wmMsg := message.NewMessage(watermill.NewUUID(), msg.Payload)
	wmMsg.SetContext(ctx)

	wmMsg.Metadata.Set(metaKeyUserID, msg.UserID)
	wmMsg.Metadata.Set(metaKeyTopic, msg.Topic)
	for k, v := range msg.Metadata {
		wmMsg.Metadata.Set(k, v)
	}

	return wmMsg
}

// mapToPubSubMessage converts a watermill message back to a Message.
func mapToPubSubMessage(wmMsg *message.Message) Message {
	userID := wmMsg.Metadata.Get(metaKeyUserID)
	topic := wmMsg.Metadata.Get(metaKeyTopic)

	metadata := make(map[string]string)
	for k, v := range wmMsg.Metadata {
		if k != metaKeyUserID && k != metaKeyTopic {
			metadata[k] = v
		}
	}

	return Message{
		Topic:    topic,
		UserID:   userID,
		Payload:  wmMsg.Payload,
		Metadata: metadata,
	}
}

// Publish implements the Publisher interface.
func (wb *WatermillBridge) Publish(ctx context.Context, msg Message) error {
	return wb.pub.Publish(msg.Topic, mapToWatermillMessage(ctx, msg))
}

// Subscribe implements the Subscriber interface. Delivery runs in a separate
// goroutine, so Subscribe returns as soon as the subscription is active.
func (wb *WatermillBridge) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := wb.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	process := TracingMiddleware(wb.tracer)(func(wmMsg *message.Message) ([]*message.Message, error) {
		// The handler runs under the subscription's context, carrying the
		// processing span.
		hctx := trace.ContextWithSpan(ctx, trace.SpanFromContext(wmMsg.Context()))
		return nil, handler(hctx, mapToPubSubMessage(wmMsg))
	})

	go func() {
		for wmMsg := range messages {
			if _, err := process(wmMsg); err != nil {
				wb.logger.Error("Failed to handle message", "topic", topic, "msg_id", wmMsg.UUID, "error", err)
			}
			// GoChannel redelivers nacked messages until they are acked, so
			// handler failures are logged and acknowledged.
			wmMsg.Ack()
		}
		wb.logger.Debug("Subscription message loop ended", "topic", topic)
	}()

	return nil
}

// Close shuts the bus down and ends every subscription.
func (wb *WatermillBridge) Close() error {
	return wb.sub.Close()
}
