package tui

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	gochannel "github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultBusBuffer = 1024

// Bus moves monitor callbacks to the terminal UI in two hops over an
// in-process pubsub: TopicMonitorEvents carries what the poll loop saw and
// TopicUIMessages carries what the models draw.
type Bus struct {
	router *message.Router
	pubsub *gochannel.GoChannel

	runOnce sync.Once
}

// NewInMemoryBus creates a bus whose topics buffer up to buffer messages;
// zero picks a default.
func NewInMemoryBus(buffer int) (*Bus, error) {
	if buffer <= 0 {
		buffer = defaultBusBuffer
	}
	logger := zerologAdapter{l: log.Logger}
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: int64(buffer)}, logger)

	r, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "new watermill router")
	}
	return &Bus{router: r, pubsub: pubsub}, nil
}

func (b *Bus) Publisher() message.Publisher { return b.pubsub }

// Handle registers h for every envelope published on topic. Messages are
// acked whatever h returns; a payload that is not an envelope is an error.
func (b *Bus) Handle(name, topic string, h func(Envelope) error) {
	b.router.AddConsumerHandler(name, topic, b.pubsub, func(msg *message.Message) error {
		defer msg.Ack()
		env, err := OpenEnvelope(msg.Payload)
		if err != nil {
			return errors.Wrapf(err, "%s: %s", name, topic)
		}
		return h(env)
	})
}

// Run routes messages until ctx is done. Only the first call runs the router.
func (b *Bus) Run(ctx context.Context) error {
	var runErr error
	b.runOnce.Do(func() {
		go func() {
			<-ctx.Done()
			_ = b.router.Close()
		}()
		runErr = b.router.Run(ctx)
	})
	return runErr
}

// Running is closed once every handler is subscribed; publishing earlier
// loses messages.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Publish seals payload as a kind envelope and publishes it on topic.
func Publish(pub message.Publisher, topic, kind string, payload any) error {
	b, err := Seal(kind, payload)
	if err != nil {
		return err
	}
	if err := pub.Publish(topic, message.NewMessage(watermill.NewUUID(), b)); err != nil {
		return errors.Wrapf(err, "publish %s", kind)
	}
	return nil
}

// zerologAdapter sends watermill's own logging to zerolog at debug and trace
// levels so it stays out of the way of the UI.
type zerologAdapter struct {
	l zerolog.Logger
}

var _ watermill.LoggerAdapter = zerologAdapter{}

func (z zerologAdapter) event(e *zerolog.Event, msg string, fields watermill.LogFields) {
	e.Fields(map[string]interface{}(fields)).Msg(msg)
}

func (z zerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	z.event(z.l.Warn().Err(err), msg, fields)
}

func (z zerologAdapter) Info(msg string, fields watermill.LogFields) {
	z.event(z.l.Debug(), msg, fields)
}

func (z zerologAdapter) Debug(msg string, fields watermill.LogFields) {
	z.event(z.l.Trace(), msg, fields)
}

func (z zerologAdapter) Trace(msg string, fields watermill.LogFields) {
	z.event(z.l.Trace(), msg, fields)
}

func (z zerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return zerologAdapter{l: z.l.With().Fields(map[string]interface{}(fields)).Logger()}
}
