package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/relabs-tech/flight_computer/internal/flight"
	"github.com/relabs-tech/flight_computer/internal/metrics"
)

const publishTimeout = 2 * time.Second

// Client is the part of mqtt.Client the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Options configures a Publisher.
type Options struct {
	FrameTopic string
	EventTopic string
	// RateHz caps frames per second; events are not limited.
	RateHz float64
	// Buffer is the queue length between the tick loop and Run.
	Buffer int
	// Session tags every message; a random UUID when empty.
	Session string
}

type message struct {
	kind     string // "frame" or "event"
	topic    string
	retained bool
	payload  any
}

// Publisher queues frames and events from the tick loop and sends them from
// Run. Enqueueing never blocks; when the queue is full the message is
// dropped and counted.
type Publisher struct {
	client  Client
	opts    Options
	limiter *rate.Limiter
	queue   chan message
}

// NewPublisher builds a publisher. Call Run to start sending.
func NewPublisher(client Client, opts Options) *Publisher {
	if opts.Session == "" {
		opts.Session = uuid.NewString()
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	limit := rate.Inf
	if opts.RateHz > 0 {
		limit = rate.Limit(opts.RateHz)
	}
	return &Publisher{
		client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		queue:   make(chan message, opts.Buffer),
	}
}

// Session returns the flight session id.
func (p *Publisher) Session() string { return p.opts.Session }

// PublishFrame queues a frame unless the rate limit or a full queue says
// otherwise. It reports whether the frame was queued.
func (p *Publisher) PublishFrame(f Frame) bool {
	if !p.limiter.Allow() {
		metrics.TelemetryDropped.WithLabelValues("frame", "throttled").Inc()
		return false
	}
	f.Session = p.opts.Session
	return p.enqueue(message{kind: "frame", topic: p.opts.FrameTopic, retained: true, payload: f})
}

// Emit queues a controller event. It implements flight.EventSink.
func (p *Publisher) Emit(e flight.Event) {
	p.enqueue(message{kind: "event", topic: p.opts.EventTopic, payload: NewEventMessage(p.opts.Session, e)})
}

func (p *Publisher) enqueue(m message) bool {
	select {
	case p.queue <- m:
		return true
	default:
		metrics.TelemetryDropped.WithLabelValues(m.kind, "queue_full").Inc()
		return false
	}
}

// Run sends queued messages until ctx is done, then flushes what is left.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case m := <-p.queue:
			p.send(m)
		case <-ctx.Done():
			for {
				select {
				case m := <-p.queue:
					p.send(m)
				default:
					return nil
				}
			}
		}
	}
}

func (p *Publisher) send(m message) {
	payload, err := json.Marshal(m.payload)
	if err != nil {
		slog.Error("telemetry: marshal failed", "type", m.kind, "err", err)
		return
	}
	token := p.client.Publish(m.topic, 0, m.retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		metrics.TelemetryDropped.WithLabelValues(m.kind, "timeout").Inc()
		slog.Warn("telemetry: publish timed out", "topic", m.topic)
		return
	}
	if err := token.Error(); err != nil {
		metrics.TelemetryDropped.WithLabelValues(m.kind, "error").Inc()
		slog.Warn("telemetry: publish failed", "topic", m.topic, "err", err)
		return
	}
	metrics.TelemetryPublished.WithLabelValues(m.kind).Inc()
}
