package publisher

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const ContentType = "application/x-protobuf"

// Publishes every serialized feed to a single NATS subject, so
// downstream consumers don't have to poll the HTTP endpoint.
type NATSPublisher struct {
	nc      msgConn
	subject string
	metrics PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

// The subset of *nats.Conn used here.
type msgConn interface {
	PublishMsg(msg *nats.Msg) error
	Drain() error
	Close()
}

func NewNATSPublisher(url string, subject string, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("gtfsrt"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return newNATSPublisher(nc, subject, m), nil
}

func newNATSPublisher(nc msgConn, subject string, m PublisherMetrics) *NATSPublisher {
	return &NATSPublisher{nc: nc, subject: Subject(subject), metrics: m}
}

func (p *NATSPublisher) Subject() string { return p.subject }

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// Publishes one serialized FeedMessage.
func (p *NATSPublisher) Publish(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.nc == nil {
		return errors.New("nats: not connected")
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set("Content-Type", ContentType)

	start := time.Now()
	err := p.nc.PublishMsg(msg)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

// Subject cleans up a dotted subject so every token is valid.
func Subject(s string) string {
	tokens := strings.Split(strings.Trim(strings.TrimSpace(s), "."), ".")
	for i, t := range tokens {
		tokens[i] = subjectToken(t)
	}
	return strings.Join(tokens, ".")
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>' or '*'
	repl := strings.NewReplacer(" ", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
