// Package nats is the reference inbound transport for the processor: a
// JetStream pull-consumer that decodes each message as a
// engine/processor.Message and feeds it to the dispatcher's channel,
// replaying Nak on the rare decode failure and Ack otherwise.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/flowcore/runner/engine/processor"
	"github.com/flowcore/runner/pkg/logger"
)

const defaultAckWait = 30 * time.Second

func decodeMessage(data []byte) (processor.Message, error) {
	var m processor.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return processor.Message{}, fmt.Errorf("nats: decode processor message: %w", err)
	}
	return m, nil
}

// Config names the stream/consumer/subject this transport binds to.
type Config struct {
	URL          string
	StreamName   string
	ConsumerName string
	Subject      string
	FetchBatch   int
	FetchTimeout time.Duration
}

// Transport owns the JetStream consumer; Run feeds the channel it is given.
type Transport struct {
	consumer jetstream.Consumer
	cfg      Config
	log      logger.Logger
}

// Connect uses the caller's already-dialed connection nc to ensure the
// stream and a durable pull-consumer filtered to cfg.Subject exist, and
// returns a Transport ready to Run. cfg.URL is not used here.
func Connect(ctx context.Context, nc *natsgo.Conn, cfg Config, log logger.Logger) (*Transport, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("nats: jetstream client: %w", err)
	}
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: []string{cfg.Subject},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("nats: create or update stream: %w", err)
	}
	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          cfg.ConsumerName,
		Durable:       cfg.ConsumerName,
		FilterSubject: cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       defaultAckWait,
		MaxDeliver:    3,
	})
	if err != nil {
		return nil, fmt.Errorf("nats: create or update consumer: %w", err)
	}
	return &Transport{consumer: consumer, cfg: cfg, log: log}, nil
}

// Run fetches batches until ctx is canceled, decoding each message as a
// processor.Message and sending it on out. A message that fails to decode is
// Nak'd, so JetStream redelivers it until the consumer's MaxDeliver of 3 is
// reached; every other message is Ack'd once handed off.
func (t *Transport) Run(ctx context.Context, out chan<- processor.Message) {
	batch := t.cfg.FetchBatch
	if batch < 1 {
		batch = 50
	}
	timeout := t.cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msgs, err := t.consumer.Fetch(batch, jetstream.FetchMaxWait(timeout))
		if err != nil {
			if errors.Is(err, jetstream.ErrConsumerNotFound) {
				t.log.Error("nats: consumer not found, stopping transport", "error", err)
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			t.log.Warn("nats: fetch failed, backing off", "error", err)
			time.Sleep(time.Second)
			continue
		}
		for msg := range msgs.Messages() {
			m, err := decodeMessage(msg.Data())
			if err != nil {
				t.log.Error("nats: decode message failed", "error", err, "subject", msg.Subject())
				if nakErr := msg.Nak(); nakErr != nil {
					t.log.Error("nats: nak failed", "error", nakErr)
				}
				continue
			}
			select {
			case out <- m:
			case <-ctx.Done():
				return
			}
			if err := msg.Ack(); err != nil {
				t.log.Error("nats: ack failed", "error", err, "subject", msg.Subject())
			}
		}
		if err := msgs.Error(); err != nil {
			t.log.Warn("nats: batch fetch error", "error", err)
		}
	}
}
