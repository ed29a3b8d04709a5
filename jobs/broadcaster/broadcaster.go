// Package broadcaster drains the outbox ledger onto the durable trade
// feed. Every record is retried until the broker acknowledges it, then
// marked ACKED and deleted; the engine never blocks on Kafka.
package broadcaster

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"keel/infra/outbox"
)

type Broadcaster struct {
	ledger   *outbox.Outbox
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	log      *zap.Logger
}

// New connects the sync producer for the durable feed path.
func New(
	ledger *outbox.Outbox,
	brokers []string,
	topic string,
	interval time.Duration,
	log *zap.Logger,
) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		ledger:   ledger,
		producer: producer,
		topic:    topic,
		interval: interval,
		log:      log,
	}, nil
}

// Run pumps pending records until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Info("broadcaster started", zap.String("topic", b.topic))

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.drainOnce()
		}
	}
}

// drainOnce publishes everything still NEW, then retries anything stuck
// in SENT from a previous crash between publish and ack bookkeeping.
// Re-publishing a SENT record can duplicate a message on the topic;
// consumers dedupe on seq.
func (b *Broadcaster) drainOnce() {
	for _, state := range []outbox.State{outbox.StateNew, outbox.StateSent} {
		err := b.ledger.ScanByState(state, func(seq uint64, rec outbox.Record) error {
			return b.publish(seq, rec)
		})
		if err != nil {
			b.log.Error("outbox scan", zap.Error(err))
		}
	}
}

func (b *Broadcaster) publish(seq uint64, rec outbox.Record) error {
	if err := b.ledger.UpdateState(seq, outbox.StateSent, rec.Retries+1); err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: b.topic,
		Value: sarama.ByteEncoder(rec.Payload),
	}
	if _, _, err := b.producer.SendMessage(msg); err != nil {
		b.log.Warn("trade publish failed, will retry",
			zap.Uint64("seq", seq),
			zap.Uint32("retries", rec.Retries+1),
			zap.Error(err),
		)
		return nil
	}

	if err := b.ledger.UpdateState(seq, outbox.StateAcked, rec.Retries+1); err != nil {
		return err
	}
	return b.ledger.Delete(seq)
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
