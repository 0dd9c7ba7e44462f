package kafka

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler returns nil once the message is processed and its offset may be
// committed.
type Handler func(ctx context.Context, m kafka.Message) error

// Reader is the subset of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       Reader
	workers int
	log     *zap.SugaredLogger

	// Retries is how often a failing message is retried before it is
	// committed and dropped.
	Retries int
	Backoff time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.SugaredLogger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return NewConsumerWithReader(r, workers, log)
}

func NewConsumerWithReader(r Reader, workers int, log *zap.SugaredLogger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, log: log, Retries: 3, Backoff: 200 * time.Millisecond}
}

// Start dispatches messages to workers by key hash: messages with the same
// key are handled in order by one worker. Offsets are committed per
// partition only once every earlier offset is handled. It returns when ctx
// ends or the reader fails, after the workers have drained.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	track := newCommitTracker()

	shards := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				c.handle(ctx, h, m, track)
			}
		}(shards[i])
	}
	stop := func() {
		for _, s := range shards {
			close(s)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		track.fetched(m)
		select {
		case shards[shardOf(m.Key, c.workers)] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message, track *commitTracker) {
	var err error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if err = h(ctx, m); err == nil {
			break
		}
		if ctx.Err() != nil {
			return
		}
		c.log.Warnw("handler error", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "attempt", attempt+1, "error", err)
		time.Sleep(c.Backoff)
	}
	if err != nil {
		c.log.Errorw("message dropped after retries", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "error", err)
	}
	if err := track.complete(ctx, m, c.r.CommitMessages); err != nil && ctx.Err() == nil {
		c.log.Warnw("commit failed", "topic", m.Topic, "offset", m.Offset, "error", err)
	}
}

func shardOf(key []byte, n int) int {
	if n <= 1 || len(key) == 0 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write(key)
	return int(h.Sum32() % uint32(n))
}
