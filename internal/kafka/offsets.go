package kafka

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
)

type partition struct {
	topic string
	id    int
}

// commitTracker commits per partition only up to the longest run of
// handled messages, in fetch order. A message still in flight on one
// worker holds back the commit of every later offset of its partition.
type commitTracker struct {
	mu    sync.Mutex
	parts map[partition]*partOffsets
}

type partOffsets struct {
	queue []kafka.Message // fetched and not yet committed, fetch order
	done  map[int64]bool
}

func newCommitTracker() *commitTracker {
	return &commitTracker{parts: map[partition]*partOffsets{}}
}

func (t *commitTracker) fetched(m kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := partition{m.Topic, m.Partition}
	p := t.parts[k]
	if p == nil {
		p = &partOffsets{done: map[int64]bool{}}
		t.parts[k] = p
	}
	p.queue = append(p.queue, m)
}

// complete marks m handled and, if that extends the handled prefix, commits
// the last message of the prefix. commit runs under the lock so commits of
// one consumer never overtake each other.
func (t *commitTracker) complete(ctx context.Context, m kafka.Message, commit func(context.Context, ...kafka.Message) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.parts[partition{m.Topic, m.Partition}]
	if p == nil {
		return nil
	}
	p.done[m.Offset] = true

	n := 0
	for n < len(p.queue) && p.done[p.queue[n].Offset] {
		delete(p.done, p.queue[n].Offset)
		n++
	}
	if n == 0 {
		return nil
	}
	last := p.queue[n-1]
	p.queue = append(p.queue[:0:0], p.queue[n:]...)
	return commit(ctx, last)
}
