package memory

import (
	"context"
	"errors"

	"batterystock/internal/core/changefeed"
)

var _ changefeed.Feed = (*Store)(nil)

// ErrSubscriberLagging ends a subscription whose consumer fell too far
// behind. The consumer is expected to resubscribe.
var ErrSubscriberLagging = errors.New("memory: subscriber lagging")

type subscriber struct {
	coll changefeed.Collection
	ch   chan changefeed.Batch
}

// Watch implements changefeed.Feed. The snapshot and the registration
// happen under the store lock, so no commit falls between them.
func (s *Store) Watch(ctx context.Context, coll changefeed.Collection, handler changefeed.Handler) error {
	sub := &subscriber{coll: coll, ch: make(chan changefeed.Batch, s.opts.SubscriberBuffer)}

	s.mu.Lock()
	snapshot := s.snapshotLocked(coll)
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	defer s.unsubscribe(sub)

	handler(ctx, changefeed.Batch{Initial: true, Events: snapshot})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-sub.ch:
			if !ok {
				return ErrSubscriberLagging
			}
			handler(ctx, batch)
		}
	}
}

func (s *Store) snapshotLocked(coll changefeed.Collection) []changefeed.Event {
	if !coll.Snapshotted() {
		return nil
	}
	docs := s.data[string(coll)]
	ids := sortedKeys(docs)
	events := make([]changefeed.Event, 0, len(ids))
	for _, id := range ids {
		events = append(events, changefeed.JSONEvent(changefeed.Added, coll, id, docs[id].body))
	}
	return events
}

func (s *Store) publishLocked(events map[changefeed.Collection][]changefeed.Event) {
	for sub := range s.subs {
		evs, ok := events[sub.coll]
		if !ok {
			continue
		}
		select {
		case sub.ch <- changefeed.Batch{Events: evs}:
		default:
			s.log.Warnw("dropping lagging subscriber", "collection", string(sub.coll))
			delete(s.subs, sub)
			close(sub.ch)
		}
	}
}

func (s *Store) unsubscribe(sub *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, sub)
}
