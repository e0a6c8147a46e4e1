package progress

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"demoforge/internal/logging"
)

// DefaultQueueSize bounds how many snapshots wait for a slow subscriber.
const DefaultQueueSize = 16

// Broadcaster is a per-project publish/subscribe hub for snapshots.
type Broadcaster struct {
	mu        sync.Mutex
	queueSize int
	topics    map[string]*topic
	logger    *slog.Logger
}

type topic struct {
	seq    uint64
	latest *Snapshot
	subs   map[*Subscription]struct{}
}

// Subscription receives snapshots for one project in emission order.
type Subscription struct {
	// C is closed after the terminal snapshot or when Close is called.
	C <-chan Snapshot

	ch        chan Snapshot
	b         *Broadcaster
	projectID string
	dropped   int
	closed    bool
}

// NewBroadcaster constructs a hub. queueSize <= 0 selects DefaultQueueSize.
func NewBroadcaster(queueSize int, logger *slog.Logger) *Broadcaster {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Broadcaster{
		queueSize: queueSize,
		topics:    make(map[string]*topic),
		logger:    logging.NewComponentLogger(logger, "progress"),
	}
}

// Publish records snap as the project's latest snapshot and hands it to every
// subscriber without blocking. Sequence and timestamps are filled in here.
// Once a run's terminal snapshot is published, later non-terminal snapshots
// carrying the same RunID are discarded and returned unsequenced.
func (b *Broadcaster) Publish(snap Snapshot) Snapshot {
	if b == nil {
		return snap
	}
	snap.ProjectID = strings.TrimSpace(snap.ProjectID)
	snap.Fraction = clampFraction(snap.Fraction)
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now().UTC()
	}
	if snap.StartedAt.IsZero() {
		snap.StartedAt = snap.UpdatedAt
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.topicLocked(snap.ProjectID)
	if t.latest != nil && t.latest.Terminal() && !snap.Terminal() &&
		snap.RunID != "" && snap.RunID == t.latest.RunID {
		b.logger.Debug("discarding snapshot after terminal state",
			logging.String(logging.FieldProjectID, snap.ProjectID),
			logging.String(logging.FieldRunID, snap.RunID),
			logging.String(logging.FieldStage, snap.Stage),
		)
		return snap
	}
	t.seq++
	snap.Sequence = t.seq
	latest := snap
	t.latest = &latest

	for sub := range t.subs {
		sub.deliverLocked(snap)
		if snap.Terminal() {
			sub.closeLocked()
			delete(t.subs, sub)
		}
	}
	return snap
}

// Subscribe registers a subscriber for projectID. The latest snapshot, if any,
// is queued first; if it is terminal the channel is closed right after it.
// A nil Broadcaster returns an already closed subscription.
func (b *Broadcaster) Subscribe(projectID string) *Subscription {
	projectID = strings.TrimSpace(projectID)
	if b == nil {
		ch := make(chan Snapshot)
		close(ch)
		return &Subscription{C: ch, ch: ch, projectID: projectID, closed: true}
	}
	ch := make(chan Snapshot, b.queueSize)
	sub := &Subscription{C: ch, ch: ch, b: b, projectID: projectID}

	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.topicLocked(projectID)
	if t.latest != nil {
		sub.deliverLocked(*t.latest)
		if t.latest.Terminal() {
			sub.closeLocked()
			return sub
		}
	}
	t.subs[sub] = struct{}{}
	return sub
}

// Latest returns the most recent snapshot for projectID.
func (b *Broadcaster) Latest(projectID string) (Snapshot, bool) {
	if b == nil {
		return Snapshot{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[strings.TrimSpace(projectID)]
	if !ok || t.latest == nil {
		return Snapshot{}, false
	}
	return *t.latest, true
}

// Seed records snap as the latest snapshot when projectID has none, without
// notifying anyone. It restores persisted state after a daemon restart so
// late subscribers still get a first snapshot. It reports whether snap was
// stored.
func (b *Broadcaster) Seed(snap Snapshot) bool {
	if b == nil {
		return false
	}
	snap.ProjectID = strings.TrimSpace(snap.ProjectID)
	snap.Fraction = clampFraction(snap.Fraction)
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.topicLocked(snap.ProjectID)
	if t.latest != nil {
		return false
	}
	t.seq++
	snap.Sequence = t.seq
	t.latest = &snap
	return true
}

// Reset drops the retained snapshot for projectID so subscribers that join
// before the next run wait for it instead of replaying the previous terminal
// snapshot. Live subscriptions stay open.
func (b *Broadcaster) Reset(projectID string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.topics[strings.TrimSpace(projectID)]; ok {
		t.latest = nil
	}
}

// Forget closes every subscription for projectID and drops its history.
func (b *Broadcaster) Forget(projectID string) {
	if b == nil {
		return
	}
	projectID = strings.TrimSpace(projectID)
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[projectID]
	if !ok {
		return
	}
	for sub := range t.subs {
		sub.closeLocked()
	}
	delete(b.topics, projectID)
}

// Subscribers returns the number of live subscriptions for projectID.
func (b *Broadcaster) Subscribers(projectID string) int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.topics[strings.TrimSpace(projectID)]; ok {
		return len(t.subs)
	}
	return 0
}

func (b *Broadcaster) topicLocked(projectID string) *topic {
	t, ok := b.topics[projectID]
	if !ok {
		t = &topic{subs: make(map[*Subscription]struct{})}
		b.topics[projectID] = t
	}
	return t
}

// Close detaches the subscription. Other subscribers are unaffected.
func (s *Subscription) Close() {
	if s == nil || s.b == nil {
		return
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if t, ok := s.b.topics[s.projectID]; ok {
		delete(t.subs, s)
	}
	s.closeLocked()
}

// Dropped reports how many snapshots were discarded because the subscriber
// fell behind.
func (s *Subscription) Dropped() int {
	if s == nil || s.b == nil {
		return 0
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	return s.dropped
}

// deliverLocked enqueues snap, evicting the oldest queued snapshot when the
// queue is full. Publishers hold b.mu so there is a single producer.
func (s *Subscription) deliverLocked(snap Snapshot) {
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- snap:
			return
		default:
		}
		select {
		case <-s.ch:
			s.dropped++
			if s.dropped == 1 {
				s.b.logger.Debug("progress subscriber lagging; dropping oldest snapshots",
					logging.String(logging.FieldProjectID, s.projectID))
			}
		default:
		}
	}
}

func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
