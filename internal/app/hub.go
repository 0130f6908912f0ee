package app

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
	"github.com/rs/zerolog/log"
)

const defaultSubscriberBuffer = 64

// Publisher receives committed events. Implementations must not block.
type Publisher interface {
	Publish(ev domain.Event)
	PublishTo(ev domain.Event, to domain.UserID)
}

// Subscription is one subscriber's ordered view of a room's events.
type Subscription struct {
	ID     string
	RoomID domain.RoomID
	UserID domain.UserID

	kinds  []domain.EventKind
	ch     chan domain.Event
	closed bool // guarded by Hub.mu
	kicked atomic.Bool
	lagged atomic.Bool
}

// C is closed when the subscription ends, either by Unsubscribe or by the
// backpressure policy (see Kicked).
func (s *Subscription) C() <-chan domain.Event { return s.ch }

// Kicked reports whether the hub dropped this subscriber; it must resync.
func (s *Subscription) Kicked() bool { return s.kicked.Load() }

// Lagged reports whether at least one event was dropped for this subscriber.
func (s *Subscription) Lagged() bool { return s.lagged.Load() }

func (s *Subscription) wants(k domain.EventKind) bool {
	return len(s.kinds) == 0 || slices.Contains(s.kinds, k)
}

// HubStats are process-wide delivery counters.
type HubStats struct {
	Subscribers int   `json:"subscribers"`
	Sent        int64 `json:"sent"`
	Dropped     int64 `json:"dropped"`
	Kicked      int64 `json:"kicked"`
}

// Hub fans out room events to subscribers in commit order. Publish is called
// inside the owning room's critical section, so per-room order is the commit
// order; sends never block.
type Hub struct {
	mu     sync.Mutex
	rooms  map[domain.RoomID][]*Subscription
	seqs   map[domain.RoomID]uint64
	buffer int
	policy Policy

	sent    atomic.Int64
	dropped atomic.Int64
	kicked  atomic.Int64
}

func NewHub(buffer int, policy Policy) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Hub{
		rooms:  make(map[domain.RoomID][]*Subscription),
		seqs:   make(map[domain.RoomID]uint64),
		buffer: buffer,
		policy: policy,
	}
}

// Subscribe registers a subscriber for room. With no kinds it receives all.
func (h *Hub) Subscribe(room domain.RoomID, user domain.UserID, kinds ...domain.EventKind) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		RoomID: room,
		UserID: user,
		kinds:  kinds,
		ch:     make(chan domain.Event, h.buffer),
	}
	h.mu.Lock()
	h.rooms[room] = append(h.rooms[room], sub)
	h.mu.Unlock()
	log.Debug().Str("module", "app.hub").Str("room_id", string(room)).Str("user", string(user)).Str("sub", sub.ID).Msg("subscribed")
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) Publish(ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seqs[ev.RoomID]++
	ev.Seq = h.seqs[ev.RoomID]
	h.deliverLocked(ev, "")
}

// PublishTo delivers ev only to the subscriptions of one user. Targeted events
// do not consume a room sequence number.
func (h *Hub) PublishTo(ev domain.Event, to domain.UserID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliverLocked(ev, to)
}

// Forget drops the room's sequence counter and closes its subscriptions.
func (h *Hub) Forget(room domain.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range slices.Clone(h.rooms[room]) {
		h.removeLocked(sub)
	}
	delete(h.seqs, room)
}

func (h *Hub) SubscriberCount(room domain.RoomID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

func (h *Hub) Stats() HubStats {
	h.mu.Lock()
	n := 0
	for _, subs := range h.rooms {
		n += len(subs)
	}
	h.mu.Unlock()
	return HubStats{
		Subscribers: n,
		Sent:        h.sent.Load(),
		Dropped:     h.dropped.Load(),
		Kicked:      h.kicked.Load(),
	}
}

func (h *Hub) deliverLocked(ev domain.Event, to domain.UserID) {
	var slow []*Subscription
	for _, sub := range h.rooms[ev.RoomID] {
		if to != "" && sub.UserID != to {
			continue
		}
		if !sub.wants(ev.Kind) {
			continue
		}
		select {
		case sub.ch <- ev:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
			slow = append(slow, sub)
		}
	}
	for _, sub := range slow {
		switch h.policy.OnBackPressure(sub) {
		case KickMember:
			sub.kicked.Store(true)
			sub.lagged.Store(true)
			h.kicked.Add(1)
			h.removeLocked(sub)
			log.Warn().Str("module", "app.hub").Str("room_id", string(sub.RoomID)).Str("user", string(sub.UserID)).Msg("kicked slow subscriber")
		case MarkSlow:
			sub.lagged.Store(true)
		case DropFrame, NoAction:
		}
	}
}

func (h *Hub) removeLocked(sub *Subscription) {
	subs := h.rooms[sub.RoomID]
	if i := slices.Index(subs, sub); i >= 0 {
		subs = slices.Delete(subs, i, i+1)
		if len(subs) == 0 {
			delete(h.rooms, sub.RoomID)
		} else {
			h.rooms[sub.RoomID] = subs
		}
	}
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}
