package app

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/core"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
)

// Registry is the arena of rooms keyed by id. It stores and validates; the
// business rules that decide a mutation live in Matching.
type Registry struct {
	mu          sync.RWMutex
	rooms       map[domain.RoomID]*domain.Room
	order       []domain.RoomID
	store       core.RoomStore
	maxCapacity int
	now         func() time.Time
}

// ListFilter narrows List; zero fields match everything.
type ListFilter struct {
	Stage    domain.Stage
	Bootcamp string
	MemberID domain.UserID
}

// NewRegistry builds a registry. A nil store keeps rooms in memory only.
func NewRegistry(store core.RoomStore, maxCapacity int) *Registry {
	return &Registry{
		rooms:       make(map[domain.RoomID]*domain.Room),
		store:       store,
		maxCapacity: maxCapacity,
		now:         time.Now,
	}
}

// Restore loads persisted rooms, oldest first.
func (r *Registry) Restore(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	rooms, err := r.store.LoadRooms(ctx)
	if err != nil {
		return fmt.Errorf("restore rooms: %w", err)
	}
	slices.SortStableFunc(rooms, func(a, b domain.Room) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range rooms {
		if err := room.Validate(); err != nil {
			log.Warn().Err(err).Str("module", "app.registry").Str("room_id", string(room.ID)).Msg("skipping invalid stored room")
			continue
		}
		if _, ok := r.rooms[room.ID]; ok {
			continue
		}
		c := room.Clone()
		r.rooms[room.ID] = &c
		r.order = append(r.order, room.ID)
	}
	log.Info().Str("module", "app.registry").Int("rooms", len(r.order)).Msg("restored rooms")
	return nil
}

func (r *Registry) Create(ctx context.Context, p domain.CreateRoomParams) (domain.Room, error) {
	id := domain.RoomID(ulid.Make().String())
	room, err := domain.NewRoom(id, p, r.maxCapacity, r.now())
	if err != nil {
		return domain.Room{}, domain.Fail("create_room", "", p.HostID, err)
	}
	if r.store != nil {
		if err := r.store.SaveRoom(ctx, room); err != nil {
			return domain.Room{}, fmt.Errorf("create_room: save: %w", err)
		}
	}

	r.mu.Lock()
	stored := room.Clone()
	r.rooms[id] = &stored
	r.order = append(r.order, id)
	r.mu.Unlock()

	log.Info().Str("module", "app.registry").Str("room_id", string(id)).Str("host", string(p.HostID)).
		Str("stage", string(p.Stage)).Int("capacity", p.Capacity).Msg("room created")
	return room.Clone(), nil
}

func (r *Registry) Get(id domain.RoomID) (domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	if !ok {
		return domain.Room{}, domain.Fail("get_room", id, "", domain.ErrNotFound)
	}
	return room.Clone(), nil
}

// List returns rooms in creation order.
func (r *Registry) List(f ListFilter) []domain.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Room, 0, len(r.order))
	for _, id := range r.order {
		room := r.rooms[id]
		if f.Stage != "" && room.Stage != f.Stage {
			continue
		}
		if f.Bootcamp != "" && room.Bootcamp != f.Bootcamp {
			continue
		}
		if f.MemberID != "" && !room.IsMember(f.MemberID) {
			continue
		}
		out = append(out, room.Clone())
	}
	return out
}

// Commit replaces the stored room with next. The caller must hold the room's
// lock. Nothing is stored unless next is a valid successor and the write
// through the store succeeded.
func (r *Registry) Commit(ctx context.Context, next domain.Room) (domain.Room, error) {
	r.mu.RLock()
	prev, ok := r.rooms[next.ID]
	var prevCopy domain.Room
	if ok {
		prevCopy = prev.Clone()
	}
	r.mu.RUnlock()
	if !ok {
		return domain.Room{}, domain.Fail("commit", next.ID, "", domain.ErrNotFound)
	}
	if err := domain.ValidateSuccessor(prevCopy, next); err != nil {
		log.Error().Err(err).Str("module", "app.registry").Str("room_id", string(next.ID)).Msg("rejected commit")
		return domain.Room{}, domain.Fail("commit", next.ID, "", err)
	}

	stored := next.Clone()
	stored.Version = prevCopy.Version + 1
	stored.UpdatedAt = r.now()
	if r.store != nil {
		if err := r.store.SaveRoom(ctx, stored); err != nil {
			return domain.Room{}, fmt.Errorf("commit room %s: save: %w", next.ID, err)
		}
	}

	r.mu.Lock()
	r.rooms[next.ID] = &stored
	r.mu.Unlock()
	return stored.Clone(), nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
