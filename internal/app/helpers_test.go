package app

import (
	"context"
	"testing"
	"time"

	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/core"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
)

type testEnv struct {
	locks    *core.Locks
	dir      *Directory
	hub      *Hub
	reg      *Registry
	sessions *Sessions
	matching *Matching
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil, SessionsConfig{})
}

func newTestEnvWith(t *testing.T, store core.RoomStore, cfg SessionsConfig) *testEnv {
	t.Helper()
	locks := core.NewLocks(time.Second, 2*time.Second)
	dir := NewDirectory()
	hub := NewHub(256, nil)
	reg := NewRegistry(store, 12)
	sessions := NewSessions(locks, reg, hub, dir, cfg)
	return &testEnv{
		locks:    locks,
		dir:      dir,
		hub:      hub,
		reg:      reg,
		sessions: sessions,
		matching: NewMatching(locks, reg, hub, sessions),
	}
}

func (e *testEnv) createRoom(t *testing.T, host domain.UserID, capacity int) domain.Room {
	t.Helper()
	r, err := e.reg.Create(context.Background(), domain.CreateRoomParams{
		HostID:   host,
		Stage:    domain.StageCodingTest,
		Capacity: capacity,
		Title:    "daily algorithms",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return r
}

// admit runs apply+approve for each user.
func (e *testEnv) admit(t *testing.T, id domain.RoomID, host domain.UserID, users ...domain.UserID) domain.Room {
	t.Helper()
	ctx := context.Background()
	var room domain.Room
	for _, u := range users {
		if _, err := e.matching.Apply(ctx, id, u); err != nil {
			t.Fatalf("Apply(%s) error = %v", u, err)
		}
		r, err := e.matching.Approve(ctx, id, host, u)
		if err != nil {
			t.Fatalf("Approve(%s) error = %v", u, err)
		}
		room = r
	}
	return room
}

// confirmedRoom returns a confirmed room of host plus members.
func (e *testEnv) confirmedRoom(t *testing.T, host domain.UserID, members ...domain.UserID) domain.Room {
	t.Helper()
	r := e.createRoom(t, host, len(members)+1)
	r = e.admit(t, r.ID, host, members...)
	if r.Status != domain.StatusConfirmed {
		t.Fatalf("Status = %s, want confirmed", r.Status)
	}
	return r
}

// drain collects whatever is buffered on sub right now.
func drain(sub *Subscription) []domain.Event {
	var out []domain.Event
	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func kinds(evs []domain.Event) []domain.EventKind {
	out := make([]domain.EventKind, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Kind)
	}
	return out
}
