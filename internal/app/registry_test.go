package app

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
)

type memStore struct {
	saved   map[domain.RoomID]domain.Room
	failing bool
}

func newMemStore() *memStore {
	return &memStore{saved: make(map[domain.RoomID]domain.Room)}
}

func (s *memStore) SaveRoom(_ context.Context, r domain.Room) error {
	if s.failing {
		return errors.New("disk full")
	}
	s.saved[r.ID] = r.Clone()
	return nil
}

func (s *memStore) LoadRooms(context.Context) ([]domain.Room, error) {
	out := make([]domain.Room, 0, len(s.saved))
	for _, r := range s.saved {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *memStore) Close() error { return nil }

func TestRegistryCreateAndList(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil, 12)
	params := []domain.CreateRoomParams{
		{HostID: "h1", Stage: domain.StageInterview, Capacity: 3, Title: "mock", Bootcamp: "woowa"},
		{HostID: "h2", Stage: domain.StageCodingTest, Capacity: 4, Title: "algo", Bootcamp: "ssafy"},
		{HostID: "h3", Stage: domain.StageInterview, Capacity: 2, Title: "pair", Bootcamp: "ssafy"},
	}
	var ids []domain.RoomID
	for _, p := range params {
		r, err := reg.Create(ctx, p)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		ids = append(ids, r.ID)
	}
	if len(ids[0]) != 26 {
		t.Errorf("room id %q is not a ULID", ids[0])
	}

	tests := []struct {
		name   string
		filter ListFilter
		want   []domain.RoomID
	}{
		{"all in creation order", ListFilter{}, ids},
		{"by stage", ListFilter{Stage: domain.StageInterview}, []domain.RoomID{ids[0], ids[2]}},
		{"by bootcamp", ListFilter{Bootcamp: "ssafy"}, []domain.RoomID{ids[1], ids[2]}},
		{"by member", ListFilter{MemberID: "h2"}, []domain.RoomID{ids[1]}},
		{"no match", ListFilter{Stage: domain.StagePortfolio}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []domain.RoomID
			for _, r := range reg.List(tt.filter) {
				got = append(got, r.ID)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("List() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	reg := NewRegistry(nil, 0)
	r, err := reg.Create(context.Background(), domain.CreateRoomParams{HostID: "h", Stage: domain.StageInterview, Capacity: 2, Title: "t"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	got, _ := reg.Get(r.ID)
	got.Members[0] = "intruder"
	again, _ := reg.Get(r.ID)
	if again.Members[0] != "h" {
		t.Errorf("stored room mutated through Get copy")
	}
	if _, err := reg.Get("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want %v", err, domain.ErrNotFound)
	}
}

func TestRegistryCreateRejectsCapacity(t *testing.T) {
	reg := NewRegistry(nil, 12)
	for _, c := range []int{0, 1, 13} {
		_, err := reg.Create(context.Background(), domain.CreateRoomParams{HostID: "h", Stage: domain.StageInterview, Capacity: c, Title: "t"})
		if !errors.Is(err, domain.ErrInvalidCapacity) {
			t.Errorf("Create(capacity %d) error = %v, want %v", c, err, domain.ErrInvalidCapacity)
		}
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0", reg.Len())
	}
}

func TestRegistryCommit(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	reg := NewRegistry(store, 0)
	r, err := reg.Create(ctx, domain.CreateRoomParams{HostID: "h", Stage: domain.StageInterview, Capacity: 2, Title: "t"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	bad := r.Clone()
	bad.Members = append(bad.Members, "a", "b")
	if _, err := reg.Commit(ctx, bad); !errors.Is(err, domain.ErrInvariantViolation) {
		t.Fatalf("Commit(over capacity) error = %v, want %v", err, domain.ErrInvariantViolation)
	}

	next := r.Clone()
	next.Members = append(next.Members, "a")
	next.Status = domain.StatusConfirmed
	committed, err := reg.Commit(ctx, next)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if committed.Version != r.Version+1 {
		t.Errorf("Version = %d, want %d", committed.Version, r.Version+1)
	}
	if store.saved[r.ID].Version != committed.Version {
		t.Errorf("store has version %d, want %d", store.saved[r.ID].Version, committed.Version)
	}

	store.failing = true
	closed := committed.Clone()
	closed.Status = domain.StatusClosed
	if _, err := reg.Commit(ctx, closed); err == nil {
		t.Fatalf("Commit() with failing store succeeded")
	}
	got, _ := reg.Get(r.ID)
	if got.Status != domain.StatusConfirmed {
		t.Errorf("Status = %s after failed write-through, want confirmed", got.Status)
	}
}

func TestRegistryRestore(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []domain.RoomID{"c", "a", "b"} {
		r, err := domain.NewRoom(id, domain.CreateRoomParams{HostID: "h", Stage: domain.StageInterview, Capacity: 2, Title: "t"}, 0, base.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("NewRoom() error = %v", err)
		}
		store.saved[id] = r
	}
	store.saved["broken"] = domain.Room{ID: "broken", HostID: "h", Capacity: 2, Status: domain.StatusRecruiting, CreatedAt: base}

	reg := NewRegistry(store, 0)
	if err := reg.Restore(ctx); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	var got []domain.RoomID
	for _, r := range reg.List(ListFilter{}) {
		got = append(got, r.ID)
	}
	if want := []domain.RoomID{"c", "a", "b"}; !slices.Equal(got, want) {
		t.Errorf("restored order = %v, want %v", got, want)
	}
}
