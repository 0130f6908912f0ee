package app

import (
	"context"
	"slices"

	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/core"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
	"github.com/rs/zerolog/log"
)

// SessionTerminator ends a room's live session. The caller holds the room lock.
type SessionTerminator interface {
	Terminate(room domain.RoomID)
}

// Matching applies the application and approval workflow. Every operation
// runs inside the room's critical section: read, check, commit, publish.
type Matching struct {
	locks    *core.Locks
	rooms    *Registry
	hub      Publisher
	sessions SessionTerminator
}

func NewMatching(locks *core.Locks, rooms *Registry, hub Publisher, sessions SessionTerminator) *Matching {
	return &Matching{locks: locks, rooms: rooms, hub: hub, sessions: sessions}
}

// mutate runs fn on a copy of the room under its lock and commits the result.
// fn reports whether anything changed; unchanged rooms are neither committed
// nor published.
func (m *Matching) mutate(ctx context.Context, op string, id domain.RoomID, user domain.UserID, priority bool,
	fn func(r *domain.Room) (bool, error),
) (domain.Room, error) {
	release, err := m.locks.Acquire(ctx, string(id), priority)
	if err != nil {
		return domain.Room{}, domain.Fail(op, id, user, err)
	}
	defer release()

	room, err := m.rooms.Get(id)
	if err != nil {
		return domain.Room{}, domain.Fail(op, id, user, domain.ErrNotFound)
	}
	changed, err := fn(&room)
	if err != nil {
		return domain.Room{}, domain.Fail(op, id, user, err)
	}
	if !changed {
		return room, nil
	}
	committed, err := m.rooms.Commit(ctx, room)
	if err != nil {
		return domain.Room{}, err
	}
	if committed.Status == domain.StatusClosed && m.sessions != nil {
		m.sessions.Terminate(id)
	}
	if m.hub != nil {
		m.hub.Publish(domain.NewRoomEvent(committed))
	}
	log.Info().Str("module", "app.matching").Str("op", op).Str("room_id", string(id)).Str("user", string(user)).
		Str("status", string(committed.Status)).Int("members", len(committed.Members)).Msg("room updated")
	return committed, nil
}

func (m *Matching) Apply(ctx context.Context, id domain.RoomID, user domain.UserID) (domain.Room, error) {
	return m.mutate(ctx, "apply", id, user, false, func(r *domain.Room) (bool, error) {
		switch {
		case r.Status == domain.StatusClosed:
			return false, domain.ErrRoomClosed
		case r.Status == domain.StatusConfirmed:
			return false, domain.ErrRoomFull
		case r.IsMember(user):
			return false, domain.ErrAlreadyMember
		case r.IsApplicant(user):
			return false, domain.ErrAlreadyApplied
		}
		r.Applicants = append(r.Applicants, user)
		return true, nil
	})
}

// Approve admits an applicant. Filling the last slot confirms the room and
// drops any remaining applicants.
func (m *Matching) Approve(ctx context.Context, id domain.RoomID, approver, applicant domain.UserID) (domain.Room, error) {
	return m.mutate(ctx, "approve", id, applicant, false, func(r *domain.Room) (bool, error) {
		if err := checkDecision(r, approver, applicant); err != nil {
			return false, err
		}
		if r.IsFull() {
			return false, domain.ErrRoomFull
		}
		r.Applicants = slices.DeleteFunc(r.Applicants, func(u domain.UserID) bool { return u == applicant })
		r.Members = append(r.Members, applicant)
		if len(r.Members) == r.Capacity {
			r.Status = domain.StatusConfirmed
			r.Applicants = []domain.UserID{}
		}
		return true, nil
	})
}

func (m *Matching) Reject(ctx context.Context, id domain.RoomID, approver, applicant domain.UserID) (domain.Room, error) {
	return m.mutate(ctx, "reject", id, applicant, false, func(r *domain.Room) (bool, error) {
		if err := checkDecision(r, approver, applicant); err != nil {
			return false, err
		}
		r.Applicants = slices.DeleteFunc(r.Applicants, func(u domain.UserID) bool { return u == applicant })
		return true, nil
	})
}

// Withdraw lets an applicant cancel their own pending application.
func (m *Matching) Withdraw(ctx context.Context, id domain.RoomID, user domain.UserID) (domain.Room, error) {
	return m.mutate(ctx, "withdraw", id, user, false, func(r *domain.Room) (bool, error) {
		switch {
		case r.Status == domain.StatusClosed:
			return false, domain.ErrRoomClosed
		case r.Status == domain.StatusConfirmed:
			return false, domain.ErrRoomFull
		case !r.IsApplicant(user):
			return false, domain.ErrNotApplicant
		}
		r.Applicants = slices.DeleteFunc(r.Applicants, func(u domain.UserID) bool { return u == user })
		return true, nil
	})
}

// Close force-closes the room regardless of headcount. Closing a closed room
// is a no-op. Close is a priority operation.
func (m *Matching) Close(ctx context.Context, id domain.RoomID, requester domain.UserID) (domain.Room, error) {
	return m.mutate(ctx, "close", id, requester, true, func(r *domain.Room) (bool, error) {
		if r.HostID != requester {
			return false, domain.ErrNotHost
		}
		if r.Status == domain.StatusClosed {
			return false, nil
		}
		r.Status = domain.StatusClosed
		r.Applicants = []domain.UserID{}
		return true, nil
	})
}

func checkDecision(r *domain.Room, approver, applicant domain.UserID) error {
	switch {
	case r.Status == domain.StatusClosed:
		return domain.ErrRoomClosed
	case r.HostID != approver:
		return domain.ErrNotHost
	case r.Status == domain.StatusConfirmed:
		return domain.ErrRoomFull
	case !r.IsApplicant(applicant):
		return domain.ErrNotApplicant
	}
	return nil
}
