package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

type RoomID string

const (
	MinCapacity    = 2
	MaxTitleLen    = 80
	MaxBootcampLen = 64
)

// Stage is the preparation stage a room recruits for.
type Stage string

const (
	StageCodingTest       Stage = "coding_test"
	StageInterview        Stage = "interview"
	StageSelfIntroduction Stage = "self_introduction"
	StagePortfolio        Stage = "portfolio"
)

var Stages = []Stage{StageCodingTest, StageInterview, StageSelfIntroduction, StagePortfolio}

func ParseStage(s string) (Stage, error) {
	st := Stage(strings.TrimSpace(s))
	if !slices.Contains(Stages, st) {
		return "", Invalid(fmt.Sprintf("unknown stage %q", s))
	}
	return st, nil
}

type RoomStatus string

const (
	StatusRecruiting RoomStatus = "recruiting"
	StatusConfirmed  RoomStatus = "confirmed"
	StatusClosed     RoomStatus = "closed"
)

// CanTransition reports whether a room may move from s to next.
// Confirmed and closed never revert to recruiting; closed is terminal.
func (s RoomStatus) CanTransition(next RoomStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusRecruiting:
		return next == StatusConfirmed || next == StatusClosed
	case StatusConfirmed:
		return next == StatusClosed
	default:
		return false
	}
}

type Room struct {
	ID            RoomID     `json:"id"`
	Title         string     `json:"title"`
	Stage         Stage      `json:"stage"`
	Bootcamp      string     `json:"bootcamp,omitempty"`
	Capacity      int        `json:"capacity"`
	HostID        UserID     `json:"host_id"`
	Members       []UserID   `json:"members"`
	Applicants    []UserID   `json:"applicants"`
	Status        RoomStatus `json:"status"`
	NextSessionAt time.Time  `json:"next_session_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Version       int64      `json:"version"`
}

// Clone returns a deep copy; rooms leave the registry only as clones.
func (r Room) Clone() Room {
	r.Members = slices.Clone(r.Members)
	r.Applicants = slices.Clone(r.Applicants)
	if r.Members == nil {
		r.Members = []UserID{}
	}
	if r.Applicants == nil {
		r.Applicants = []UserID{}
	}
	return r
}

func (r Room) IsMember(u UserID) bool    { return slices.Contains(r.Members, u) }
func (r Room) IsApplicant(u UserID) bool { return slices.Contains(r.Applicants, u) }
func (r Room) IsFull() bool              { return len(r.Members) >= r.Capacity }
func (r Room) OpenSlots() int            { return max(r.Capacity-len(r.Members), 0) }

// Validate checks the data-model invariants of a single room state.
func (r Room) Validate() error {
	if r.Capacity < MinCapacity {
		return fmt.Errorf("%w: capacity %d", ErrInvariantViolation, r.Capacity)
	}
	if len(r.Members) > r.Capacity {
		return fmt.Errorf("%w: %d members exceed capacity %d", ErrInvariantViolation, len(r.Members), r.Capacity)
	}
	if !r.IsMember(r.HostID) {
		return fmt.Errorf("%w: host %s is not a member", ErrInvariantViolation, r.HostID)
	}
	seen := make(map[UserID]struct{}, len(r.Members)+len(r.Applicants))
	for _, m := range r.Members {
		if _, dup := seen[m]; dup {
			return fmt.Errorf("%w: duplicate member %s", ErrInvariantViolation, m)
		}
		seen[m] = struct{}{}
	}
	for _, a := range r.Applicants {
		if _, dup := seen[a]; dup {
			return fmt.Errorf("%w: %s is both member and applicant", ErrInvariantViolation, a)
		}
		seen[a] = struct{}{}
	}
	switch r.Status {
	case StatusRecruiting, StatusClosed:
	case StatusConfirmed:
		if len(r.Members) != r.Capacity {
			return fmt.Errorf("%w: confirmed with %d/%d members", ErrInvariantViolation, len(r.Members), r.Capacity)
		}
		if len(r.Applicants) != 0 {
			return fmt.Errorf("%w: confirmed room has pending applicants", ErrInvariantViolation)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvariantViolation, r.Status)
	}
	return nil
}

// ValidateSuccessor checks that next is a legal successor of prev.
func ValidateSuccessor(prev, next Room) error {
	if prev.ID != next.ID || prev.HostID != next.HostID || prev.Stage != next.Stage || prev.Capacity != next.Capacity {
		return fmt.Errorf("%w: immutable field changed", ErrInvariantViolation)
	}
	if prev.Status == StatusClosed {
		return fmt.Errorf("%w: closed room mutated", ErrRoomClosed)
	}
	if !prev.Status.CanTransition(next.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvariantViolation, prev.Status, next.Status)
	}
	return next.Validate()
}

// CreateRoomParams are the host-supplied fields of a new room.
type CreateRoomParams struct {
	HostID        UserID
	Stage         Stage
	Capacity      int
	Title         string
	Bootcamp      string
	NextSessionAt time.Time
}

// NewRoom builds a recruiting room whose only member is the host.
func NewRoom(id RoomID, p CreateRoomParams, maxCapacity int, now time.Time) (Room, error) {
	if p.Capacity < MinCapacity || (maxCapacity > 0 && p.Capacity > maxCapacity) {
		return Room{}, fmt.Errorf("%w: %d", ErrInvalidCapacity, p.Capacity)
	}
	if p.HostID == "" {
		return Room{}, Invalid("host is required")
	}
	stage, err := ParseStage(string(p.Stage))
	if err != nil {
		return Room{}, err
	}
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return Room{}, Invalid("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return Room{}, Invalid("title too long")
	}
	bootcamp := strings.TrimSpace(p.Bootcamp)
	if utf8.RuneCountInString(bootcamp) > MaxBootcampLen {
		return Room{}, Invalid("bootcamp too long")
	}
	r := Room{
		ID:            id,
		Title:         title,
		Stage:         stage,
		Bootcamp:      bootcamp,
		Capacity:      p.Capacity,
		HostID:        p.HostID,
		Members:       []UserID{p.HostID},
		Applicants:    []UserID{},
		Status:        StatusRecruiting,
		NextSessionAt: p.NextSessionAt,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}
	return r, r.Validate()
}
