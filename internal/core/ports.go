package core

import (
	"context"

	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
)

// RoomStore is the durable record of room state. The registry writes every
// committed room through it while holding the room lock.
type RoomStore interface {
	SaveRoom(ctx context.Context, room domain.Room) error
	LoadRooms(ctx context.Context) ([]domain.Room, error)
	Close() error
}

// Directory resolves opaque participant ids to display identity.
type Directory interface {
	Lookup(id domain.UserID) (domain.User, bool)
}

// Frame is one encoded message for a participant's live connection.
type Frame []byte

// SignalConnection is a participant's outbound channel. TrySend never blocks;
// a full or closed connection reports an error and the caller decides whether
// to drop the frame or Close the connection.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
