package domain

import "time"

type EventKind string

const (
	EventRoomStateChanged   EventKind = "room_state_changed"
	EventMessagePosted      EventKind = "message_posted"
	EventPresenceChanged    EventKind = "presence_changed"
	EventScreenShareChanged EventKind = "screen_share_changed"
	EventSignalRelayed      EventKind = "signal_relayed"
)

// Event is one committed change, numbered per room by the hub.
type Event struct {
	Seq    uint64    `json:"seq"`
	Kind   EventKind `json:"kind"`
	RoomID RoomID    `json:"room_id"`
	At     time.Time `json:"at"`

	Room          *Room          `json:"room,omitempty"`
	Message       *Message       `json:"message,omitempty"`
	Presence      *Presence      `json:"presence,omitempty"`
	ScreenShareBy *UserID        `json:"screen_share_by,omitempty"`
	Signal        *SignalPayload `json:"signal,omitempty"`
}

func NewRoomEvent(r Room) Event {
	c := r.Clone()
	return Event{Kind: EventRoomStateChanged, RoomID: r.ID, At: time.Now(), Room: &c}
}

func NewMessageEvent(room RoomID, m Message) Event {
	return Event{Kind: EventMessagePosted, RoomID: room, At: time.Now(), Message: &m}
}

func NewPresenceEvent(room RoomID, p Presence) Event {
	return Event{Kind: EventPresenceChanged, RoomID: room, At: time.Now(), Presence: &p}
}

// NewScreenShareEvent reports the current sharer; an empty id means nobody shares.
func NewScreenShareEvent(room RoomID, by UserID) Event {
	return Event{Kind: EventScreenShareChanged, RoomID: room, At: time.Now(), ScreenShareBy: &by}
}

func NewSignalEvent(room RoomID, p SignalPayload) Event {
	return Event{Kind: EventSignalRelayed, RoomID: room, At: time.Now(), Signal: &p}
}
