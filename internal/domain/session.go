package domain

import "time"

// Presence is one participant's live state inside a session.
type Presence struct {
	UserID    UserID    `json:"user_id"`
	Username  string    `json:"username"`
	Connected bool      `json:"connected"`
	Mic       bool      `json:"mic"`
	Video     bool      `json:"video"`
	JoinedAt  time.Time `json:"joined_at"`
}

type Message struct {
	ID         uint64    `json:"id"`
	SenderID   UserID    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"sent_at"`
}

// MediaUpdate toggles only the flags that are set.
type MediaUpdate struct {
	Mic   *bool `json:"mic,omitempty"`
	Video *bool `json:"video,omitempty"`
}

// SessionSnapshot is the full state a client needs to resynchronize.
type SessionSnapshot struct {
	Room          Room       `json:"room"`
	Presence      []Presence `json:"presence"`
	ScreenShareBy UserID     `json:"screen_share_by,omitempty"`
	Messages      []Message  `json:"messages"`
}

type SessionHandle struct {
	RoomID   RoomID          `json:"room_id"`
	UserID   UserID          `json:"user_id"`
	Snapshot SessionSnapshot `json:"snapshot"`
}

type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "candidate"
)

// SignalPayload is a WebRTC negotiation message relayed between two participants.
type SignalPayload struct {
	From          UserID     `json:"from"`
	To            UserID     `json:"to"`
	Kind          SignalKind `json:"kind"`
	SDP           string     `json:"sdp,omitempty"`
	Candidate     string     `json:"candidate,omitempty"`
	SDPMid        *string    `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16    `json:"sdpMLineIndex,omitempty"`
}
