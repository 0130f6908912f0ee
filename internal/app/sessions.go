package app

import (
	"context"
	"html"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/core"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
)

const defaultMaxMessageLen = 2000

// SignalValidator checks WebRTC negotiation payloads before they are relayed.
type SignalValidator interface {
	ValidateSignal(p domain.SignalPayload) error
}

// session is the volatile state of one confirmed room's live session.
// It is only touched while the room lock is held.
type session struct {
	roomID    domain.RoomID
	presence  map[domain.UserID]*domain.Presence
	order     []domain.UserID
	shareBy   domain.UserID
	messages  []domain.Message
	nextMsgID uint64
	createdAt time.Time
}

func newSession(id domain.RoomID) *session {
	return &session{
		roomID:    id,
		presence:  make(map[domain.UserID]*domain.Presence),
		nextMsgID: 1,
		createdAt: time.Now(),
	}
}

func (s *session) connected(u domain.UserID) bool {
	p, ok := s.presence[u]
	return ok && p.Connected
}

func (s *session) connectedCount() int {
	n := 0
	for _, p := range s.presence {
		if p.Connected {
			n++
		}
	}
	return n
}

func (s *session) snapshot(room domain.Room) domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		Room:          room,
		Presence:      make([]domain.Presence, 0, len(s.order)),
		ScreenShareBy: s.shareBy,
		Messages:      slices.Clone(s.messages),
	}
	for _, u := range s.order {
		snap.Presence = append(snap.Presence, *s.presence[u])
	}
	if snap.Messages == nil {
		snap.Messages = []domain.Message{}
	}
	return snap
}

// SessionsConfig tunes message handling.
type SessionsConfig struct {
	MaxMessageLen int
	Limiter       *RoomRateLimiter
	Validator     SignalValidator
}

// Sessions is the session coordinator. It shares the per-room locks with
// Matching, so session calls serialize with membership changes of the room.
type Sessions struct {
	mu       sync.Mutex
	sessions map[domain.RoomID]*session

	locks     *core.Locks
	rooms     *Registry
	hub       Publisher
	dir       core.Directory
	limiter   *RoomRateLimiter
	validator SignalValidator
	sanitizer *bluemonday.Policy
	maxLen    int
}

func NewSessions(locks *core.Locks, rooms *Registry, hub Publisher, dir core.Directory, cfg SessionsConfig) *Sessions {
	if cfg.MaxMessageLen <= 0 {
		cfg.MaxMessageLen = defaultMaxMessageLen
	}
	return &Sessions{
		sessions:  make(map[domain.RoomID]*session),
		locks:     locks,
		rooms:     rooms,
		hub:       hub,
		dir:       dir,
		limiter:   cfg.Limiter,
		validator: cfg.Validator,
		sanitizer: bluemonday.StrictPolicy(),
		maxLen:    cfg.MaxMessageLen,
	}
}

func (s *Sessions) get(id domain.RoomID) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

func (s *Sessions) put(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.roomID] = sess
}

func (s *Sessions) drop(id domain.RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Active reports how many sessions are live.
func (s *Sessions) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// withConnected runs fn under the room lock with the caller's live session.
func (s *Sessions) withConnected(ctx context.Context, op string, id domain.RoomID, user domain.UserID,
	fn func(sess *session) error,
) error {
	release, err := s.locks.Acquire(ctx, string(id), false)
	if err != nil {
		return domain.Fail(op, id, user, err)
	}
	defer release()

	sess := s.get(id)
	if sess == nil || !sess.connected(user) {
		return domain.Fail(op, id, user, domain.ErrNotConnected)
	}
	return domain.Fail(op, id, user, fn(sess))
}

// Join connects a member to the room's session, creating it on first join.
func (s *Sessions) Join(ctx context.Context, id domain.RoomID, user domain.UserID) (domain.SessionHandle, error) {
	release, err := s.locks.Acquire(ctx, string(id), false)
	if err != nil {
		return domain.SessionHandle{}, domain.Fail("join", id, user, err)
	}
	defer release()

	room, err := s.rooms.Get(id)
	if err != nil {
		return domain.SessionHandle{}, domain.Fail("join", id, user, domain.ErrNotFound)
	}
	if room.Status != domain.StatusConfirmed {
		return domain.SessionHandle{}, domain.Fail("join", id, user, domain.ErrRoomNotConfirmed)
	}
	if !room.IsMember(user) {
		return domain.SessionHandle{}, domain.Fail("join", id, user, domain.ErrNotMember)
	}

	sess := s.get(id)
	if sess == nil {
		sess = newSession(id)
		s.put(sess)
		log.Info().Str("module", "app.sessions").Str("room_id", string(id)).Msg("session started")
	}
	p, ok := sess.presence[user]
	if !ok {
		p = &domain.Presence{UserID: user}
		sess.presence[user] = p
		sess.order = append(sess.order, user)
	}
	p.Username = displayName(s.dir, user)
	if !p.Connected {
		p.Connected = true
		p.JoinedAt = time.Now()
		s.publish(domain.NewPresenceEvent(id, *p))
	}
	log.Info().Str("module", "app.sessions").Str("room_id", string(id)).Str("user", string(user)).Msg("joined")
	return domain.SessionHandle{RoomID: id, UserID: user, Snapshot: sess.snapshot(room)}, nil
}

// Leave disconnects a participant. It is a priority operation and a no-op
// for participants that are not connected.
func (s *Sessions) Leave(ctx context.Context, id domain.RoomID, user domain.UserID) error {
	release, err := s.locks.Acquire(ctx, string(id), true)
	if err != nil {
		return domain.Fail("leave", id, user, err)
	}
	defer release()

	sess := s.get(id)
	if sess == nil || !sess.connected(user) {
		return nil
	}
	s.disconnectLocked(sess, user)
	if sess.connectedCount() == 0 {
		s.drop(id)
		if s.limiter != nil {
			s.limiter.Forget(id)
		}
		log.Info().Str("module", "app.sessions").Str("room_id", string(id)).Msg("session ended")
	}
	log.Info().Str("module", "app.sessions").Str("room_id", string(id)).Str("user", string(user)).Msg("left")
	return nil
}

func (s *Sessions) disconnectLocked(sess *session, user domain.UserID) {
	if sess.shareBy == user {
		sess.shareBy = ""
		s.publish(domain.NewScreenShareEvent(sess.roomID, ""))
	}
	p := sess.presence[user]
	p.Connected = false
	p.Mic = false
	p.Video = false
	s.publish(domain.NewPresenceEvent(sess.roomID, *p))
}

// Terminate disconnects everyone and discards the session. The caller holds
// the room lock.
func (s *Sessions) Terminate(id domain.RoomID) {
	sess := s.get(id)
	if sess == nil {
		return
	}
	for _, u := range sess.order {
		if sess.connected(u) {
			s.disconnectLocked(sess, u)
		}
	}
	s.drop(id)
	if s.limiter != nil {
		s.limiter.Forget(id)
	}
	log.Info().Str("module", "app.sessions").Str("room_id", string(id)).Msg("session terminated")
}

// PostMessage appends a chat message. Order is the order in which callers
// acquired the room lock.
func (s *Sessions) PostMessage(ctx context.Context, id domain.RoomID, user domain.UserID, content string) (domain.Message, error) {
	var msg domain.Message
	err := s.withConnected(ctx, "post_message", id, user, func(sess *session) error {
		// The strict policy also escapes entities; clients render plain text.
		text := strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(content)))
		if text == "" {
			return domain.ErrEmptyMessage
		}
		if utf8.RuneCountInString(text) > s.maxLen {
			return domain.Invalid("message too long")
		}
		if !s.limiter.Allow(id, user) {
			return domain.ErrRateLimited
		}
		msg = domain.Message{
			ID:         sess.nextMsgID,
			SenderID:   user,
			SenderName: displayName(s.dir, user),
			Content:    text,
			SentAt:     time.Now(),
		}
		sess.nextMsgID++
		sess.messages = append(sess.messages, msg)
		s.publish(domain.NewMessageEvent(id, msg))
		return nil
	})
	return msg, err
}

// SetMediaState toggles the caller's own mic/video flags.
func (s *Sessions) SetMediaState(ctx context.Context, id domain.RoomID, user domain.UserID, upd domain.MediaUpdate) (domain.Presence, error) {
	var out domain.Presence
	err := s.withConnected(ctx, "set_media_state", id, user, func(sess *session) error {
		p := sess.presence[user]
		changed := false
		if upd.Mic != nil && *upd.Mic != p.Mic {
			p.Mic = *upd.Mic
			changed = true
		}
		if upd.Video != nil && *upd.Video != p.Video {
			p.Video = *upd.Video
			changed = true
		}
		if changed {
			s.publish(domain.NewPresenceEvent(id, *p))
		}
		out = *p
		return nil
	})
	return out, err
}

// RequestScreenShare grants the single share slot if it is free.
func (s *Sessions) RequestScreenShare(ctx context.Context, id domain.RoomID, user domain.UserID) (bool, error) {
	err := s.withConnected(ctx, "request_screen_share", id, user, func(sess *session) error {
		switch sess.shareBy {
		case user:
			return nil
		case "":
			sess.shareBy = user
			s.publish(domain.NewScreenShareEvent(id, user))
			return nil
		default:
			return domain.ErrShareInUse
		}
	})
	return err == nil, err
}

func (s *Sessions) StopScreenShare(ctx context.Context, id domain.RoomID, user domain.UserID) error {
	return s.withConnected(ctx, "stop_screen_share", id, user, func(sess *session) error {
		if sess.shareBy != user {
			return domain.ErrNotSharer
		}
		sess.shareBy = ""
		s.publish(domain.NewScreenShareEvent(id, ""))
		return nil
	})
}

// Relay forwards a WebRTC negotiation message to one connected participant.
func (s *Sessions) Relay(ctx context.Context, id domain.RoomID, from domain.UserID, p domain.SignalPayload) error {
	p.From = from
	if p.To == "" || p.To == from {
		return domain.Fail("relay", id, from, domain.Invalid("relay target is required"))
	}
	if s.validator != nil {
		if err := s.validator.ValidateSignal(p); err != nil {
			return domain.Fail("relay", id, from, err)
		}
	}
	return s.withConnected(ctx, "relay", id, from, func(sess *session) error {
		if !sess.connected(p.To) {
			return domain.ErrNotConnected
		}
		if s.hub != nil {
			s.hub.PublishTo(domain.NewSignalEvent(id, p), p.To)
		}
		return nil
	})
}

// Snapshot returns the current session state, or an empty one when nobody is
// connected.
func (s *Sessions) Snapshot(ctx context.Context, id domain.RoomID) (domain.SessionSnapshot, error) {
	release, err := s.locks.Acquire(ctx, string(id), false)
	if err != nil {
		return domain.SessionSnapshot{}, domain.Fail("snapshot", id, "", err)
	}
	defer release()

	room, err := s.rooms.Get(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	sess := s.get(id)
	if sess == nil {
		return newSession(id).snapshot(room), nil
	}
	return sess.snapshot(room), nil
}

func (s *Sessions) publish(ev domain.Event) {
	if s.hub != nil {
		s.hub.Publish(ev)
	}
}
