package signal

import (
	"context"
	"errors"

	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/app"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type roomPayload struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

type eventFrame struct {
	Type  string       `json:"type"`
	Event domain.Event `json:"event"`
}

// handleJoin binds the socket to a confirmed room's session. The event
// subscription is opened before joining so nothing committed after the
// snapshot is missed; clients drop events already reflected in it by seq or
// message id.
func (ctl *SignalWSController) handleJoin(ctx context.Context, cl *wsClient, data []byte) {
	var p roomPayload
	if !ctl.decode(cl, "join", data, &p) {
		return
	}
	roomID := domain.RoomID(p.Room)

	sub, err := ctl.Orch.Subscribe(roomID, cl.user)
	if err != nil {
		ctl.sendError(cl.conn, "join", err)
		return
	}
	handle, err := ctl.Orch.Join(ctx, roomID, cl.user)
	if err != nil {
		ctl.Orch.Unsubscribe(sub)
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(cl.user)).Str("room_id", p.Room).Msg("join refused")
		ctl.sendError(cl.conn, "join", err)
		return
	}
	ctl.rebind(ctx, cl, roomID, true, sub)

	log.Info().Str("module", "signal").Str("sid", string(cl.user)).Str("room_id", p.Room).Msg("join")
	_ = ctl.sendJSON(cl.conn, struct {
		Type       string                 `json:"type"`
		Room       domain.RoomID          `json:"room"`
		User       domain.UserID          `json:"user"`
		Snapshot   domain.SessionSnapshot `json:"snapshot"`
		ICEServers []webrtc.ICEServer     `json:"ice_servers"`
	}{
		Type:       "joined",
		Room:       roomID,
		User:       cl.user,
		Snapshot:   handle.Snapshot,
		ICEServers: ctl.iceServers,
	})
	go ctl.forward(cl, sub)
}

// handleWatch follows a room's state without joining its session, e.g. an
// applicant waiting for the room to be confirmed.
func (ctl *SignalWSController) handleWatch(cl *wsClient, data []byte) {
	var p roomPayload
	if !ctl.decode(cl, "watch", data, &p) {
		return
	}
	roomID := domain.RoomID(p.Room)
	room, err := ctl.Orch.GetRoom(roomID)
	if err != nil {
		ctl.sendError(cl.conn, "watch", err)
		return
	}
	sub, err := ctl.Orch.Subscribe(roomID, cl.user)
	if err != nil {
		ctl.sendError(cl.conn, "watch", err)
		return
	}
	ctl.rebind(context.Background(), cl, roomID, false, sub)

	_ = ctl.sendJSON(cl.conn, struct {
		Type string      `json:"type"`
		Room domain.Room `json:"room"`
	}{
		Type: "watching",
		Room: room,
	})
	go ctl.forward(cl, sub)
}

// handleLeave leaves the current room; the socket stays open.
func (ctl *SignalWSController) handleLeave(ctx context.Context, cl *wsClient) {
	log.Info().Str("module", "signal").Str("sid", string(cl.user)).Msg("leave")
	prev, _ := cl.current()
	if err := ctl.rebind(ctx, cl, "", false, nil); err != nil {
		ctl.sendError(cl.conn, "leave", err)
		return
	}
	_ = ctl.sendJSON(cl.conn, map[string]any{
		"type": "left",
		"room": prev,
	})
}

// detach releases whatever the socket was bound to once it is gone.
func (ctl *SignalWSController) detach(ctx context.Context, cl *wsClient) {
	if err := ctl.rebind(ctx, cl, "", false, nil); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(cl.user)).Msg("leave on disconnect")
	}
}

// rebind installs a new binding, then drops the previous subscription and
// leaves the previous session if the client is no longer in it.
func (ctl *SignalWSController) rebind(ctx context.Context, cl *wsClient, room domain.RoomID, joined bool, sub *app.Subscription) error {
	prevRoom, prevJoined, prevSub := cl.bind(room, joined, sub)
	ctl.Orch.Unsubscribe(prevSub)
	if prevJoined && !(joined && prevRoom == room) {
		return ctl.Orch.Leave(ctx, prevRoom, cl.user)
	}
	return nil
}

// forward pumps one subscription into the socket. A subscription the hub
// kicked for being slow asks the client to resync; one ended by the room
// closing unbinds the client.
func (ctl *SignalWSController) forward(cl *wsClient, sub *app.Subscription) {
	for ev := range sub.C() {
		if err := ctl.sendJSON(cl.conn, eventFrame{Type: "event", Event: ev}); err != nil {
			if errors.Is(err, ErrBackpressure) {
				log.Warn().Str("module", "signal").Str("sid", string(cl.user)).Msg("socket too slow, closing")
				cl.conn.Close()
			}
			return
		}
	}
	switch {
	case sub.Kicked():
		_ = ctl.sendJSON(cl.conn, map[string]any{
			"type": "resync",
			"room": sub.RoomID,
		})
	case cl.unbindIf(sub):
		_ = ctl.sendJSON(cl.conn, map[string]any{
			"type":   "left",
			"room":   sub.RoomID,
			"reason": "closed",
		})
	}
}
