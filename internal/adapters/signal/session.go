package signal

import (
	"context"

	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
)

// Chat, media flags and screen share only answer the caller on failure; the
// outcome reaches everybody, the caller included, as a room event.

func (ctl *SignalWSController) handleMessage(ctx context.Context, cl *wsClient, data []byte) {
	var p struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}
	if !ctl.decode(cl, "message", data, &p) {
		return
	}
	roomID, ok := ctl.inRoom(cl, "message")
	if !ok {
		return
	}
	if _, err := ctl.Orch.PostMessage(ctx, roomID, cl.user, p.Content); err != nil {
		ctl.sendError(cl.conn, "message", err)
	}
}

func (ctl *SignalWSController) handleMedia(ctx context.Context, cl *wsClient, data []byte) {
	var p struct {
		Type  string `json:"type"`
		Mic   *bool  `json:"mic"`
		Video *bool  `json:"video"`
	}
	if !ctl.decode(cl, "media", data, &p) {
		return
	}
	roomID, ok := ctl.inRoom(cl, "media")
	if !ok {
		return
	}
	upd := domain.MediaUpdate{Mic: p.Mic, Video: p.Video}
	if _, err := ctl.Orch.SetMediaState(ctx, roomID, cl.user, upd); err != nil {
		ctl.sendError(cl.conn, "media", err)
	}
}

func (ctl *SignalWSController) handleShareStart(ctx context.Context, cl *wsClient) {
	roomID, ok := ctl.inRoom(cl, "share_start")
	if !ok {
		return
	}
	if _, err := ctl.Orch.RequestScreenShare(ctx, roomID, cl.user); err != nil {
		ctl.sendError(cl.conn, "share_start", err)
	}
}

func (ctl *SignalWSController) handleShareStop(ctx context.Context, cl *wsClient) {
	roomID, ok := ctl.inRoom(cl, "share_stop")
	if !ok {
		return
	}
	if err := ctl.Orch.StopScreenShare(ctx, roomID, cl.user); err != nil {
		ctl.sendError(cl.conn, "share_stop", err)
	}
}
