package signal

import (
	"context"

	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
	"github.com/rs/zerolog/log"
)

// relayPayload is an offer, answer or trickled candidate addressed to one
// other participant. Peers negotiate directly; the server only forwards.
type relayPayload struct {
	Type          string  `json:"type"`
	To            string  `json:"to"`
	SDP           string  `json:"sdp,omitempty"`
	Candidate     string  `json:"candidate,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

func (ctl *SignalWSController) handleRelay(ctx context.Context, cl *wsClient, kind domain.SignalKind, data []byte) {
	op := string(kind)
	var p relayPayload
	if !ctl.decode(cl, op, data, &p) {
		return
	}
	roomID, ok := ctl.inRoom(cl, op)
	if !ok {
		return
	}

	payload := domain.SignalPayload{
		To:            domain.UserID(p.To),
		Kind:          kind,
		SDP:           p.SDP,
		Candidate:     p.Candidate,
		SDPMid:        p.SDPMid,
		SDPMLineIndex: p.SDPMLineIndex,
	}
	if err := ctl.Orch.Relay(ctx, roomID, cl.user, payload); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(cl.user)).Str("type", op).Msg("relay refused")
		ctl.sendError(cl.conn, op, err)
	}
}
