package signal

import (
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/core"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handlePing(conn core.SignalConnection) {
	_ = ctl.sendJSON(conn, struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	})
}

// handleRename changes the display name for new messages and presence
// updates. The HTTP session cookie is not touched from here.
func (ctl *SignalWSController) handleRename(cl *wsClient, data []byte) {
	var p struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if !ctl.decode(cl, "rename", data, &p) {
		return
	}
	if _, err := ctl.Orch.Directory.Rename(cl.user, p.Name); err != nil {
		ctl.sendError(cl.conn, "rename", domain.Invalid(err.Error()))
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(cl.user)).Str("name", p.Name).Msg("rename")
	ctl.handleWhoAmI(cl)
}

func (ctl *SignalWSController) handleWhoAmI(cl *wsClient) {
	user := ctl.Orch.Directory.GetOrCreate(cl.user)
	room, joined := cl.current()

	_ = ctl.sendJSON(cl.conn, struct {
		Type     string        `json:"type"`
		ID       domain.UserID `json:"id"`
		Username string        `json:"username"`
		Room     domain.RoomID `json:"room,omitempty"`
		Joined   bool          `json:"joined"`
	}{
		Type:     "whoami",
		ID:       user.ID,
		Username: user.Username,
		Room:     room,
		Joined:   joined,
	})
}
