package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/core"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Info().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cl *wsClient) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(cl.user)).Msg("readPump closing")
		cl.conn.Close()
	}()

	pongWait := ctl.pingPeriod * 10 / 9
	_ = cl.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.conn.SetPongHandler(func(string) error {
		return cl.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(cl.user)).Msg("readPump ctx done")
			return
		default:
			_, data, err := cl.conn.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().Err(err).Str("module", "signal").Str("sid", string(cl.user)).Msg("readPump read error")
				}
				return
			}
			_ = cl.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
			ctl.handleSignal(ctx, cl, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, cl *wsClient, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(cl.conn, env.Type, domain.Invalid("bad json"))
		return
	}

	switch env.Type {
	case "join":
		ctl.handleJoin(ctx, cl, data)
	case "watch":
		ctl.handleWatch(cl, data)
	case "leave":
		ctl.handleLeave(ctx, cl)
	case "ping":
		ctl.handlePing(cl.conn)
	case "rename":
		ctl.handleRename(cl, data)
	case "whoami":
		ctl.handleWhoAmI(cl)
	case "message":
		ctl.handleMessage(ctx, cl, data)
	case "media":
		ctl.handleMedia(ctx, cl, data)
	case "share_start":
		ctl.handleShareStart(ctx, cl)
	case "share_stop":
		ctl.handleShareStop(ctx, cl)
	case "offer", "answer", "candidate":
		ctl.handleRelay(ctx, cl, domain.SignalKind(env.Type), data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(cl.conn, env.Type, domain.Invalid("unknown message type"))
	}
}

func (ctl *SignalWSController) sendJSON(c core.SignalConnection, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return err
	}
	return c.TrySend(b)
}

type errorFrame struct {
	Type      string      `json:"type"`
	Op        string      `json:"op,omitempty"`
	Error     string      `json:"error"`
	Kind      domain.Kind `json:"kind"`
	Retryable bool        `json:"retryable,omitempty"`
}

func (ctl *SignalWSController) sendError(c core.SignalConnection, op string, err error) {
	_ = ctl.sendJSON(c, errorFrame{
		Type:      "error",
		Op:        op,
		Error:     domain.CodeOf(err),
		Kind:      domain.KindOf(err),
		Retryable: domain.IsRetryable(err),
	})
}

// decode unmarshals a client frame, answering with an error frame on failure.
func (ctl *SignalWSController) decode(cl *wsClient, op string, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", op).Msg("bad payload")
		ctl.sendError(cl.conn, op, domain.Invalid("bad_payload"))
		return false
	}
	return true
}

// inRoom returns the room the client has joined, or answers not_connected.
func (ctl *SignalWSController) inRoom(cl *wsClient, op string) (domain.RoomID, bool) {
	room, joined := cl.current()
	if !joined {
		ctl.sendError(cl.conn, op, domain.ErrNotConnected)
		return "", false
	}
	return room, true
}
