package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/adapters/rtc"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/app"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/app/orch"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/core"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

const (
	sendBuffer     = 64
	writeWait      = 5 * time.Second
	defaultPing    = 54 * time.Second
	defaultReadLim = 32 << 10
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	ICEServers []string
}

type SignalWSController struct {
	Orch *orch.Orchestrator

	readLimit  int64
	pingPeriod time.Duration
	iceServers []webrtc.ICEServer
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLim
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = defaultPing
	}
	return &SignalWSController{
		Orch:       o,
		readLimit:  opts.ReadLimit,
		pingPeriod: opts.PingPeriod,
		iceServers: rtc.ICEServers(opts.ICEServers),
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

var _ core.SignalConnection = (*WsSignalConn)(nil)

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// wsClient is the per-connection view of one participant: the room the
// socket is bound to and the event subscription feeding it.
type wsClient struct {
	user domain.UserID
	conn *WsSignalConn

	mu     sync.Mutex
	room   domain.RoomID
	joined bool
	sub    *app.Subscription
}

func (cl *wsClient) current() (domain.RoomID, bool) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.room, cl.joined
}

// bind swaps the client's room binding and returns the previous one.
func (cl *wsClient) bind(room domain.RoomID, joined bool, sub *app.Subscription) (domain.RoomID, bool, *app.Subscription) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	prevRoom, prevJoined, prevSub := cl.room, cl.joined, cl.sub
	cl.room, cl.joined, cl.sub = room, joined, sub
	return prevRoom, prevJoined, prevSub
}

// unbindIf clears the binding only if sub is still the active subscription.
func (cl *wsClient) unbindIf(sub *app.Subscription) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.sub != sub {
		return false
	}
	cl.room, cl.joined, cl.sub = "", false, nil
	return true
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and serves the socket until either side
// goes away. On exit the participant leaves their session.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, user domain.UserID) {
	log.Info().Str("module", "signal").Str("sid", string(user)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.readLimit)

	client := &wsClient{
		user: user,
		conn: &WsSignalConn{conn: ws, send: make(chan core.Frame, sendBuffer)},
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg conc.WaitGroup
	wg.Go(func() {
		defer cancel()
		ctl.writePump(ctx, client.conn)
	})
	wg.Go(func() {
		defer cancel()
		ctl.readPump(ctx, client)
	})
	wg.Wait()

	ctl.detach(context.WithoutCancel(ctx), client)
	log.Info().Str("module", "signal").Str("sid", string(user)).Msg("WS connection closed")
}
