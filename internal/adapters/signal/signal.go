package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Matchbox/internal/app/orch"
	"github.com/dkeye/Matchbox/internal/core"
	"github.com/dkeye/Matchbox/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

const defaultWriteWait = 5 * time.Second

type SignalWSController struct {
	Orch       *orch.Orchestrator
	ReadLimit  int64
	SendBuffer int
	WriteWait  time.Duration
}

func NewSignalWSController(o *orch.Orchestrator, readLimit int64, sendBuffer int) *SignalWSController {
	return &SignalWSController{
		Orch:       o,
		ReadLimit:  readLimit,
		SendBuffer: sendBuffer,
		WriteWait:  defaultWriteWait,
	}
}

// WsSignalConn is the core.Transport over one websocket. Frames queue on
// send and are written by writePump; Close lets the queue drain before
// the close frame goes out.
type WsSignalConn struct {
	conn      *websocket.Conn
	send      chan core.Frame
	writeWait time.Duration

	mu       sync.RWMutex
	closed   bool
	closeMsg []byte
}

func newWsSignalConn(ws *websocket.Conn, buffer int, writeWait time.Duration) *WsSignalConn {
	if buffer <= 0 {
		buffer = 32
	}
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer), writeWait: writeWait}
}

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

// Ping writes a ping control frame; gorilla allows this concurrently with
// the write pump.
func (c *WsSignalConn) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

func (c *WsSignalConn) Close(reason core.CloseReason, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeMsg = websocket.FormatCloseMessage(closeCode(reason), text)
	close(c.send)
}

func (c *WsSignalConn) RemoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

func (c *WsSignalConn) closeMessage() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closeMsg
}

func closeCode(reason core.CloseReason) int {
	switch reason {
	case core.CloseGoingAway:
		return websocket.CloseGoingAway
	case core.ClosePolicyViolation:
		return websocket.ClosePolicyViolation
	case core.CloseInternalError:
		return websocket.CloseInternalServerErr
	default:
		return websocket.CloseNormalClosure
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")

	// The upgrade response is written by gorilla, so carry over the
	// session cookie the middleware may have set.
	var header http.Header
	if cookies := c.Writer.Header().Values("Set-Cookie"); len(cookies) > 0 {
		header = http.Header{"Set-Cookie": cookies}
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, header)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := newWsSignalConn(ws, ctl.SendBuffer, ctl.WriteWait)
	connection := ctl.Orch.Accept(conn, domain.ProfileID(token))
	ws.SetPongHandler(func(string) error {
		ctl.Orch.Pinger.Pong(connection.ID())
		return nil
	})
	log.Info().Str("module", "signal").Str("conn", connection.ID()).Str("client_token", token).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, connection, conn)
}
