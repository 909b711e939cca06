package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Matchbox/internal/app/orch"
)

// writePump owns every data write. After ctx is done it keeps draining
// for one write period, so the close frame queued by shutdown still goes
// out.
func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	defer func() { _ = c.conn.Close() }()
	done := ctx.Done()
	var grace <-chan time.Time
	for {
		select {
		case <-done:
			log.Debug().Str("module", "signal").Msg("writePump ctx done, draining")
			done = nil
			grace = time.After(c.writeWait)
		case <-grace:
			log.Info().Str("module", "signal").Msg("writePump closed without close frame")
			return
		case data, ok := <-c.send:
			if !ok {
				deadline := time.Now().Add(c.writeWait)
				if err := c.conn.WriteControl(websocket.CloseMessage, c.closeMessage(), deadline); err != nil {
					log.Debug().Err(err).Str("module", "signal").Msg("writePump close frame")
				}
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
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

// readPump feeds frames to the state machine until the socket fails; the
// connection then terminates as remotely closed.
func (ctl *SignalWSController) readPump(ctx context.Context, connection *orch.Connection, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", connection.ID()).Msg("readPump closing")
		connection.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", connection.ID()).Msg("readPump ctx done")
			return
		default:
			kind, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", connection.ID()).Msg("readPump read error")
				}
				return
			}
			if kind != websocket.TextMessage {
				continue
			}
			connection.OnMessage(data)
		}
	}
}
