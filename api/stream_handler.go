package api

import (
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/xraph/burst/stream"
	"github.com/xraph/burst/wire"
)

// runEventsSSE streams a run's events as Server-Sent Events. The first
// event is a run.snapshot; the stream ends after run.completed.
func (a *API) runEventsSSE(c *gin.Context) {
	rn, err := a.eng.Run(c.Param("runId"))
	if err != nil {
		fail(c, err)
		return
	}

	broker := a.eng.Broker()
	topic := stream.RunTopic(rn.ID().String())
	subID := "sse-" + uuid.NewString()
	// Subscribe before taking the snapshot so nothing falls between them.
	sub := broker.Subscribe(subID, topic)
	defer broker.RemoveSubscriber(subID)

	snap := rn.Report()
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent(string(stream.EventRunSnapshot), stream.Snapshot(snap))
	c.Writer.Flush()
	if snap.State.Terminal() {
		return
	}

	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		select {
		case evt, ok := <-sub.C():
			if !ok {
				return false
			}
			// SSE has no credit frames; every delivered event is repaid.
			sub.AddCredits(1)
			c.SSEvent(string(evt.Type), evt)
			return !evt.Final()
		case <-ctx.Done():
			return false
		}
	})
}

// runEventsWS streams a run's events as wire frames over WebSocket.
// ?format=msgpack selects binary frames. Clients may send credits and
// ping frames; the server answers pings and ends with an end frame
// after run.completed.
func (a *API) runEventsWS(c *gin.Context) {
	rn, err := a.eng.Run(c.Param("runId"))
	if err != nil {
		fail(c, err)
		return
	}
	codec := wire.GetCodec(c.Query("format"))

	conn, _, _, err := ws.UpgradeHTTP(c.Request, c.Writer)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	broker := a.eng.Broker()
	topic := stream.RunTopic(rn.ID().String())
	subID := "ws-" + uuid.NewString()
	sub := broker.Subscribe(subID, topic)
	defer broker.RemoveSubscriber(subID)

	fw := &frameWriter{conn: conn, codec: codec}
	log := a.logger.With(slog.String("conn_id", subID), slog.String("codec", codec.Name()))
	log.Debug("run stream connected", slog.String("run_id", rn.ID().String()))
	defer log.Debug("run stream disconnected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.readFrames(conn, codec, sub, fw, log)
	}()

	snap := rn.Report()
	if err := fw.write(wire.NewEventFrame(stream.Snapshot(snap))); err != nil {
		return
	}
	if snap.State.Terminal() {
		fw.end(topic)
		return
	}

	for {
		select {
		case evt, ok := <-sub.C():
			if !ok {
				return
			}
			if err := fw.write(wire.NewEventFrame(evt)); err != nil {
				return
			}
			if evt.Final() {
				fw.end(topic)
				return
			}
		case <-done:
			return
		}
	}
}

// readFrames handles client frames until the connection closes.
func (a *API) readFrames(conn net.Conn, codec wire.Codec, sub *stream.Subscriber, fw *frameWriter, log *slog.Logger) {
	for {
		data, _, err := wsutil.ReadClientData(conn)
		if err != nil {
			return
		}
		f, err := codec.Decode(data)
		if err != nil {
			if werr := fw.write(wire.NewErrorFrame(wire.ErrCodeBadRequest, "invalid frame: "+err.Error())); werr != nil {
				return
			}
			continue
		}
		switch f.Type {
		case wire.FrameCredits:
			if f.Credits > 0 {
				sub.AddCredits(f.Credits)
			}
		case wire.FramePing:
			if err := fw.write(wire.NewPongFrame()); err != nil {
				log.Warn("failed to write pong frame", slog.String("error", err.Error()))
			}
		default:
			if err := fw.write(wire.NewErrorFrame(wire.ErrCodeBadRequest, "unexpected frame type "+string(f.Type))); err != nil {
				return
			}
		}
	}
}

// frameWriter serializes writes from the event loop and the reader.
type frameWriter struct {
	mu    sync.Mutex
	conn  net.Conn
	codec wire.Codec
}

func (w *frameWriter) write(f *wire.Frame) error {
	data, err := w.codec.Encode(f)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.codec.Binary() {
		return wsutil.WriteServerBinary(w.conn, data)
	}
	return wsutil.WriteServerText(w.conn, data)
}

// end sends the end frame followed by a normal close.
func (w *frameWriter) end(channel string) {
	if err := w.write(wire.NewEndFrame(channel)); err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	//nolint:errcheck // best-effort close handshake
	ws.WriteFrame(w.conn, ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, "")))
}
