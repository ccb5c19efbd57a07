package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/xraph/burst/stream"
	"github.com/xraph/burst/wire"
)

// Watch follows a run's events over WebSocket. The first event is a
// run.snapshot; the channel is closed after run.completed, on a
// connection error or when ctx is done.
func (c *Client) Watch(ctx context.Context, runID string) (<-chan *stream.Event, error) {
	u, err := c.streamURL(runID)
	if err != nil {
		return nil, err
	}
	var dialer ws.Dialer
	if c.token != "" {
		dialer.Header = ws.HandshakeHeaderHTTP(http.Header{"Authorization": {"Bearer " + c.token}})
	}
	conn, _, _, err := dialer.Dial(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("burst/client: websocket dial: %w", err)
	}

	ch := make(chan *stream.Event, c.bufferSize)
	go c.readEvents(ctx, conn, wire.GetCodec(c.format), ch)
	return ch, nil
}

func (c *Client) streamURL(runID string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("burst/client: base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/runs/" + url.PathEscape(runID) + "/ws"
	if c.format != "" && c.format != wire.CodecNameJSON {
		u.RawQuery = url.Values{"format": {c.format}}.Encode()
	}
	return u.String(), nil
}

// readEvents forwards event frames to ch and repays credits in batches.
func (c *Client) readEvents(ctx context.Context, conn net.Conn, codec wire.Codec, ch chan<- *stream.Event) {
	defer close(ch)
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var consumed int64
	for {
		data, _, err := wsutil.ReadServerData(conn)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Debug("run stream closed", slog.String("error", err.Error()))
			}
			return
		}
		f, err := codec.Decode(data)
		if err != nil {
			c.logger.Warn("burst/client: invalid frame", slog.String("error", err.Error()))
			continue
		}

		switch f.Type {
		case wire.FrameEvent:
			if f.Event == nil {
				continue
			}
			select {
			case ch <- f.Event:
			case <-ctx.Done():
				return
			}
			if consumed++; consumed >= c.creditBatch {
				if err := c.writeFrame(conn, codec, wire.NewCreditsFrame(consumed)); err != nil {
					return
				}
				consumed = 0
			}
		case wire.FrameEnd:
			return
		case wire.FrameErr:
			if f.Error != nil {
				c.logger.Warn("burst/client: server error frame",
					slog.Int("code", f.Error.Code),
					slog.String("message", f.Error.Message),
				)
			}
		}
	}
}

func (c *Client) writeFrame(conn net.Conn, codec wire.Codec, f *wire.Frame) error {
	data, err := codec.Encode(f)
	if err != nil {
		return err
	}
	if codec.Binary() {
		return wsutil.WriteClientBinary(conn, data)
	}
	return wsutil.WriteClientText(conn, data)
}
