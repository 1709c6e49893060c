package client

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"

	"github.com/nurdwerks/jules-interface/internal/logging"
	"github.com/nurdwerks/jules-interface/internal/types"
)

const streamBuffer = 256

// Events opens the backend's websocket push channel. The returned channel
// closes when the connection drops; the cancel func tears the stream down.
// A frame that fails to parse is logged and dropped, never fatal.
func (c *Client) Events(ctx context.Context, log logging.Logger) (<-chan types.StreamEvent, func(), error) {
	if log == nil {
		log = logging.Nop()
	}
	ctx, cancel := context.WithCancel(ctx)

	dialer := websocket.DefaultDialer
	conn, resp, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		cancel()
		return nil, nil, err
	}

	ch := make(chan types.StreamEvent, streamBuffer)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(ch)
		defer cancel()
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					log.Warn("event stream closed", logging.F("err", err))
				}
				return
			}
			var event types.StreamEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				log.Warn("dropping malformed event", logging.F("err", err))
				continue
			}
			if event.Type == "" {
				log.Warn("dropping event without type")
				continue
			}
			select {
			case ch <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, cancel, nil
}
