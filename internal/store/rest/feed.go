package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/tasklabs/taskmate/internal/store"
)

// Subscribe opens the websocket change feed and delivers decoded events
// until the returned cancel function is called, the context is canceled,
// or the connection drops. The event channel is closed on teardown; the
// caller detects a dropped feed by the channel closing and falls back to
// manual refresh.
func (c *Client) Subscribe(ctx context.Context) (<-chan store.ChangeEvent, func(), error) {
	if !c.RealtimeAvailable() {
		return nil, nil, fmt.Errorf("realtime feed not configured")
	}

	wsURL := httpToWS(c.baseURL) + "/ws"
	dialOpts := &websocket.DialOptions{}
	if c.apiKey != "" {
		dialOpts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + c.apiKey}}
	}

	runCtx, cancel := context.WithCancel(ctx)
	conn, _, err := websocket.Dial(runCtx, wsURL, dialOpts)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("dial change feed: %w", err)
	}

	events := make(chan store.ChangeEvent, 16)

	go func() {
		defer close(events)
		defer conn.CloseNow()
		for {
			_, data, err := conn.Read(runCtx)
			if err != nil {
				if runCtx.Err() == nil {
					log.Printf("[rest] change feed closed: %v", err)
				}
				return
			}

			var evt store.ChangeEvent
			if err := json.Unmarshal(data, &evt); err != nil {
				log.Printf("[rest] skip malformed change event: %v", err)
				continue
			}
			if evt.New != nil {
				normalize(evt.New)
			}
			if evt.Old != nil {
				normalize(evt.Old)
			}

			select {
			case events <- evt:
			case <-runCtx.Done():
				return
			}
		}
	}()

	unsubscribe := func() {
		cancel()
		conn.CloseNow()
	}
	return events, unsubscribe, nil
}

func httpToWS(u string) string {
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	default:
		return u
	}
}
