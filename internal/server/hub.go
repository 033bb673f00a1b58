package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/tasklabs/taskmate/internal/store"
)

const writeTimeout = 5 * time.Second

type wsClient struct {
	conn *websocket.Conn
}

// hub fans change events out to every connected websocket subscriber.
type hub struct {
	clients sync.Map
	nextID  atomic.Int64
}

func (h *hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("[server] websocket accept error: %v", err)
		return
	}

	clientID := h.nextID.Add(1)
	client := &wsClient{conn: conn}
	h.clients.Store(clientID, client)
	log.Printf("[server] feed subscriber connected: %d", clientID)

	defer func() {
		h.clients.Delete(clientID)
		conn.CloseNow()
		log.Printf("[server] feed subscriber disconnected: %d", clientID)
	}()

	// Subscribers never send application data; the read loop only exists
	// to notice the connection closing.
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			return
		}
	}
}

func (h *hub) broadcast(evt store.ChangeEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		log.Printf("[server] marshal change event: %v", err)
		return
	}
	h.clients.Range(func(key, value any) bool {
		c := value.(*wsClient)
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		_ = c.conn.Write(ctx, websocket.MessageText, data)
		return true
	})
}

func (h *hub) closeAll() {
	h.clients.Range(func(key, value any) bool {
		c := value.(*wsClient)
		c.conn.CloseNow()
		return true
	})
}
