package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 90 * time.Second
	wsPingInterval = 30 * time.Second
)

// rocksUpgrader is the shared upgrader for map WebSocket connections.
var rocksUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// CORS for WebSocket is handled at the HTTP layer already.
		return true
	},
}

// RocksWebSocket streams map frames: the current one on connect, then one
// after every reconciliation pass. Client messages are read only to notice
// disconnects.
func (h *Handler) RocksWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil || h.frames == nil {
		writeError(w, http.StatusServiceUnavailable, "Live updates are not available")
		return
	}

	conn, err := rocksUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	initial := h.frames.Current()
	if initial.Version == 0 {
		// Nothing flushed yet; draw the list as it stands
		h.sync.Redraw()
		initial = h.frames.Current()
	}

	id := h.hub.Register(conn, initial)
	defer h.hub.Unregister(id)

	conn.SetReadLimit(4 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	// WriteControl may run alongside the hub's writer
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	}
}
