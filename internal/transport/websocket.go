// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Frame is the JSON message broadcast to WebSocket clients.
type Frame struct {
	Seq  uint64    `json:"seq"`
	Bars []float64 `json:"bars"`
}

// WebSocketSink serves /ws and broadcasts every frame to connected clients
// as JSON. Slow clients miss frames rather than stall the render loop.
type WebSocketSink struct {
	listener  net.Listener
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan Frame
	server    *http.Server
	seq       uint64
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocketSink listens on addr (for example ":8080" or "127.0.0.1:0")
// and starts serving.
func NewWebSocketSink(addr string) (*WebSocketSink, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	wss := &WebSocketSink{
		listener: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local visualisers are served from anywhere.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Frame, 64),
		done:      make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wss.handleWebSocket)
	wss.server = &http.Server{Handler: mux}

	go func() {
		sinkLog.Infof("websocket: serving on ws://%s/ws", ln.Addr())
		if err := wss.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sinkLog.Errorf("websocket: server error: %v", err)
		}
	}()
	go wss.handleBroadcasts()

	return wss, nil
}

// Addr returns the address the sink is listening on.
func (wss *WebSocketSink) Addr() string { return wss.listener.Addr().String() }

// ClientCount returns the number of connected clients.
func (wss *WebSocketSink) ClientCount() int {
	wss.clientsMu.Lock()
	defer wss.clientsMu.Unlock()
	return len(wss.clients)
}

// handleWebSocket upgrades HTTP connections to WebSocket.
func (wss *WebSocketSink) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wss.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sinkLog.Warnf("websocket: upgrade error: %v", err)
		return
	}

	wss.clientsMu.Lock()
	wss.clients[conn] = true
	total := len(wss.clients)
	wss.clientsMu.Unlock()
	sinkLog.Infof("websocket: client connected, total: %d", total)

	// Clients never send anything; a read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wss.dropClient(conn)
				return
			}
		}
	}()
}

func (wss *WebSocketSink) dropClient(conn *websocket.Conn) {
	wss.clientsMu.Lock()
	_, ok := wss.clients[conn]
	delete(wss.clients, conn)
	total := len(wss.clients)
	wss.clientsMu.Unlock()

	conn.Close()
	if ok {
		sinkLog.Infof("websocket: client disconnected, total: %d", total)
	}
}

// handleBroadcasts sends frames to all connected clients.
func (wss *WebSocketSink) handleBroadcasts() {
	for {
		select {
		case <-wss.done:
			return
		case frame := <-wss.broadcast:
			wss.clientsMu.Lock()
			clients := make([]*websocket.Conn, 0, len(wss.clients))
			for client := range wss.clients {
				clients = append(clients, client)
			}
			wss.clientsMu.Unlock()

			for _, client := range clients {
				if err := client.WriteJSON(frame); err != nil {
					sinkLog.Debugf("websocket: error sending to client: %v", err)
					wss.dropClient(client)
				}
			}
		}
	}
}

// Render queues bars for broadcast. Frames are dropped when the queue is
// full or nobody is connected.
func (wss *WebSocketSink) Render(bars []float64) error {
	wss.seq++
	if wss.ClientCount() == 0 {
		return nil
	}

	frame := Frame{Seq: wss.seq, Bars: make([]float64, len(bars))}
	copy(frame.Bars, bars)

	select {
	case wss.broadcast <- frame:
	default:
		// Channel full, drop frame.
	}
	return nil
}

// Close disconnects all clients and shuts down the server.
func (wss *WebSocketSink) Close() error {
	var err error
	wss.closeOnce.Do(func() {
		sinkLog.Infof("websocket: closing server")
		close(wss.done)

		wss.clientsMu.Lock()
		for client := range wss.clients {
			client.Close()
		}
		wss.clients = make(map[*websocket.Conn]bool)
		wss.clientsMu.Unlock()

		err = wss.server.Close()
	})
	return err
}

// Ensure WebSocketSink satisfies the interface at compile time.
var _ Sink = (*WebSocketSink)(nil)
