// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"audiosync/internal/analysis"
	applog "audiosync/internal/log"
)

// FramesPath is the HTTP path that upgrades to the frame stream.
const FramesPath = "/frames"

const writeTimeout = 250 * time.Millisecond

// WebSocketSink mirrors frames as JSON to every connected WebSocket client.
// Frames are queued without blocking; when the queue is full they are dropped.
type WebSocketSink struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan analysis.SpectralFrame
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	server    *http.Server
	listener  net.Listener
	dropped   atomic.Uint64
}

// NewWebSocketSink binds addr and starts serving FramesPath. Bind failures are
// returned so they surface at startup.
func NewWebSocketSink(addr string) (*WebSocketSink, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for websocket clients on %s: %w", addr, err)
	}

	wss := &WebSocketSink{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Frames are public on the local network.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan analysis.SpectralFrame, 64),
		done:      make(chan struct{}),
		listener:  ln,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(FramesPath, wss.handleWebSocket)
	wss.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wss.wg.Add(2)
	go func() {
		defer wss.wg.Done()
		applog.Infof("WebSocketSink: Serving frames on ws://%s%s", ln.Addr(), FramesPath)
		if err := wss.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("WebSocketSink: Server error: %v", err)
		}
	}()
	go wss.handleBroadcasts()

	return wss, nil
}

// Addr returns the listening address.
func (wss *WebSocketSink) Addr() net.Addr { return wss.listener.Addr() }

// handleWebSocket upgrades HTTP connections to WebSocket
func (wss *WebSocketSink) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wss.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketSink: Upgrade error: %v", err)
		return
	}

	wss.clientsMu.Lock()
	wss.clients[conn] = true
	total := len(wss.clients)
	wss.clientsMu.Unlock()
	applog.Debugf("WebSocketSink: Client connected, total: %d", total)

	// Clients never send; a read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wss.removeClient(conn)
				return
			}
		}
	}()
}

func (wss *WebSocketSink) removeClient(conn *websocket.Conn) {
	wss.clientsMu.Lock()
	_, ok := wss.clients[conn]
	delete(wss.clients, conn)
	total := len(wss.clients)
	wss.clientsMu.Unlock()
	if ok {
		conn.Close()
		applog.Debugf("WebSocketSink: Client disconnected, total: %d", total)
	}
}

// handleBroadcasts sends queued frames to all connected clients. Writes run
// outside clientsMu so a slow client never holds up Send or new connections.
func (wss *WebSocketSink) handleBroadcasts() {
	defer wss.wg.Done()
	var targets []*websocket.Conn
	for {
		select {
		case frame := <-wss.broadcast:
			wss.clientsMu.Lock()
			targets = targets[:0]
			for client := range wss.clients {
				targets = append(targets, client)
			}
			wss.clientsMu.Unlock()

			for _, client := range targets {
				client.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.WriteJSON(frame); err != nil {
					applog.Debugf("WebSocketSink: Error sending to client: %v", err)
					wss.removeClient(client)
				}
			}
		case <-wss.done:
			return
		}
	}
}

// Send queues a copy of frame for all clients. A full queue drops the frame.
func (wss *WebSocketSink) Send(_ []byte, frame *analysis.SpectralFrame) error {
	select {
	case wss.broadcast <- *frame:
	default:
		wss.dropped.Add(1)
	}
	return nil
}

// Clients returns the number of connected clients.
func (wss *WebSocketSink) Clients() int {
	wss.clientsMu.Lock()
	defer wss.clientsMu.Unlock()
	return len(wss.clients)
}

// Dropped returns the number of frames discarded because the queue was full.
func (wss *WebSocketSink) Dropped() uint64 { return wss.dropped.Load() }

// Close shuts down the server and disconnects every client.
func (wss *WebSocketSink) Close() error {
	var err error
	wss.closeOnce.Do(func() {
		applog.Debugf("WebSocketSink: Closing server")
		close(wss.done)
		err = wss.server.Close()

		wss.clientsMu.Lock()
		for client := range wss.clients {
			client.Close()
		}
		wss.clients = make(map[*websocket.Conn]bool)
		wss.clientsMu.Unlock()

		wss.wg.Wait()
	})
	return err
}

// Ensure WebSocketSink satisfies the interface
var _ Sink = (*WebSocketSink)(nil)
