// Package stream pushes gateway events to websocket subscribers.
package stream

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"parkchain-gateway/internal/events"
)

// Config configures websocket connection behavior.
type Config struct {
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SendBuffer is the per-connection event buffer; slow connections
	// drop events when it fills.
	SendBuffer int
}

// DefaultConfig returns default websocket configuration.
func DefaultConfig() Config {
	return Config{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		SendBuffer:   64,
	}
}

// Hub upgrades HTTP requests to websocket connections and relays bus
// events to each of them.
type Hub struct {
	bus      *events.Bus
	config   Config
	logger   *log.Logger
	upgrader websocket.Upgrader
}

// NewHub creates a hub over the given bus.
func NewHub(bus *events.Bus, config *Config, logger *log.Logger) *Hub {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[stream] ", log.LstdFlags)
	}
	return &Hub{
		bus:    bus,
		config: cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// SubscriberCount reports the number of live bus subscriptions.
func (h *Hub) SubscriberCount() int {
	return h.bus.SubscriberCount()
}

// ServeHTTP upgrades the request and streams bus events until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed: %v", err)
		return
	}

	ch, cancel := h.bus.Subscribe(h.config.SendBuffer)
	h.logger.Printf("subscriber connected from %s", r.RemoteAddr)

	done := make(chan struct{})

	// Reader drains control frames and detects disconnect.
	go func() {
		defer close(done)
		conn.SetReadLimit(4096)
		conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		cancel()
		conn.Close()
		h.logger.Printf("subscriber disconnected from %s", r.RemoteAddr)
	}()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
