package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/fortai-labs/firmata/internal/common"
	"github.com/fortai-labs/firmata/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the envelope sent to connected clients.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocketHandler streams job lifecycle events to connected clients.
type WebSocketHandler struct {
	logger        arbor.ILogger
	clients       map[*websocket.Conn]bool
	clientMutex   map[*websocket.Conn]*sync.Mutex
	mu            sync.RWMutex
	events        interfaces.EventService
	pageThrottle  *rate.Limiter   // Rate limiter for page.scraped events, nil = no throttle
	allowedEvents map[string]bool // Whitelist of events to broadcast (empty = allow all)
}

// NewWebSocketHandler creates the handler and subscribes it to the event bus.
func NewWebSocketHandler(events interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:      logger,
		clients:     make(map[*websocket.Conn]bool),
		clientMutex: make(map[*websocket.Conn]*sync.Mutex),
		events:      events,
	}

	// Empty whitelist means broadcast everything.
	h.allowedEvents = make(map[string]bool)
	if config != nil && len(config.AllowedEvents) > 0 {
		for _, eventType := range config.AllowedEvents {
			h.allowedEvents[eventType] = true
		}
		logger.Debug().
			Int("allowed_events", len(h.allowedEvents)).
			Msg("Initialized event whitelist for WebSocketHandler")
	}

	// A busy crawl publishes a page event per fetch, so page.scraped is the
	// only type worth throttling.
	if config != nil && config.PageEventThrottle != "" {
		if duration, err := time.ParseDuration(config.PageEventThrottle); err == nil {
			h.pageThrottle = rate.NewLimiter(rate.Every(duration), 1)
			logger.Debug().
				Str("interval", config.PageEventThrottle).
				Msg("Throttler initialized for page.scraped events")
		} else {
			logger.Warn().
				Err(err).
				Str("interval", config.PageEventThrottle).
				Msg("Failed to parse page event throttle interval - throttler disabled")
		}
	}

	if events != nil {
		h.subscribeToJobEvents()
	}

	return h
}

// HandleWebSocket upgrades the connection and keeps it registered until the
// client goes away.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", remaining)
	}()

	// Read messages from client (keep connection alive)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WebSocketHandler) subscribeToJobEvents() {
	eventTypes := []interfaces.EventType{
		interfaces.EventJobCreated,
		interfaces.EventJobStarted,
		interfaces.EventJobCompleted,
		interfaces.EventJobFailed,
		interfaces.EventJobCancelled,
		interfaces.EventPageScraped,
	}

	for _, eventType := range eventTypes {
		h.events.Subscribe(eventType, h.handleEvent)
	}
}

// handleEvent relays one bus event to the connected clients. It never
// returns an error; a broken client must not fail the publisher.
func (h *WebSocketHandler) handleEvent(ctx context.Context, event interfaces.Event) error {
	if len(h.allowedEvents) > 0 && !h.allowedEvents[string(event.Type)] {
		return nil
	}

	if event.Type == interfaces.EventPageScraped && h.pageThrottle != nil && !h.pageThrottle.Allow() {
		return nil
	}

	h.broadcast(WSMessage{
		Type:    string(event.Type),
		Payload: event.Payload,
	})
	return nil
}

// broadcast sends a message to every connected client. Writes are serialized
// per connection; gorilla/websocket allows only one concurrent writer.
func (h *WebSocketHandler) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutex := mutexes[i]
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to send message to client")
		}
	}
}
