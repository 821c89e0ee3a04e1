package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Hub is the push registry: live WebSocket connections pooled per
// tournament. Delivery is at-most-once per connection; nothing is queued for
// disconnected sockets.
type Hub struct {
	connections map[uuid.UUID]map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   HubConfig

	broadcastCh chan broadcastMessage
}

// Connection is one spectator or admin socket subscribed to a tournament.
type Connection struct {
	ID           string
	DeviceID     string
	TournamentID uuid.UUID
	Conn         *websocket.Conn
	Send         chan []byte
	hub          *Hub

	ConnectedAt time.Time
	LastPing    time.Time
}

// HubConfig holds WebSocket connection tuning.
type HubConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

type broadcastMessage struct {
	tournamentID uuid.UUID
	event        *ClockEvent
}

// DefaultHubConfig returns default WebSocket configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Spectator displays connect from anywhere; restrict in production.
			return true
		},
	}
}

func NewHub(config HubConfig) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

var _ Sink = (*Hub)(nil)

func (h *Hub) Name() string { return "websocket" }

// Deliver queues the event for fan-out to the tournament's sockets. A full
// broadcast buffer drops the event rather than blocking the controller.
func (h *Hub) Deliver(tournamentID uuid.UUID, event *ClockEvent) error {
	select {
	case h.broadcastCh <- broadcastMessage{tournamentID: tournamentID, event: event}:
		return nil
	default:
		return fmt.Errorf("broadcast channel full, dropping %s", event.Type)
	}
}

// Start processes queued broadcasts until ctx is cancelled.
func (h *Hub) Start(ctx context.Context) {
	log.Info().Msg("websocket hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("websocket hub shutting down")
			return
		case message := <-h.broadcastCh:
			h.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket subscription for
// one tournament.
func (h *Hub) UpgradeConnection(w http.ResponseWriter, r *http.Request, deviceID string, tournamentID uuid.UUID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:           uuid.New().String(),
		DeviceID:     deviceID,
		TournamentID: tournamentID,
		Conn:         conn,
		Send:         make(chan []byte, 256),
		hub:          h,
		ConnectedAt:  time.Now(),
		LastPing:     time.Now(),
	}

	h.register(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("device_id", deviceID).
		Str("tournament_id", tournamentID.String()).
		Msg("websocket connection established")
	return nil
}

func (h *Hub) register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[conn.TournamentID] == nil {
		h.connections[conn.TournamentID] = make(map[*Connection]bool)
	}
	h.connections[conn.TournamentID][conn] = true
}

func (h *Hub) unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pool, exists := h.connections[conn.TournamentID]
	if !exists {
		return
	}
	if _, exists := pool[conn]; !exists {
		return
	}
	delete(pool, conn)
	close(conn.Send)
	if len(pool) == 0 {
		delete(h.connections, conn.TournamentID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("tournament_id", conn.TournamentID.String()).
		Msg("websocket connection closed")
}

func (h *Hub) handleBroadcast(message broadcastMessage) {
	data, err := json.Marshal(message.event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal clock event for broadcast")
		return
	}

	// Sends happen under the read lock: unregister closes Send under the
	// write lock, so a channel can never be closed mid-send. The sends are
	// non-blocking, so holding the lock here never stalls a pump's exit.
	h.mu.RLock()
	pool := h.connections[message.tournamentID]
	sent := 0
	var slow []*Connection
	for conn := range pool {
		select {
		case conn.Send <- data:
			sent++
		default:
			slow = append(slow, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range slow {
		// Slow or dead consumer; drop it rather than stall the fan-out.
		log.Warn().
			Str("connection_id", conn.ID).
			Str("device_id", conn.DeviceID).
			Msg("send buffer full, closing connection")
		h.unregister(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("event_type", string(message.event.Type)).
		Str("tournament_id", message.tournamentID.String()).
		Int("connections", sent).
		Msg("clock event broadcast")
}

// Stats returns counts of active connections per tournament.
func (h *Hub) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	perTournament := make(map[string]int)
	for id, pool := range h.connections {
		total += len(pool)
		perTournament[id.String()] = len(pool)
	}
	return map[string]interface{}{
		"total_connections":      total,
		"active_tournaments":     len(h.connections),
		"tournament_connections": perTournament,
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.hub.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.hub.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close")
			}
			break
		}
		// Clients only listen on this channel; inbound frames are logged and
		// otherwise ignored.
		log.Debug().
			Str("connection_id", c.ID).
			Str("device_id", c.DeviceID).
			RawJSON("message", message).
			Msg("client message received")
		c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	}
}
