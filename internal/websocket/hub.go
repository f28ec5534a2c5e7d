package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"casepulse/internal/dataprocessing"
	"casepulse/internal/infrastructure"
	"casepulse/pkg/contracts/events"
)

// broadcastBuffer bounds the messages queued for the hub loop.
const broadcastBuffer = 64

// ErrHubClosed is returned when a message is sent after Run has returned.
var ErrHubClosed = errors.New("websocket hub closed")

// Hub maintains the set of connected dashboards and fans messages out to them.
type Hub struct {
	clients map[*Client]struct{}

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics

	done     chan struct{}
	doneOnce sync.Once
}

// NewHub creates a hub. Nothing is delivered until Run is called.
func NewHub(logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
		done:       make(chan struct{}),
	}
}

// Run is the hub loop. It returns nil when ctx is cancelled, after closing
// every client's send channel.
func (h *Hub) Run(ctx context.Context) error {
	defer h.doneOnce.Do(func() { close(h.done) })

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return nil

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client, "disconnected")

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every connected client. A full queue drops the
// message; the next data_update supersedes it anyway.
func (h *Hub) Broadcast(msg events.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}

	select {
	case h.broadcast <- data:
		return nil
	default:
		h.logger.Warn("broadcast queue full, dropping message",
			slog.String("type", string(msg.Type)))
		return nil
	}
}

// BroadcastDataUpdate tells every client a new snapshot is being served. It
// has the dataset.Listener signature so it can subscribe to the store.
func (h *Hub) BroadcastDataUpdate(ctx context.Context, ds *dataprocessing.Dataset) {
	if ds == nil {
		return
	}
	msg := events.NewMessage(events.MessageTypeDataUpdate, events.DataUpdate{
		Summary: ds.Summary(),
		Reason:  "reload",
	})
	msg.TraceID = infrastructure.GetTraceID(ctx)

	if err := h.Broadcast(msg); err != nil {
		h.logger.DebugContext(ctx, "data update not broadcast",
			slog.String("error", err.Error()))
	}
}

// join hands a client to the hub loop. It reports false once the hub stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave hands a client back to the hub loop for removal.
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	ctx := c.context()
	h.logger.InfoContext(ctx, "client registered",
		slog.String("client_id", c.id),
		slog.String("remote_addr", c.remoteAddr),
		slog.Int("total_clients", count))
	h.recordClients(ctx, 1)

	data, err := json.Marshal(events.Message{
		Type: events.MessageTypeConnection,
		Data: events.ConnectionData{
			Status:   "connected",
			ClientID: c.id,
			Message:  "Connected to CasePulse live updates",
		},
		Timestamp: time.Now().UTC(),
		TraceID:   c.traceID,
	})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
		h.recordMessage(ctx, events.MessageTypeConnection)
	default:
		h.logger.WarnContext(ctx, "client buffer full, connection message dropped",
			slog.String("client_id", c.id))
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	ctx := c.context()
	h.logger.InfoContext(ctx, "client unregistered",
		slog.String("client_id", c.id),
		slog.String("reason", reason),
		slog.Duration("connection_duration", time.Since(c.connectedAt)),
		slog.Int("total_clients", count))
	h.recordClients(ctx, -1)
}

func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	msgType := messageType(message)
	var slow []*Client
	for _, c := range clients {
		select {
		case c.send <- message:
			h.recordMessage(context.Background(), msgType)
		default:
			slow = append(slow, c)
		}
	}

	for _, c := range slow {
		h.logger.Warn("client send buffer full, disconnecting",
			slog.String("client_id", c.id))
		h.removeClient(c, "slow consumer")
	}

	h.logger.Debug("broadcast delivered",
		slog.String("type", string(msgType)),
		slog.Int("delivered", len(clients)-len(slow)),
		slog.Int("dropped", len(slow)))
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	count := len(h.clients)
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	if count > 0 {
		h.recordClients(context.Background(), -int64(count))
	}
	h.logger.Info("hub stopped", slog.Int("closed_clients", count))
}

func (h *Hub) recordClients(ctx context.Context, delta int64) {
	if h.metrics == nil {
		return
	}
	h.metrics.WebSocketClients.Add(ctx, delta)
}

func (h *Hub) recordMessage(ctx context.Context, t events.MessageType) {
	if h.metrics == nil {
		return
	}
	h.metrics.WebSocketMessages.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", string(t))))
}

// messageType peeks at the envelope type for metrics labels.
func messageType(message []byte) events.MessageType {
	var env struct {
		Type events.MessageType `json:"type"`
	}
	if err := json.Unmarshal(message, &env); err != nil {
		return "unknown"
	}
	return env.Type
}
