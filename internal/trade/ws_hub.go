package trade

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cogmarket/market-engine/internal/alerts"
	"github.com/cogmarket/market-engine/internal/metrics"
	"github.com/cogmarket/market-engine/internal/money"
	"github.com/cogmarket/market-engine/internal/orderbook"
	"github.com/cogmarket/market-engine/internal/simulator"
)

// WebSocket message types.
const (
	MsgPriceUpdate   = "price_update"
	MsgTradeExecuted = "trade_executed"
	MsgOrderExecuted = "order_executed"
	MsgAlertFired    = "alert_fired"
	MsgHeat          = "heat"
	MsgBuildRated    = "build_rated"
)

const writeWait = 10 * time.Second

// WSMessage is a JSON message sent to WebSocket clients. UserID is set on
// messages addressed to one player, such as a fired alert; those reach
// only privileged clients.
type WSMessage struct {
	Type      string    `json:"type"`
	Symbol    string    `json:"symbol,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// outbound is an encoded message and whether it is private.
type outbound struct {
	data    []byte
	private bool
}

// client is one connection. Privileged clients (the chat bridge) also
// receive per-user messages.
type client struct {
	conn       *websocket.Conn
	privileged bool
}

// WSHub manages WebSocket connections and broadcasts messages to
// connected clients. It is the engine's production notifier.
type WSHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan outbound
	register   chan client
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub(logger *slog.Logger) *WSHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan client),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main event loop and returns when ctx is done,
// closing every client. Must be called in a goroutine.
func (h *WSHub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.conn] = c.privileged
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))
			h.logger.Info("ws client connected", "privileged", c.privileged, "total", n)

		case conn := <-h.unregister:
			h.drop(conn)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for conn, privileged := range h.clients {
				if msg.private && !privileged {
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
					conn.Close()
					delete(h.clients, conn)
				}
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))
		}
	}
}

func (h *WSHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketClients.Set(float64(n))
}

func (h *WSHub) closeAll() {
	h.mu.Lock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
	h.mu.Unlock()
	metrics.WebSocketClients.Set(0)
}

// Broadcast sends a message to connected clients. Messages carrying a
// UserID go to privileged clients only.
func (h *WSHub) Broadcast(msg WSMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("ws message not encodable", "type", msg.Type, "err", err)
		return
	}
	select {
	case h.broadcast <- outbound{data: data, private: msg.UserID != ""}:
	default:
		// Drop if buffer full to avoid blocking the caller.
		h.logger.Warn("ws broadcast buffer full, message dropped", "type", msg.Type)
	}
}

// PricesUpdated broadcasts one price_update per committed price change.
func (h *WSHub) PricesUpdated(updates []simulator.Update) {
	for _, u := range updates {
		h.Broadcast(WSMessage{
			Type:      MsgPriceUpdate,
			Symbol:    u.Symbol,
			Timestamp: u.Timestamp,
			Data: map[string]any{
				"old_price":      u.OldPrice,
				"new_price":      u.NewPrice,
				"change_percent": u.Change,
				"display":        money.Format(u.NewPrice),
				"cogs":           money.ToCogs(u.NewPrice),
			},
		})
	}
}

// OrdersExecuted tells each owner their limit order filled.
func (h *WSHub) OrdersExecuted(execs []orderbook.Execution) {
	for _, e := range execs {
		h.Broadcast(WSMessage{
			Type:   MsgOrderExecuted,
			Symbol: e.Order.Symbol,
			UserID: e.Order.UserID,
			Data:   e,
		})
	}
}

// AlertsFired tells each owner their alert triggered.
func (h *WSHub) AlertsFired(fired []alerts.Fired) {
	for _, f := range fired {
		h.Broadcast(WSMessage{
			Type:   MsgAlertFired,
			Symbol: f.Alert.Symbol,
			UserID: f.Alert.UserID,
			Data:   f,
		})
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // The chat bridge connects from its own host.
	},
}

// ServeWS upgrades r to a WebSocket client of the hub.
func (h *WSHub) ServeWS(w http.ResponseWriter, r *http.Request, privileged bool) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "err", err)
		return
	}

	select {
	case h.register <- client{conn: conn, privileged: privileged}:
	case <-h.done:
		conn.Close()
		return
	}

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	// Ping ticker to keep connection alive through proxies.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			h.mu.RLock()
			_, ok := h.clients[conn]
			h.mu.RUnlock()
			if !ok {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}()
}
