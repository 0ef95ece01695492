package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/FlourishHealth/terreno-sub002/auth"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/recovery"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

// Client is one connected websocket subscriber.
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	rooms  map[string]struct{}
}

func newClient(conn *websocket.Conn, userID string) *Client {
	return &Client{
		id:     uuid.New().String(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		rooms:  map[string]struct{}{},
	}
}

// Hub tracks which clients are in which rooms. Unlike the model registry,
// membership changes under traffic, so access is guarded.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Client
}

func NewHub() *Hub {
	return &Hub{rooms: map[string]map[string]*Client{}}
}

func (h *Hub) Join(c *Client, rooms ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, room := range rooms {
		if room == "" {
			continue
		}
		if h.rooms[room] == nil {
			h.rooms[room] = map[string]*Client{}
		}
		h.rooms[room][c.id] = c
		c.rooms[room] = struct{}{}
	}
}

func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range c.rooms {
		delete(h.rooms[room], c.id)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	c.rooms = map[string]struct{}{}
}

// Publish serializes the event once and queues it to every client in the
// given rooms. A client whose send buffer is full drops the event; delivery
// is best effort and clients reconcile via the document's updated timestamp.
func (h *Hub) Publish(event Event, rooms ...string) {
	payload, err := json.Marshal(event)
	if err != nil {
		grip.Error(message.WrapError(err, message.Fields{
			"message": "marshalling realtime event",
			"model":   event.Model,
			"method":  event.Method,
		}))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := map[string]struct{}{}
	for _, room := range rooms {
		for id, c := range h.rooms[room] {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			select {
			case c.send <- payload:
			default:
				grip.Warning(message.Fields{
					"message": "dropping realtime event for slow client",
					"client":  id,
					"room":    room,
					"model":   event.Model,
				})
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeWS upgrades the request and joins the authenticated user to their
// owner room and the broadcast room. Clients may join model-wide rooms by
// sending {"join": "model:<name>"} messages; requests for any other room,
// including other users' owner rooms, are refused. Anonymous connections are
// rejected; the auth handshake itself belongs to the external auth layer.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		grip.Warning(message.WrapError(err, message.Fields{
			"message": "upgrading websocket connection",
			"user":    user.Id,
		}))
		return
	}

	client := newClient(conn, user.Id)
	h.Join(client, OwnerRoom(user.Id), BroadcastRoom)

	go client.writePump()
	go h.readPump(client)
}

func (h *Hub) readPump(c *Client) {
	defer recovery.LogStackTraceAndContinue("realtime client reader")
	defer func() {
		h.Leave(c)
		close(c.send)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		msg := struct {
			Join string `json:"join"`
		}{}
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Join != "" {
			h.joinRequested(c, msg.Join)
		}
	}
}

// joinRequested applies a client-requested room join. A client may join
// model-wide rooms and its own owner room only; granting arbitrary room names
// would let one user subscribe to another user's owner room.
func (h *Hub) joinRequested(c *Client, room string) {
	if room != OwnerRoom(c.userID) && !strings.HasPrefix(room, "model:") {
		grip.Warning(message.Fields{
			"message": "refusing client room join",
			"client":  c.id,
			"user":    c.userID,
			"room":    room,
		})
		return
	}
	h.Join(c, room)
}

func (c *Client) writePump() {
	defer recovery.LogStackTraceAndContinue("realtime client writer")
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
