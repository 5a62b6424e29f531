package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"snapify/pkg/logger"
	"snapify/pkg/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second // must be shorter than pongWait
	maxMessageSize = 4 * 1024
	sendBuffer     = 256
)

// clientMessage is what browsers send: {"type":"join_event","eventId":"..."}.
type clientMessage struct {
	Type    string `json:"type"`
	EventID string `json:"eventId"`
}

// WSServer upgrades GET /ws and streams envelopes of the rooms a client joined.
// A client may join with ?eventId= or by sending join_event / leave_event frames.
type WSServer struct {
	hub      *Hub
	upgrader websocket.Upgrader
	log      *logger.Logger
	clients  atomic.Int64
}

func NewWSServer(hub *Hub, allowedOrigins []string) *WSServer {
	s := &WSServer{hub: hub, log: logger.Named("ws")}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients send no Origin.
			if origin == "" {
				return true
			}
			return utils.IsAllowedOrigin(origin, allowedOrigins)
		},
	}
	return s
}

// Clients returns the number of open connections.
func (s *WSServer) Clients() int64 { return s.clients.Load() }

func (s *WSServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		s.log.Warn("upgrade from %s failed: %v", utils.GetRealIP(r), err)
		return
	}

	c := &client{
		conn: conn,
		hub:  s.hub,
		log:  s.log,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		subs: make(map[string]*Subscription),
	}
	s.clients.Add(1)
	defer s.clients.Add(-1)

	if id := r.URL.Query().Get("eventId"); id != "" {
		c.join(id)
	}

	go c.writePump()
	c.readPump()
}

type client struct {
	conn *websocket.Conn
	hub  *Hub
	log  *logger.Logger
	send chan []byte
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	subs map[string]*Subscription
}

func (c *client) join(eventID string) {
	if !utils.IsValidKeyFormat(eventID) {
		c.reply("error", eventID)
		return
	}
	c.mu.Lock()
	if _, ok := c.subs[eventID]; ok {
		c.mu.Unlock()
		return
	}
	sub := c.hub.Subscribe(eventID)
	c.subs[eventID] = sub
	c.mu.Unlock()

	go c.forward(sub)
	c.reply("joined", eventID)
}

func (c *client) leave(eventID string) {
	c.mu.Lock()
	sub, ok := c.subs[eventID]
	delete(c.subs, eventID)
	c.mu.Unlock()
	if ok {
		sub.Close()
	}
}

// forward copies one room's envelopes into the connection's send buffer.
func (c *client) forward(sub *Subscription) {
	for env := range sub.C {
		b, err := json.Marshal(env)
		if err != nil {
			continue
		}
		select {
		case c.send <- b:
		case <-c.done:
			return
		default:
			c.log.Warn("send buffer full, dropped %s for %s", env.Type, env.EventID)
		}
	}
}

func (c *client) reply(kind, eventID string) {
	b, _ := json.Marshal(clientMessage{Type: kind, EventID: eventID})
	select {
	case c.send <- b:
	default:
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		for id, sub := range c.subs {
			sub.Close()
			delete(c.subs, id)
		}
		c.mu.Unlock()
		_ = c.conn.Close()
	})
}

func (c *client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("connection error: %v", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "join_event":
			c.join(msg.EventID)
		case "leave_event":
			c.leave(msg.EventID)
		case "ping":
			c.reply("pong", "")
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
