package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Message represents the standard message format exchanged over WebSocket.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Change is one row-level change notification. Field and Value are set
// for single-field updates; Seq is assigned by the hub on publish.
type Change struct {
	Table    string      `json:"table"`
	RecordID string      `json:"record_id"`
	Type     ChangeType  `json:"type"`
	Field    string      `json:"field,omitempty"`
	Value    interface{} `json:"value,omitempty"`
	Seq      uint64      `json:"seq"`
	At       time.Time   `json:"at"`
}

// Topic is the feed a change for table/recordID is delivered on.
func Topic(table, recordID string) string {
	return table + ":" + recordID
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	sendBuffer      = 256
	subscribeBuffer = 64
)

// Upgrader configures the WebSocket connection upgrade. Origin checks are
// left to the CORS configuration in front of the API.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Authorizer decides whether a websocket request may follow a record's feed.
type Authorizer interface {
	AuthorizeFeed(r *http.Request, table, recordID string) error
}

type subscription struct {
	ch chan Change
}

type Hub struct {
	rooms       map[string]map[*Client]bool
	clients     map[*Client]bool
	subscribers map[string]map[*subscription]struct{}
	register    chan *Client
	unregister  chan *Client
	done        chan struct{}
	mu          sync.RWMutex
	seq         atomic.Uint64
	authorizer  Authorizer
	logger      *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:       make(map[string]map[*Client]bool),
		clients:     make(map[*Client]bool),
		subscribers: make(map[string]map[*subscription]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

func (h *Hub) SetAuthorizer(a Authorizer) {
	h.authorizer = a
}

type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	topic string
	done  chan struct{}
}

// Run listens on the register and unregister channels until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.dropLocked(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if _, ok := h.rooms[client.topic]; !ok {
				h.rooms[client.topic] = make(map[*Client]bool)
			}
			h.rooms[client.topic][client] = true
			count := len(h.rooms[client.topic])
			h.mu.Unlock()
			h.logger.Debug("feed client registered", slog.String("topic", client.topic), slog.Int("clients", count))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.dropLocked(client)
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) dropLocked(client *Client) {
	if room, ok := h.rooms[client.topic]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, client.topic)
		}
	}
	delete(h.clients, client)
	// send is never closed; publishers may still hold the client.
	close(client.done)
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish stamps the change with the next sequence number and delivers it
// to in-process subscribers and websocket clients of topic. Delivery is best
// effort: a subscriber whose buffer is full misses the change.
func (h *Hub) Publish(topic string, change Change) Change {
	change.Seq = h.seq.Add(1)
	if change.At.IsZero() {
		change.At = time.Now().UTC()
	}

	// Subscribers are fed under the read lock so cancel cannot close a
	// channel mid-send.
	h.mu.RLock()
	for s := range h.subscribers[topic] {
		select {
		case s.ch <- change:
		default:
			h.logger.Warn("subscriber buffer full; change dropped",
				slog.String("topic", topic), slog.Uint64("seq", change.Seq))
		}
	}
	clients := make([]*Client, 0, len(h.rooms[topic]))
	for c := range h.rooms[topic] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return change
	}

	messageBytes, err := json.Marshal(Message{Type: "change", Data: change})
	if err != nil {
		h.logger.Error("marshal change", slog.Any("error", err))
		return change
	}

	for _, c := range clients {
		h.queue(c, messageBytes)
	}

	return change
}

// queue hands a message to the client's write pump. The client may have
// been dropped since the room was copied; done tells us so.
func (h *Hub) queue(c *Client, message []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- message:
	case <-c.done:
	default:
		h.logger.Warn("send channel full; unregistering client", slog.String("topic", c.topic))
		go h.unregisterClient(c)
	}
}

// Subscribe registers an in-process listener on topic. The returned cancel
// func must be called to release it; the channel is closed on cancel.
func (h *Hub) Subscribe(topic string) (<-chan Change, func()) {
	sub := &subscription{ch: make(chan Change, subscribeBuffer)}

	h.mu.Lock()
	if _, ok := h.subscribers[topic]; !ok {
		h.subscribers[topic] = make(map[*subscription]struct{})
	}
	h.subscribers[topic][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers[topic], sub)
			if len(h.subscribers[topic]) == 0 {
				delete(h.subscribers, topic)
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}

	return sub.ch, cancel
}

// ClientCount reports websocket clients following topic.
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[topic])
}

var errNoAuthorizer = errors.New("websocket: no feed authorizer configured")

// HandleWebSocket upgrades the HTTP connection and follows /ws/{table}/{id}.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	table, recordID := vars["table"], vars["id"]
	if table == "" || recordID == "" {
		http.Error(w, "Missing table or record id", http.StatusBadRequest)
		return
	}

	if h.authorizer == nil {
		h.logger.Error("feed rejected", slog.Any("error", errNoAuthorizer))
		http.Error(w, "Feed unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := h.authorizer.AuthorizeFeed(r, table, recordID); err != nil {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error", slog.Any("error", err))
		return
	}

	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		topic: Topic(table, recordID),
		done:  make(chan struct{}),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump drains the connection so control frames are processed.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("unexpected close", slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Warn("write to feed client", slog.Any("error", err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// FeedConn is a hand-managed connection for feeds that write their own
// messages instead of going through a hub room.
type FeedConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewFeedConn(conn *websocket.Conn) *FeedConn {
	return &FeedConn{conn: conn}
}

func (f *FeedConn) Send(messageType string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return f.conn.WriteJSON(Message{Type: messageType, Data: data})
}

// Serve pings the peer and drains incoming frames. The returned channel is
// closed once the peer goes away.
func (f *FeedConn) Serve() <-chan struct{} {
	closed := make(chan struct{})

	go func() {
		defer close(closed)
		f.conn.SetReadLimit(maxMessageSize)
		f.conn.SetReadDeadline(time.Now().Add(pongWait))
		f.conn.SetPongHandler(func(string) error {
			f.conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := f.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				f.mu.Lock()
				f.conn.SetWriteDeadline(time.Now().Add(writeWait))
				err := f.conn.WriteMessage(websocket.PingMessage, nil)
				f.mu.Unlock()
				if err != nil {
					return
				}
			case <-closed:
				return
			}
		}
	}()

	return closed
}

func (f *FeedConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conn.SetWriteDeadline(time.Now().Add(writeWait))
	f.conn.WriteMessage(websocket.CloseMessage, []byte{})
	return f.conn.Close()
}

// Publisher is the side of the hub that services depend on.
type Publisher interface {
	Publish(topic string, change Change) Change
}
