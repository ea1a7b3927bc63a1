package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Hub fans course events out to connected websocket clients (teachers
// watching their course feed).
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
}

type Client struct {
	hub      *Hub
	id       string
	socket   *websocket.Conn
	send     chan []byte
	courseID uint
	userID   uint
}

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// AttemptEvent is published after an attempt has been committed.
type AttemptEvent struct {
	AttemptID  uint      `json:"attempt_id"`
	TestID     uint      `json:"test_id"`
	StudentID  uint      `json:"student_id"`
	Score      float64   `json:"score"`
	MaxScore   int       `json:"max_score"`
	FinishedAt time.Time `json:"finished_at"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			log.Printf("[Hub] client %s registered for course %d (user %d) - total clients: %d", client.id, client.courseID, client.userID, total)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("[Hub] client %s unregistered from course %d (user %d)", client.id, client.courseID, client.userID)
			}
			h.mutex.Unlock()
		}
	}
}

// AttemptSubmitted implements AttemptNotifier.
func (h *Hub) AttemptSubmitted(courseID uint, event AttemptEvent) {
	h.BroadcastToCourse(courseID, "attempt_submitted", event)
}

func (h *Hub) BroadcastToCourse(courseID uint, messageType string, payload interface{}) {
	data, err := json.Marshal(Message{Type: messageType, Payload: payload})
	if err != nil {
		log.Printf("[Hub] error marshaling %s message: %v", messageType, err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	sent := 0
	for client := range h.clients {
		if client.courseID != courseID {
			continue
		}
		select {
		case client.send <- data:
			sent++
		default:
			log.Printf("[Hub] client %s send buffer full, closing connection", client.id)
			close(client.send)
			delete(h.clients, client)
		}
	}
	log.Printf("[Hub] %s sent to %d clients of course %d", messageType, sent, courseID)
}

func (h *Hub) ConnectedClients(courseID uint) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	n := 0
	for client := range h.clients {
		if client.courseID == courseID {
			n++
		}
	}
	return n
}

func (h *Hub) RegisterClient(conn *websocket.Conn, courseID, userID uint) *Client {
	client := &Client{
		hub:      h,
		id:       uuid.NewString(),
		socket:   conn,
		send:     make(chan []byte, 256),
		courseID: courseID,
		userID:   userID,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()

	return client
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.socket.Close()
	}()

	c.socket.SetReadLimit(4096)
	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Hub] websocket read error: %v", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("[Hub] error unmarshaling message from %s: %v", c.id, err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case "ping":
		data, _ := json.Marshal(Message{Type: "pong", Payload: "pong"})
		c.hub.mutex.RLock()
		defer c.hub.mutex.RUnlock()
		if !c.hub.clients[c] {
			return
		}
		select {
		case c.send <- data:
		default:
		}
	default:
		log.Printf("[Hub] unknown message type %q from client %s (course %d)", msg.Type, c.id, c.courseID)
	}
}
