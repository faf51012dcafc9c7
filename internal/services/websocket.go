package services

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Broadcast topics. Delivery is process-scoped: no persistence, no replay;
// observers that join after an event miss it.
const (
	TopicTripPositions   = "trip:positions"
	TopicDeviationAlerts = "alerts:deviation"
)

// Client represents a WebSocket observer and the topics it follows.
type Client struct {
	ID       uint
	UserType string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub
	topics   map[string]bool // guarded by Hub.mutex
}

// Hub is the connection registry: it tracks connected observers and their
// topic subscriptions, and fans published payloads out to subscribers.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Printf("Client %d connected", client.ID)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mutex.Unlock()
			log.Printf("Client %d disconnected", client.ID)
		}
	}
}

// Subscribe adds the client to a topic. Alert topics are restricted to
// admin observers.
func (h *Hub) Subscribe(client *Client, topic string) bool {
	if topic == TopicDeviationAlerts && client.UserType != "admin" {
		return false
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	client.topics[topic] = true
	return true
}

// Unsubscribe removes the client from a topic.
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(client.topics, topic)
}

// WebSocketMessage is the envelope for every payload sent to observers.
type WebSocketMessage struct {
	Type  string      `json:"type"`
	Topic string      `json:"topic,omitempty"`
	Data  interface{} `json:"data"`
}

// Publish fans a payload out to every client subscribed to the topic.
// Slow clients are skipped rather than blocking the publisher.
func (h *Hub) Publish(topic string, payload interface{}) {
	message := WebSocketMessage{
		Type:  "event",
		Topic: topic,
		Data:  payload,
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message for topic %s: %v", topic, err)
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		if !client.topics[topic] {
			continue
		}
		select {
		case client.Send <- data:
		default:
			log.Printf("Warning: Could not send to client %d (channel full)", client.ID)
		}
	}
}

// BroadcastToUser sends a message to a specific user
func (h *Hub) BroadcastToUser(userID uint, message []byte) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		if client.ID == userID {
			select {
			case client.Send <- message:
			default:
				log.Printf("Warning: Could not send to client %d (channel full)", client.ID)
			}
		}
	}
}

// SubscriberCount returns how many clients follow a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	n := 0
	for client := range h.clients {
		if client.topics[topic] {
			n++
		}
	}
	return n
}

// GetConnectedClients returns the number of connected clients
func (h *Hub) GetConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// PositionUpdate is broadcast on TopicTripPositions for every report.
type PositionUpdate struct {
	BusID     uint    `json:"busId"`
	TripID    uint    `json:"tripId,omitempty"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timestamp int64   `json:"timestamp"`
}

// DeviationAlert is broadcast on TopicDeviationAlerts once per deviation
// episode.
type DeviationAlert struct {
	TripID     uint    `json:"tripId"`
	BusID      uint    `json:"busId"`
	BusPlate   string  `json:"busPlate"`
	RouteName  string  `json:"routeName"`
	DriverName string  `json:"driverName"`
	CompanyID  uint    `json:"companyId"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Address    string  `json:"address"`
	Link       string  `json:"link"`
}

// BookingEvent is sent to the booking owner on lifecycle transitions.
type BookingEvent struct {
	BookingID    uint   `json:"bookingId"`
	TicketNumber string `json:"ticketNumber"`
	Kind         string `json:"kind"` // created, confirmed, cancelled, expired
	Message      string `json:"message"`
}

type subscribeRequest struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
}

// HandleWebSocket handles WebSocket connections
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request, userID uint, userType string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		ID:       userID,
		UserType: userType,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Hub:      hub,
		topics:   make(map[string]bool),
	}

	client.Hub.register <- client

	// Everyone follows positions by default; admins opt into alerts.
	hub.Subscribe(client, TopicTripPositions)

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

// readPump pumps subscription messages from the connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var req subscribeRequest
		if err := json.Unmarshal(message, &req); err != nil {
			log.Printf("Error unmarshaling WebSocket message: %v", err)
			continue
		}

		switch req.Type {
		case "subscribe":
			if !c.Hub.Subscribe(c, req.Topic) {
				log.Printf("Client %d (%s) denied subscription to %s", c.ID, c.UserType, req.Topic)
			}
		case "unsubscribe":
			c.Hub.Unsubscribe(c, req.Topic)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
