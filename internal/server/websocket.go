package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The assistant is a local tool; allow any origin
		return true
	},
}

// wsMessage is an inbound frame from a chat client
type wsMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// wsReply is an outbound frame to a chat client
type wsReply struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Session string `json:"session,omitempty"`
	Reply   string `json:"reply,omitempty"`
}

// WebSocketManager relays chat messages between connected clients and the
// conversation. All clients share one conversation, mirroring the terminal
// session.
type WebSocketManager struct {
	chat        ChatService
	connections []*websocket.Conn
	mutex       sync.Mutex
}

// NewWebSocketManager creates a new WebSocket manager over the chat service
func NewWebSocketManager(chat ChatService) *WebSocketManager {
	return &WebSocketManager{
		chat:        chat,
		connections: make([]*websocket.Conn, 0),
	}
}

// AddConnection adds a WebSocket connection
func (wsm *WebSocketManager) AddConnection(conn *websocket.Conn) {
	wsm.mutex.Lock()
	defer wsm.mutex.Unlock()
	wsm.connections = append(wsm.connections, conn)
	log.Printf("Chat client connected. Total clients: %d", len(wsm.connections))
}

// RemoveConnection removes a WebSocket connection
func (wsm *WebSocketManager) RemoveConnection(conn *websocket.Conn) {
	wsm.mutex.Lock()
	defer wsm.mutex.Unlock()

	for i, c := range wsm.connections {
		if c == conn {
			wsm.connections = append(wsm.connections[:i], wsm.connections[i+1:]...)
			log.Printf("Chat client disconnected. Total clients: %d", len(wsm.connections))
			break
		}
	}
}

// HandleConnection upgrades the request and runs the chat loop for one client
func (wsm *WebSocketManager) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %s", err.Error())
		return
	}
	defer conn.Close()

	wsm.AddConnection(conn)
	defer wsm.RemoveConnection(conn)

	session := uuid.New().String()
	wsm.send(conn, wsReply{Type: "welcome", Session: session})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %s", err.Error())
			}
			return
		}

		var data wsMessage
		if err := json.Unmarshal(message, &data); err != nil {
			log.Printf("Failed to parse message: %s", err.Error())
			continue
		}

		switch data.Type {
		case "ping":
			wsm.send(conn, wsReply{Type: "pong"})
		case "chat":
			if data.Message == "" {
				continue
			}
			reply := wsm.chat.ProcessMessage(r.Context(), data.Message)
			wsm.send(conn, wsReply{
				Type:    "chat",
				ID:      uuid.New().String(),
				Session: session,
				Reply:   reply,
			})
		}
	}
}

func (wsm *WebSocketManager) send(conn *websocket.Conn, reply wsReply) {
	payload, err := json.Marshal(reply)
	if err != nil {
		log.Printf("Failed to marshal reply: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Printf("Failed to send message to chat client: %v", err)
	}
}
