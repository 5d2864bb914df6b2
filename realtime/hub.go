package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/nativatech/agendo-notifier/models"
	"github.com/nativatech/agendo-notifier/utils"
)

// Event types pushed over the feed socket.
const (
	EventNotificationCreated = "notification_created"
	EventUnreadCount         = "unread_count"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub tracks connected feed clients keyed by user, so a new feed row
// can be pushed to exactly the sockets of its recipient.
type Hub struct {
	clients map[*websocket.Conn]uint // conn -> user id
	mutex   sync.Mutex
}

var feedHub = Hub{
	clients: make(map[*websocket.Conn]uint),
}

// RegisterClient adds a connection for a user. One user may hold
// several connections (browser tabs, devices).
func RegisterClient(conn *websocket.Conn, userID uint) {
	feedHub.mutex.Lock()
	defer feedHub.mutex.Unlock()
	feedHub.clients[conn] = userID
}

// UnregisterClient drops and closes a connection.
func UnregisterClient(conn *websocket.Conn) {
	feedHub.mutex.Lock()
	defer feedHub.mutex.Unlock()
	delete(feedHub.clients, conn)
	conn.Close()
}

// BroadcastNotification pushes a freshly written feed row to every
// connection of its recipient. Failures only drop the message; the
// row is already persisted and will show up on the next feed load.
func BroadcastNotification(notif models.Notification) {
	send(notif.UserID, Message{
		Event: EventNotificationCreated,
		Data:  notif,
	})
}

// BroadcastUnreadCount pushes the recipient's new unread total.
func BroadcastUnreadCount(userID uint, count int64) {
	send(userID, Message{
		Event: EventUnreadCount,
		Data:  map[string]interface{}{"count": count},
	})
}

func send(userID uint, msg Message) {
	feedHub.mutex.Lock()
	defer feedHub.mutex.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Printf("realtime: marshal %s: %v", msg.Event, err)
		return
	}

	for conn, uid := range feedHub.clients {
		if uid != userID {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.Printf("realtime: write to user %d: %v", userID, err)
		}
	}
}
