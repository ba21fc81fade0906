package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"golang.org/x/exp/slog"

	"go-crash/internal/lib/logger/sl"
)

type Message struct {
	Channel string                 `json:"channel"`
	Event   string                 `json:"event"`
	Data    map[string]interface{} `json:"data"`
}

type PrivateMessage struct {
	UserUUID string
	Event    string
	Data     map[string]interface{}
}

type Subscription struct {
	Conn     *websocket.Conn
	Channel  string
	UserUUID string
}

// SnapshotProvider supplies the initial frames for a fresh subscriber, so a
// client joining mid-round sees the current state without replaying events.
type SnapshotProvider interface {
	Snapshot() []Message
}

type Hub struct {
	Channels    map[string]map[*websocket.Conn]bool
	Users       map[string]map[*websocket.Conn]bool
	Broadcast   chan Message
	Private     chan PrivateMessage
	Subscribe   chan Subscription
	Unsubscribe chan *websocket.Conn

	snapshot SnapshotProvider
	log      *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		Channels:    make(map[string]map[*websocket.Conn]bool),
		Users:       make(map[string]map[*websocket.Conn]bool),
		Broadcast:   make(chan Message, 64),
		Private:     make(chan PrivateMessage, 64),
		Subscribe:   make(chan Subscription),
		Unsubscribe: make(chan *websocket.Conn),
		log:         log,
	}
}

// SetSnapshotProvider must be called before RunServer.
func (hub *Hub) SetSnapshotProvider(p SnapshotProvider) {
	hub.snapshot = p
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// run owns every write to every connection; handlers only read. Registration
// and the snapshot happen in the same loop iteration, so a subscriber never
// misses an event published after its snapshot.
func (hub *Hub) run() {
	for {
		select {
		case sub := <-hub.Subscribe:
			if hub.Channels[sub.Channel] == nil {
				hub.Channels[sub.Channel] = make(map[*websocket.Conn]bool)
			}
			hub.Channels[sub.Channel][sub.Conn] = true

			if sub.UserUUID != "" {
				if hub.Users[sub.UserUUID] == nil {
					hub.Users[sub.UserUUID] = make(map[*websocket.Conn]bool)
				}
				hub.Users[sub.UserUUID][sub.Conn] = true
			}

			if hub.snapshot != nil {
				for _, frame := range hub.snapshot.Snapshot() {
					hub.write(sub.Conn, frame)
				}
			}
		case conn := <-hub.Unsubscribe:
			for _, receivers := range hub.Channels {
				delete(receivers, conn)
			}
			for uuid, conns := range hub.Users {
				delete(conns, conn)
				if len(conns) == 0 {
					delete(hub.Users, uuid)
				}
			}
		case message := <-hub.Broadcast:
			receivers, ok := hub.Channels[message.Channel]
			if !ok {
				continue
			}

			for conn := range receivers {
				hub.write(conn, message)
			}
		case private := <-hub.Private:
			conns, ok := hub.Users[private.UserUUID]
			if !ok {
				continue
			}

			message := Message{
				Channel: "private",
				Event:   private.Event,
				Data:    private.Data,
			}

			for conn := range conns {
				hub.write(conn, message)
			}
		}
	}
}

func (hub *Hub) write(conn *websocket.Conn, message Message) {
	data, err := json.Marshal(message)
	if err != nil {
		hub.log.Error("failed to marshal message", sl.Err(err))

		return
	}

	if err = conn.WriteMessage(websocket.TextMessage, data); err != nil {
		hub.log.Error("failed to write message", sl.Err(err))
	}
}

// HandleConnection upgrades the request and parks in a read loop. The client
// sends nothing the hub acts on; reads only detect the close.
func (hub *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Error("failed to upgrade connection", sl.Err(err))

		return
	}

	userUUID := r.URL.Query().Get("user_uuid")

	hub.Subscribe <- Subscription{
		Conn:     ws,
		Channel:  "crash",
		UserUUID: userUUID,
	}

	defer func() {
		hub.Unsubscribe <- ws

		if err = ws.Close(); err != nil {
			hub.log.Error("failed to close connection", sl.Err(err))
		}
	}()

	for {
		if _, _, err = ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (hub *Hub) RunServer() {
	go hub.run()
}
