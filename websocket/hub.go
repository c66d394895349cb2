package websocket

import (
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/mutisya87/trainer_marketplace/escrow"
)

type Client struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
}

var clients = make(map[uuid.UUID]*websocket.Conn)
var clientsMu sync.RWMutex
var Register = make(chan *Client)
var Unregister = make(chan *Client)
var Broadcast = make(chan escrow.Event, 64)

// EventSink feeds ledger transition events into the hub. Buffered so a
// slow dashboard never blocks a settlement transition.
func EventSink(ev escrow.Event) {
	select {
	case Broadcast <- ev:
	default:
		log.Println("Settlement event feed full, dropping event")
	}
}

// RunHub pushes every settlement event to the payer and trainer it
// concerns, when they have a dashboard connected.
func RunHub() {
	for {
		select {
		case client := <-Register:
			clientsMu.Lock()
			clients[client.UserID] = client.Conn
			clientsMu.Unlock()
		case client := <-Unregister:
			clientsMu.Lock()
			if conn, ok := clients[client.UserID]; ok && conn == client.Conn {
				delete(clients, client.UserID)
			}
			clientsMu.Unlock()
		case ev := <-Broadcast:
			deliver(ev, ev.Record.PayerID)
			deliver(ev, ev.Record.TrainerID)
		}
	}
}

func deliver(ev escrow.Event, userID uuid.UUID) {
	clientsMu.RLock()
	conn, ok := clients[userID]
	clientsMu.RUnlock()
	if !ok {
		return
	}

	if err := conn.WriteJSON(ev); err != nil {
		log.Printf("Error sending settlement event to client %s: %v", userID, err)
		conn.Close()
		clientsMu.Lock()
		if cur, ok := clients[userID]; ok && cur == conn {
			delete(clients, userID)
		}
		clientsMu.Unlock()
	}
}
