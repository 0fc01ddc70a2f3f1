package realtime

import "context"

type roomMessage struct {
	pollID string
	// to limits delivery to one client of the poll.
	to   *Client
	data []byte
}

// Hub owns the connected clients, grouped by poll, and fans messages out to
// the clients of one poll.
type Hub struct {
	// Registered clients per poll.
	rooms map[string]map[*Client]bool

	// Outbound messages for the clients of a poll.
	broadcast chan roomMessage

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	done chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan roomMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.rooms {
				for client := range clients {
					h.drop(client)
				}
			}
			return

		case client := <-h.register:
			clients, ok := h.rooms[client.pollID]
			if !ok {
				clients = make(map[*Client]bool)
				h.rooms[client.pollID] = clients
			}
			clients[client] = true

		case client := <-h.unregister:
			h.drop(client)

		case msg := <-h.broadcast:
			for client := range h.rooms[msg.pollID] {
				if msg.to != nil && msg.to != client {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	clients, ok := h.rooms[client.pollID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.rooms, client.pollID)
	}
	close(client.send)
	_ = client.conn.Close()
}

func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues data for every client of pollID. It gives up once the hub
// has stopped.
func (h *Hub) Publish(pollID string, data []byte) {
	h.enqueue(roomMessage{pollID: pollID, data: data})
}

// SendTo queues data for a single registered client.
func (h *Hub) SendTo(client *Client, data []byte) {
	h.enqueue(roomMessage{pollID: client.pollID, to: client, data: data})
}

func (h *Hub) enqueue(msg roomMessage) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}
