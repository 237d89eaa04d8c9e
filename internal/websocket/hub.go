package websocket

import "github.com/rs/zerolog/log"

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound messages for every client.
	broadcast chan []byte

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	done chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			return
		case client := <-h.Register:
			h.clients[client] = true
			log.Info().Int("total_clients", len(h.clients)).Msg("Client connected")
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// Slow client; drop it rather than stall the hub.
					close(client.Send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Subscribe registers client with a running hub. It reports false once the hub has stopped.
func (h *Hub) Subscribe(client *Client) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Publish queues message for every connected client. It never blocks;
// when the queue is full the message is dropped.
func (h *Hub) Publish(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		log.Warn().Msg("Broadcast queue full, dropping message")
	}
}

// Stop halts Run and closes every client's send channel.
func (h *Hub) Stop() {
	close(h.done)
}
