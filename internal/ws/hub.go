package ws

import "sync"

// Hub routes settlement and borrower notifications to websocket subscribers.
// Topics are created on first subscribe and dropped with their last
// subscriber; publishing to a topic nobody watches is a no-op.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{topics: map[string]map[*Client]struct{}{}}
}

func (h *Hub) Subscribe(topic string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = map[*Client]struct{}{}
		h.topics[topic] = subs
	}
	subs[client] = struct{}{}
	client.addTopic(topic)
}

// UnsubscribeAll detaches the client from every topic it watches. Called on
// connection teardown.
func (h *Hub) UnsubscribeAll(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range client.listTopics() {
		subs, ok := h.topics[topic]
		if !ok {
			continue
		}
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish fans payload out to the topic's subscribers and reports how many
// received it.
func (h *Hub) Publish(topic string, payload []byte) int {
	h.mu.RLock()
	subs := h.topics[topic]
	clients := make([]*Client, 0, len(subs))
	for c := range subs {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.send(payload)
	}
	return len(clients)
}
