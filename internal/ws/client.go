package ws

import (
	"sync"

	"golang.org/x/net/websocket"
)

// Client is one websocket connection with its outbound queue and topic set.
// A consumer that cannot keep up with the queue is disconnected rather than
// allowed to stall the publisher.
type Client struct {
	conn *websocket.Conn
	out  chan []byte

	mu     sync.RWMutex
	topics map[string]struct{}
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		conn:   conn,
		out:    make(chan []byte, 64),
		topics: map[string]struct{}{},
	}
}

func (c *Client) send(payload []byte) {
	select {
	case c.out <- payload:
	default:
		// Queue full: the reader loop will notice the closed connection
		// and tear the client down.
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
}

func (c *Client) addTopic(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics[topic] = struct{}{}
}

func (c *Client) listTopics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.topics))
	for topic := range c.topics {
		out = append(out, topic)
	}
	return out
}
