package eventbus

import (
	"encoding/json"

	nc "github.com/nats-io/nats.go"

	"github.com/CLIAIRMONITOR/memoryd/internal/apperr"
)

// Event is a received pub/sub message.
type Event struct {
	Subject string
	Data    []byte
}

// Client is a fire-and-forget publisher/subscriber over the embedded
// event bus. Trimmed from the teacher's agent-orchestration client: no
// Request/RequestJSON (no request-reply pattern here) and no
// QueueSubscribe (no load-balanced consumer group — every observer sees
// every write notification).
type Client struct {
	conn *nc.Conn
}

// Connect dials the embedded event bus at url.
func Connect(url string) (*Client, error) {
	conn, err := nc.Connect(url, nc.Name("memoryd"))
	if err != nil {
		return nil, apperr.WrapConfig(err, "connect to event bus: %s", url)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// IsConnected reports whether the connection is currently live.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Publish sends raw bytes to subject.
func (c *Client) Publish(subject string, data []byte) error {
	if err := c.conn.Publish(subject, data); err != nil {
		return apperr.WrapConfig(err, "publish to %s", subject)
	}
	return nil
}

// PublishJSON marshals v and publishes it to subject.
func (c *Client) PublishJSON(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperr.WrapJSON(err, "marshal event for %s", subject)
	}
	return c.Publish(subject, data)
}

// Subscribe registers an asynchronous handler for subject.
func (c *Client) Subscribe(subject string, handler func(Event)) (*nc.Subscription, error) {
	sub, err := c.conn.Subscribe(subject, func(msg *nc.Msg) {
		handler(Event{Subject: msg.Subject, Data: msg.Data})
	})
	if err != nil {
		return nil, apperr.WrapConfig(err, "subscribe to %s", subject)
	}
	return sub, nil
}
