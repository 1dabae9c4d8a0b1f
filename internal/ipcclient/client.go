// Package ipcclient implements a client for the IPC Endpoint's framed
// JSON protocol, grounded on the teacher's MetalClient shape (one
// typed method per operation, wrapping a shared request helper) adapted
// from synchronous HTTP request/response to a correlated
// request-id/response map over a persistent framed socket connection.
package ipcclient

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wrale/fantuner/internal/config"
	"github.com/wrale/fantuner/internal/ipc"
)

// connectTimeout bounds how long Dial waits for the socket to accept.
const connectTimeout = 5 * time.Second

// requestTimeout bounds how long a request waits for its response.
const requestTimeout = 30 * time.Second

// Client is a connected IPC client. It owns one read goroutine that
// demultiplexes responses by request id and routes unsolicited
// SensorUpdate pushes to Updates().
type Client struct {
	conn net.Conn

	mu      sync.Mutex
	pending map[string]chan ipc.Message

	updates chan ipc.SensorUpdatePayload
	closed  chan struct{}
}

// Dial connects to the daemon's Unix domain socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, connectTimeout)
	if err != nil {
		return nil, fmt.Errorf("ipcclient: dial %s: %w", path, err)
	}

	c := &Client{
		conn:    conn,
		pending: make(map[string]chan ipc.Message),
		updates: make(chan ipc.SensorUpdatePayload, 16),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return c.conn.Close()
}

// Updates returns the channel SensorUpdate pushes are delivered on.
func (c *Client) Updates() <-chan ipc.SensorUpdatePayload {
	return c.updates
}

func (c *Client) readLoop() {
	defer close(c.updates)
	for {
		raw, err := ipc.ReadFrame(c.conn)
		if err != nil {
			c.failAllPending()
			return
		}

		var msg ipc.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		if msg.Type == ipc.MsgSensorUpdate {
			var payload ipc.SensorUpdatePayload
			if err := json.Unmarshal(msg.Payload, &payload); err == nil {
				select {
				case c.updates <- payload:
				default:
				}
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.RequestID]
		if ok {
			delete(c.pending, msg.RequestID)
		}
		c.mu.Unlock()

		if ok {
			ch <- msg
		}
	}
}

func (c *Client) failAllPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Client) request(msgType ipc.MessageType, payload interface{}) (ipc.Message, error) {
	reqID := uuid.New().String()
	msg := ipc.Message{Type: msgType, RequestID: reqID, Timestamp: time.Now()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return ipc.Message{}, fmt.Errorf("ipcclient: marshal request: %w", err)
		}
		msg.Payload = data
	}

	ch := make(chan ipc.Message, 1)
	c.mu.Lock()
	c.pending[reqID] = ch
	c.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		return ipc.Message{}, fmt.Errorf("ipcclient: marshal envelope: %w", err)
	}
	if err := ipc.WriteFrame(c.conn, data); err != nil {
		return ipc.Message{}, fmt.Errorf("ipcclient: write frame: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return ipc.Message{}, fmt.Errorf("ipcclient: connection closed while awaiting response")
		}
		if resp.Type == ipc.MsgError {
			var e ipc.ErrorPayload
			_ = json.Unmarshal(resp.Payload, &e)
			return resp, fmt.Errorf("ipcclient: %s: %s", e.Code, e.Message)
		}
		return resp, nil
	case <-time.After(requestTimeout):
		return ipc.Message{}, fmt.Errorf("ipcclient: timed out waiting for response")
	}
}

// GetStatus retrieves daemon status.
func (c *Client) GetStatus() (ipc.StatusPayload, error) {
	var out ipc.StatusPayload
	resp, err := c.request(ipc.MsgGetStatus, nil)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(resp.Payload, &out)
	return out, err
}

// GetSensors retrieves the last cached sensor snapshot.
func (c *Client) GetSensors() (ipc.SensorsPayload, error) {
	var out ipc.SensorsPayload
	resp, err := c.request(ipc.MsgGetSensors, nil)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(resp.Payload, &out)
	return out, err
}

// GetFans retrieves the last cached fan snapshot.
func (c *Client) GetFans() (ipc.FansPayload, error) {
	var out ipc.FansPayload
	resp, err := c.request(ipc.MsgGetFans, nil)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(resp.Payload, &out)
	return out, err
}

// GetConfig retrieves the current configuration.
func (c *Client) GetConfig() (ipc.ConfigPayload, error) {
	var out ipc.ConfigPayload
	resp, err := c.request(ipc.MsgGetConfig, nil)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(resp.Payload, &out)
	return out, err
}

// SetConfig replaces the working configuration wholesale.
func (c *Client) SetConfig(cfg config.AppConfiguration) error {
	_, err := c.request(ipc.MsgSetConfig, ipc.SetConfigPayload{Config: cfg})
	return err
}

// SetFanSpeed requests a direct fan override.
func (c *Client) SetFanSpeed(fanKey string, percent float64) error {
	_, err := c.request(ipc.MsgSetFanSpeed, ipc.SetFanSpeedPayload{FanKey: fanKey, Percent: percent})
	return err
}

// SetProfile switches the active profile.
func (c *Client) SetProfile(profileID string) error {
	_, err := c.request(ipc.MsgSetProfile, ipc.SetProfilePayload{ProfileID: profileID})
	return err
}

// SubscribeSensors flips the subscribed flag on for this connection.
func (c *Client) SubscribeSensors(intervalMs int) error {
	_, err := c.request(ipc.MsgSubscribeSensors, ipc.SubscribeSensorsPayload{IntervalMs: intervalMs})
	return err
}

// UnsubscribeSensors flips the subscribed flag off.
func (c *Client) UnsubscribeSensors() error {
	_, err := c.request(ipc.MsgUnsubscribeSensors, nil)
	return err
}
