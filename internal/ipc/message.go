// Package ipc implements the IPC Endpoint: a length-prefixed JSON
// protocol served over a Unix domain socket, replacing the source's
// ambient HTTP+websocket transport with the spec's local-channel framing
// while keeping the teacher's client-map/broadcast-loop shape for
// fan-out to subscribed connections.
package ipc

import (
	"encoding/json"
	"time"

	"github.com/wrale/fantuner/internal/config"
	"github.com/wrale/fantuner/internal/hardware"
)

// MessageType is the tagged-union discriminator. Dispatch on Type, never
// on the payload's Go type, so unknown tags are a plain data case (an
// Error response) rather than a type assertion failure.
type MessageType string

const (
	MsgGetStatus          MessageType = "GetStatus"
	MsgGetSensors         MessageType = "GetSensors"
	MsgGetFans            MessageType = "GetFans"
	MsgGetConfig          MessageType = "GetConfig"
	MsgSetConfig          MessageType = "SetConfig"
	MsgSetFanSpeed        MessageType = "SetFanSpeed"
	MsgSetProfile         MessageType = "SetProfile"
	MsgSubscribeSensors   MessageType = "SubscribeSensors"
	MsgUnsubscribeSensors MessageType = "UnsubscribeSensors"

	MsgStatus       MessageType = "Status"
	MsgSensors      MessageType = "Sensors"
	MsgFans         MessageType = "Fans"
	MsgConfig       MessageType = "Config"
	MsgAck          MessageType = "Ack"
	MsgError        MessageType = "Error"
	MsgSensorUpdate MessageType = "SensorUpdate"
)

// Message is the envelope every frame carries: a type discriminator, a
// client-generated request id, a timestamp, and an opaque payload
// resolved against Type.
type Message struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"requestId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// SetConfigPayload carries a full configuration replacement.
type SetConfigPayload struct {
	Config config.AppConfiguration `json:"config"`
}

// SetFanSpeedPayload requests a direct fan override.
type SetFanSpeedPayload struct {
	FanKey  string  `json:"fanKey"`
	Percent float64 `json:"percent"`
}

// SetProfilePayload switches the active profile.
type SetProfilePayload struct {
	ProfileID string `json:"profileId"`
}

// SubscribeSensorsPayload flips the per-connection subscribed flag on,
// at the requested push cadence (advisory; the control loop's own tick
// rate is the actual cadence).
type SubscribeSensorsPayload struct {
	IntervalMs int `json:"intervalMs"`
}

// StatusPayload answers GetStatus.
type StatusPayload struct {
	Running          bool     `json:"running"`
	Version          string   `json:"version"`
	UptimeSeconds    float64  `json:"uptimeSeconds"`
	Emergency        bool     `json:"emergency"`
	EmergencyReason  string   `json:"emergencyReason,omitempty"`
	ActiveProfileID  string   `json:"activeProfileId"`
	ActiveProfile    string   `json:"activeProfileName"`
	Warnings         []string `json:"warnings"`
	ConnectedClients int      `json:"connectedClients"`
}

// SensorsPayload answers GetSensors and seeds SensorUpdate.
type SensorsPayload struct {
	Sensors []hardware.SensorReading `json:"sensors"`
}

// FansPayload answers GetFans and seeds SensorUpdate.
type FansPayload struct {
	Fans []hardware.FanDevice `json:"fans"`
}

// ConfigPayload answers GetConfig.
type ConfigPayload struct {
	Config config.AppConfiguration `json:"config"`
}

// AckPayload answers every mutating request.
type AckPayload struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// ErrorPayload answers any request that fails, including unknown tags.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SensorUpdatePayload is pushed to subscribed connections once per
// control-loop tick. It bears a fresh request id; it is never a reply.
type SensorUpdatePayload struct {
	Sensors   []hardware.SensorReading `json:"sensors"`
	Fans      []hardware.FanDevice     `json:"fans"`
	Emergency bool                     `json:"emergency"`
}

func marshalPayload(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}
