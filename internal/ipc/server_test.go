package ipc

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wrale/fantuner/internal/clock"
	"github.com/wrale/fantuner/internal/config"
	"github.com/wrale/fantuner/internal/control"
	"github.com/wrale/fantuner/internal/hardware"
	"github.com/wrale/fantuner/internal/safety"
)

var testFan = hardware.FanID{HardwareID: "mobo0", Name: "CPU Fan", Index: 0}

func newTestServer(t *testing.T) (string, func()) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "fantunerd.sock")

	adapter := hardware.NewMockAdapter(hardware.MockAdapterConfig{
		Fans: []hardware.MockFan{{ID: testFan, Capability: hardware.CapabilityFullControl, StartRPM: 300}},
	})

	store := config.NewFileStore(filepath.Join(t.TempDir(), "config.json"))
	svc, err := config.NewService(context.Background(), store, zap.NewNop())
	require.NoError(t, err)

	supervisor := safety.NewSupervisor(safety.Thresholds{EmergencyCPUC: 95, EmergencyGPUC: 95, HysteresisC: 5, DefaultMinFanPercent: 10})
	loop := control.NewLoop(adapter, svc, supervisor, clock.Real{}, zap.NewNop())

	server := NewServer(socketPath, "test", adapter, svc, supervisor, loop, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go server.Run(ctx)

	require.Eventually(t, func() bool {
		c, err := net.Dial("unix", socketPath)
		if err != nil {
			return false
		}
		c.Close()
		return true
	}, time.Second, 10*time.Millisecond)

	return socketPath, cancel
}

func roundTrip(t *testing.T, conn net.Conn, req Message) Message {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	require.NoError(t, WriteFrame(conn, data))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	raw, err := ReadFrame(conn)
	require.NoError(t, err)

	var resp Message
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

func TestServerGetStatus(t *testing.T) {
	socketPath, cancel := newTestServer(t)
	defer cancel()

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	resp := roundTrip(t, conn, Message{Type: MsgGetStatus, RequestID: uuid.New().String(), Timestamp: time.Now()})
	assert.Equal(t, MsgStatus, resp.Type)

	var payload StatusPayload
	require.NoError(t, json.Unmarshal(resp.Payload, &payload))
	assert.True(t, payload.Running)
	assert.Equal(t, 1, payload.ConnectedClients)
}

func TestServerSetFanSpeedUnknownFan(t *testing.T) {
	socketPath, cancel := newTestServer(t)
	defer cancel()

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	reqID := uuid.New().String()
	resp := roundTrip(t, conn, Message{
		Type:      MsgSetFanSpeed,
		RequestID: reqID,
		Timestamp: time.Now(),
		Payload:   marshalPayload(SetFanSpeedPayload{FanKey: "missing", Percent: 50}),
	})
	assert.Equal(t, MsgError, resp.Type)
	assert.Equal(t, reqID, resp.RequestID)
}

func TestServerSetFanSpeedApplies(t *testing.T) {
	socketPath, cancel := newTestServer(t)
	defer cancel()

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	resp := roundTrip(t, conn, Message{
		Type:      MsgSetFanSpeed,
		RequestID: uuid.New().String(),
		Timestamp: time.Now(),
		Payload:   marshalPayload(SetFanSpeedPayload{FanKey: testFan.Key(), Percent: 60}),
	})
	assert.Equal(t, MsgAck, resp.Type)

	var ack AckPayload
	require.NoError(t, json.Unmarshal(resp.Payload, &ack))
	assert.True(t, ack.OK)
}

func TestServerUnknownMessageType(t *testing.T) {
	socketPath, cancel := newTestServer(t)
	defer cancel()

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	resp := roundTrip(t, conn, Message{Type: "Bogus", RequestID: uuid.New().String(), Timestamp: time.Now()})
	assert.Equal(t, MsgError, resp.Type)
}

func TestServerSubscribeThenUnsubscribe(t *testing.T) {
	socketPath, cancel := newTestServer(t)
	defer cancel()

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	resp := roundTrip(t, conn, Message{Type: MsgSubscribeSensors, RequestID: uuid.New().String(), Timestamp: time.Now(), Payload: marshalPayload(SubscribeSensorsPayload{IntervalMs: 500})})
	assert.Equal(t, MsgAck, resp.Type)

	resp = roundTrip(t, conn, Message{Type: MsgUnsubscribeSensors, RequestID: uuid.New().String(), Timestamp: time.Now()})
	assert.Equal(t, MsgAck, resp.Type)
}

func TestServerRejectsConnectionsPastMaxClients(t *testing.T) {
	socketPath, cancel := newTestServer(t)
	defer cancel()

	conns := make([]net.Conn, 0, maxClients+1)
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	for i := 0; i < maxClients; i++ {
		conn, err := net.Dial("unix", socketPath)
		require.NoError(t, err)
		conns = append(conns, conn)
	}

	require.Eventually(t, func() bool {
		// Drain a no-op request on the first connection so the acceptor
		// pool has had time to register the earlier connections as clients.
		resp := roundTrip(t, conns[0], Message{Type: MsgGetStatus, RequestID: uuid.New().String(), Timestamp: time.Now()})
		return resp.Type == MsgStatus
	}, 2*time.Second, 10*time.Millisecond)

	extra, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer extra.Close()

	extra.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = extra.Read(buf)
	assert.ErrorIs(t, err, io.EOF, "connection past maxClients should be closed by the server")
}
