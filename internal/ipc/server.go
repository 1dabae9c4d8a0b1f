package ipc

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wrale/fantuner/internal/apperr"
	"github.com/wrale/fantuner/internal/config"
	"github.com/wrale/fantuner/internal/control"
	"github.com/wrale/fantuner/internal/hardware"
	"github.com/wrale/fantuner/internal/safety"
)

const (
	// numAcceptors is the size of the acceptor pool Run spawns. net.Listener
	// is safe for concurrent Accept calls, so a small fixed pool of acceptor
	// tasks is enough to keep connection setup from queuing behind a single
	// accept loop without needing one goroutine per potential client.
	numAcceptors = 4

	// maxClients rejects further connections once reached; addClient closes
	// the new connection rather than admitting it past the cap.
	maxClients = 32
)

// Server accepts connections on a Unix domain socket and serves the
// framed JSON protocol. Connection bookkeeping (the client map, the
// broadcast channel, the broadcast loop pushing SensorUpdate to every
// subscribed connection) is the teacher's websocket fan-out pattern
// carried over without the websocket library itself, since the spec
// mandates raw framed sockets instead.
type Server struct {
	path     string
	listener net.Listener
	logger   *zap.Logger
	version  string
	start    time.Time

	adapter    hardware.Adapter
	cfgService *config.Service
	supervisor *safety.Supervisor
	loop       *control.Loop

	mu      sync.Mutex
	clients map[*connection]struct{}
}

// NewServer creates a Server bound to a not-yet-listening Unix socket
// path.
func NewServer(path, version string, adapter hardware.Adapter, cfgService *config.Service, supervisor *safety.Supervisor, loop *control.Loop, logger *zap.Logger) *Server {
	return &Server{
		path:       path,
		version:    version,
		logger:     logger,
		adapter:    adapter,
		cfgService: cfgService,
		supervisor: supervisor,
		loop:       loop,
		clients:    make(map[*connection]struct{}),
	}
}

// Run listens on the configured socket path, accepts connections until
// ctx is cancelled, and forwards control-loop telemetry to every
// subscribed connection. It blocks until every acceptor has returned.
func (s *Server) Run(ctx context.Context) error {
	_ = os.Remove(s.path)

	l, err := net.Listen("unix", s.path)
	if err != nil {
		return apperr.Wrap("ipc.Run", apperr.AdapterInit, "failed to listen on ipc socket", err)
	}
	s.listener = l
	s.start = time.Now()

	telemetry, unsubscribe := s.loop.Telemetry(4)
	defer unsubscribe()
	go s.broadcastLoop(ctx, telemetry)

	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()

	errCh := make(chan error, numAcceptors)
	var wg sync.WaitGroup
	for i := 0; i < numAcceptors; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- s.acceptLoop(ctx, l)
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// acceptLoop is run by each member of the acceptor pool. Multiple
// acceptors calling Accept on the same listener concurrently is safe;
// whichever one wakes up for a given connection handles it.
func (s *Server) acceptLoop(ctx context.Context, l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.logger.Warn("ipc accept failed", zap.Error(err))
				return err
			}
		}

		c := newConnection(conn)
		if !s.addClient(c) {
			s.logger.Warn("rejecting ipc connection: max clients reached", zap.Int("maxClients", maxClients))
			c.close()
			continue
		}
		go s.serve(ctx, c)
	}
}

// addClient registers c unless the server is already at maxClients, in
// which case it reports false and the caller must reject the connection.
func (s *Server) addClient(c *connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) >= maxClients {
		return false
	}
	s.clients[c] = struct{}{}
	return true
}

func (s *Server) removeClient(c *connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
}

func (s *Server) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// broadcastLoop relays control-loop telemetry to every connection whose
// subscribed flag is set.
func (s *Server) broadcastLoop(ctx context.Context, telemetry <-chan control.Telemetry) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-telemetry:
			if !ok {
				return
			}
			msg := Message{
				Type:      MsgSensorUpdate,
				RequestID: uuid.New().String(),
				Timestamp: time.Now(),
				Payload:   marshalPayload(SensorUpdatePayload{Sensors: t.Sensors, Fans: t.Fans, Emergency: t.Emergency}),
			}

			s.mu.Lock()
			for c := range s.clients {
				if c.isSubscribed() {
					c.send(msg)
				}
			}
			s.mu.Unlock()
		}
	}
}

// serve owns one accepted connection end to end: reads frames, dispatches
// each to a handler, writes the response, and cleans up on disconnect.
func (s *Server) serve(ctx context.Context, c *connection) {
	defer func() {
		s.removeClient(c)
		c.close()
	}()

	go c.writeLoop()

	for {
		raw, err := ReadFrame(c.conn)
		if err != nil {
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.send(errorMessage("", apperr.FrameInvalid, "malformed message envelope"))
			return
		}

		resp := s.dispatch(ctx, c, msg)
		c.send(resp)
	}
}

func errorMessage(requestID string, code apperr.Code, message string) Message {
	return Message{
		Type:      MsgError,
		RequestID: requestID,
		Timestamp: time.Now(),
		Payload:   marshalPayload(ErrorPayload{Code: string(code), Message: message}),
	}
}
