// Package eventbus is an in-process fire-and-forget pub/sub feed for write
// notifications: an embedded NATS server plus a trimmed client, so other
// in-process observers (and tests) can watch memory/message writes land
// without polling.
package eventbus

import (
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"

	"github.com/CLIAIRMONITOR/memoryd/internal/apperr"
)

// Server wraps an embedded, loopback-only NATS server.
type Server struct {
	srv  *natsserver.Server
	port int
}

// StartServer launches an embedded NATS server on loopback at port, with
// its own HTTP monitoring endpoint disabled.
func StartServer(port int) (*Server, error) {
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	}

	srv, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, apperr.WrapConfig(err, "create embedded event bus server")
	}

	go srv.Start()

	if !srv.ReadyForConnections(5 * time.Second) {
		return nil, apperr.Config("event bus server did not become ready within 5s")
	}

	return &Server{srv: srv, port: port}, nil
}

// URL returns the loopback connection string for clients.
func (s *Server) URL() string {
	return fmt.Sprintf("nats://127.0.0.1:%d", s.port)
}

// Shutdown stops the embedded server.
func (s *Server) Shutdown() {
	s.srv.Shutdown()
}
