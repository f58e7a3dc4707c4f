package gorillaws

import (
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/signalmesh/core/internal/wsconn"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server accepts any number of concurrent signalling clients — a
// signalling server's whole purpose is fanning out to the full mesh
// roster.
type Server struct {
	mu       sync.Mutex
	listener net.Listener
	cb       func(wsconn.Conn)
}

// NewServer returns a Server ready to Serve.
func NewServer() *Server {
	return &Server{}
}

func (s *Server) SetConnectionCallback(fn func(wsconn.Conn)) {
	s.mu.Lock()
	s.cb = fn
	s.mu.Unlock()
}

func (s *Server) Serve(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	return http.Serve(listener, mux)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()
	if cb != nil {
		cb(newConn(raw))
	} else {
		raw.Close()
	}
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
