package sync

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

const authWait = 5 * time.Second

// Server accepts line-oriented TCP subscribers. A client's first line must be
// its bearer token; after that the server only writes events.
type Server struct {
	Addr string
	Hub  *Hub
	Auth AuthFunc
	log  *zap.Logger
	ln   net.Listener
}

func NewServer(addr string, hub *Hub, authFn AuthFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Addr: addr, Hub: hub, Auth: authFn, log: logger}
}

// Listen binds the address so binding errors surface before Serve.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.log.Info("tcp sync listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Serve runs the accept loop until ctx ends or the listener is closed.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("tcp accept failed", zap.Error(err))
			continue
		}
		go s.handle(ctx, conn)
	}
}

func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	sc := bufio.NewScanner(conn)
	_ = conn.SetReadDeadline(time.Now().Add(authWait))
	if !sc.Scan() {
		_ = conn.Close()
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(sc.Text()), "Bearer "))
	userID, err := s.Auth(ctx, token)
	if err != nil || userID == "" {
		_, _ = conn.Write([]byte("{\"type\":\"error\",\"error\":\"invalid token\"}\n"))
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	_, _ = conn.Write(welcome("tcp"))
	s.Hub.Add(conn, userID)
	s.log.Info("tcp client connected", zap.String("user_id", userID), zap.Stringer("remote", conn.RemoteAddr()))

	defer func() {
		s.Hub.Remove(conn)
		s.log.Info("tcp client disconnected", zap.String("user_id", userID))
	}()
	// incoming lines are ignored; the loop ends when the client goes away
	for sc.Scan() {
	}
}
