// Package server accepts TCP connections and runs one session per
// connection. Requests on a connection are processed strictly in arrival
// order; all cross-connection safety lives below the dispatcher, in the
// ledger engine and store.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/campustrade/backend/internal/dispatch"
	"github.com/campustrade/backend/internal/protocol"
)

// Handler dispatches one decoded request envelope.
type Handler interface {
	Dispatch(req *protocol.Request) dispatch.Result
}

const writeTimeout = 5 * time.Second

type Server struct {
	addr    string
	handler Handler

	ln net.Listener
	wg sync.WaitGroup

	mu       sync.Mutex
	sessions map[*session]struct{}
	closed   bool
}

// session is one live connection. writeMu serializes response writes with
// force-logout pushes; userID is guarded by the server mutex.
type session struct {
	conn    net.Conn
	writeMu sync.Mutex
	userID  int
}

func New(addr string, handler Handler) *Server {
	return &Server{
		addr:     addr,
		handler:  handler,
		sessions: map[*session]struct{}{},
	}
}

// Listen binds the TCP listener. Split from Serve so callers can learn the
// bound address before serving.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	log.Printf("[SERVER] Listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve runs the accept loop until Shutdown closes the listener.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return err
		}

		sess := &session{conn: conn}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return nil
		}
		s.sessions[sess] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleSession(sess)
	}
}

func (s *Server) handleSession(sess *session) {
	defer s.wg.Done()
	remote := sess.conn.RemoteAddr()
	log.Printf("[SERVER] Connection from %s", remote)

	defer func() {
		sess.conn.Close()
		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()
		log.Printf("[SERVER] Connection %s closed", remote)
	}()

	for {
		payload, err := protocol.ReadFrame(sess.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("[SERVER] Framing error from %s: %v", remote, err)
			}
			return
		}

		var req protocol.Request
		if err := json.Unmarshal(payload, &req); err != nil {
			log.Printf("[SERVER] Malformed envelope from %s: %v", remote, err)
			sess.write(protocol.Fail("invalid_argument", "malformed request envelope"))
			return
		}

		res := s.handler.Dispatch(&req)
		if err := sess.write(res.Response); err != nil {
			log.Printf("[SERVER] Write to %s failed: %v", remote, err)
			return
		}

		if res.LoggedInUserID != 0 {
			s.mu.Lock()
			sess.userID = res.LoggedInUserID
			s.mu.Unlock()
		}
		if res.DeletedUserID != 0 {
			s.Kick(res.DeletedUserID, "your account has been deleted")
		}
	}
}

// Kick pushes a force-logout notification to every live session of the
// given account, then closes those connections. The notification goes out
// before the close so clients see why instead of a bare EOF.
func (s *Server) Kick(userID int, reason string) {
	s.mu.Lock()
	var targets []*session
	for sess := range s.sessions {
		if sess.userID == userID {
			targets = append(targets, sess)
		}
	}
	s.mu.Unlock()

	notice := protocol.Response{
		"success":      false,
		"error":        "unauthorized",
		"force_logout": true,
		"message":      reason,
	}
	for _, sess := range targets {
		if err := sess.write(notice); err != nil {
			log.Printf("[SERVER] Force-logout push failed: %v", err)
		}
		sess.conn.Close()
		log.Printf("[SERVER] Forced logout of user %d session %s", userID, sess.conn.RemoteAddr())
	}
}

// Shutdown stops accepting, closes every live connection and waits for the
// session goroutines to drain.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closed = true
	sessions := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	if s.ln != nil {
		s.ln.Close()
	}
	for _, sess := range sessions {
		sess.conn.Close()
	}
	s.wg.Wait()
	log.Println("[SERVER] Stopped")
}

func (sess *session) write(resp protocol.Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	sess.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return protocol.WriteFrame(sess.conn, payload)
}
