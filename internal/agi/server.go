package agi

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/asterisk"
	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/models"
)

// Channel variables set by the normalize request
const (
	VarStatus   = "CHANNEL_STATUS"
	VarError    = "CHANNEL_ERROR"
	VarProtocol = "CHANNEL_PROTOCOL"
	VarName     = "CHANNEL_NAME"
	VarSuffix   = "CHANNEL_SUFFIX"
	VarContext  = "CHANNEL_CONTEXT"
	VarTitle    = "CHANNEL_TITLE"
	VarPeer     = "CHANNEL_PEER"
)

// Recorder stores normalized channels.
type Recorder interface {
	Record(ch asterisk.Channel, origin string) error
}

// PeerMatcher resolves the configured peer a channel belongs to.
type PeerMatcher interface {
	Match(ch asterisk.Channel) (*models.Peer, bool)
}

// Server is a FastAGI server normalizing the channels Asterisk hands it
type Server struct {
	listenPort  int
	mu          sync.Mutex
	listener    net.Listener
	recorder    Recorder
	peers       PeerMatcher
	connections sync.WaitGroup
	shutdown    chan struct{}
	activeConns sync.Map
}

// Session is a single AGI conversation
type Session struct {
	conn      net.Conn
	reader    *bufio.Reader
	writer    *bufio.Writer
	headers   map[string]string
	server    *Server
	id        string
	startTime time.Time
}

// NewServer creates a server. recorder and peers may be nil.
func NewServer(port int, recorder Recorder, peers PeerMatcher) *Server {
	return &Server{
		listenPort: port,
		recorder:   recorder,
		peers:      peers,
		shutdown:   make(chan struct{}),
	}
}

// Start listens and serves until Stop is called
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.listenPort))
	if err != nil {
		return errors.Wrapf(err, "listen on port %d", s.listenPort)
	}
	return s.Serve(ln)
}

// Serve accepts sessions on ln until Stop is called
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	select {
	case <-s.shutdown:
		s.mu.Unlock()
		ln.Close()
		return nil
	default:
	}
	s.listener = ln
	s.mu.Unlock()
	log.Printf("[AGI] Server listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				log.Println("[AGI] Server shutting down...")
				return nil
			default:
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			log.Printf("[AGI] Error accepting connection: %v", err)
			continue
		}

		s.connections.Add(1)
		go s.handleConnection(conn)
	}
}

// Stop closes the listener and waits for running sessions. It may be
// called more than once, and before Serve.
func (s *Server) Stop() {
	s.mu.Lock()
	select {
	case <-s.shutdown:
	default:
		close(s.shutdown)
	}
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()
	s.connections.Wait()
	log.Println("[AGI] Server stopped")
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.connections.Done()

	session := &Session{
		conn:      conn,
		reader:    bufio.NewReader(conn),
		writer:    bufio.NewWriter(conn),
		headers:   make(map[string]string),
		server:    s,
		id:        fmt.Sprintf("%s-%d", conn.RemoteAddr().String(), time.Now().UnixNano()),
		startTime: time.Now(),
	}

	s.activeConns.Store(session.id, session)
	defer s.activeConns.Delete(session.id)
	defer session.close()

	if err := session.readHeaders(); err != nil {
		log.Printf("[AGI] Error reading headers: %v", err)
		return
	}

	log.Printf("[AGI] Session %s: request=%s channel=%s uniqueid=%s",
		session.id, session.headers["agi_request"], session.headers["agi_channel"], session.headers["agi_uniqueid"])

	if err := session.processRequest(); err != nil {
		log.Printf("[AGI] Session %s failed: %v", session.id, err)
	}

	log.Printf("[AGI] Session %s completed (Duration: %v)", session.id, time.Since(session.startTime))
}

// readHeaders reads agi_* headers up to the blank line
func (s *Session) readHeaders() error {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return errors.Wrap(err, "read header")
		}

		line = strings.TrimSpace(line)
		if line == "" {
			return nil
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			s.headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
}

// Network reports agi_network, unset when Asterisk did not send it
func (s *Session) Network() (*bool, error) {
	return asterisk.ParseBool(s.headers["agi_network"])
}

// Script returns the path of agi_request, "normalize" for
// agi://host/normalize?x=y
func (s *Session) Script() string {
	request := s.headers["agi_request"]
	if i := strings.Index(request, "://"); i > -1 {
		request = request[i+3:]
		if j := strings.Index(request, "/"); j > -1 {
			request = request[j+1:]
		} else {
			request = ""
		}
	}
	if i := strings.IndexByte(request, '?'); i > -1 {
		request = request[:i]
	}
	return strings.Trim(request, "/")
}

func (s *Session) processRequest() error {
	if network, err := s.Network(); err != nil {
		log.Printf("[AGI] Session %s: %v", s.id, err)
	} else if network != nil && !*network {
		log.Printf("[AGI] Session %s: not a network AGI session", s.id)
	}

	switch script := s.Script(); script {
	case "normalize":
		return s.handleNormalize()
	case "hangup":
		log.Printf("[AGI] Hangup for %s", s.headers["agi_channel"])
		return nil
	default:
		return errors.Errorf("unknown request %q", script)
	}
}

func (s *Session) handleNormalize() error {
	ch, err := asterisk.ParseChannel(s.headers["agi_channel"])
	if err != nil {
		if setErr := s.SetVariable(VarStatus, "failed"); setErr != nil {
			return setErr
		}
		if setErr := s.SetVariable(VarError, asterisk.ErrorKind(err)); setErr != nil {
			return setErr
		}
		return err
	}

	vars := [][2]string{
		{VarStatus, "success"},
		{VarProtocol, ch.Protocol.String()},
		{VarName, ch.Name},
		{VarSuffix, ch.Suffix},
		{VarContext, ch.Context},
		{VarTitle, ch.Title()},
	}
	if s.server.peers != nil {
		if p, ok := s.server.peers.Match(ch); ok {
			vars = append(vars, [2]string{VarPeer, p.Name})
		}
	}

	for _, v := range vars {
		if err := s.SetVariable(v[0], v[1]); err != nil {
			return err
		}
	}

	if s.server.recorder != nil {
		if err := s.server.recorder.Record(ch, "agi"); err != nil {
			log.Printf("[AGI] Failed to record channel: %v", err)
		}
	}
	return nil
}

// SetVariable sets a channel variable and checks the reply
func (s *Session) SetVariable(name, value string) error {
	value = strings.ReplaceAll(value, `"`, `\"`)
	if err := s.sendCommand(fmt.Sprintf("SET VARIABLE %s \"%s\"", name, value)); err != nil {
		return err
	}

	response, err := s.readResponse()
	if err != nil {
		return err
	}
	if !strings.HasPrefix(response, "200 result=1") {
		return errors.Errorf("set variable %s: %s", name, response)
	}
	return nil
}

func (s *Session) sendCommand(cmd string) error {
	if _, err := s.writer.WriteString(cmd + "\n"); err != nil {
		return errors.Wrap(err, "send command")
	}
	return s.writer.Flush()
}

func (s *Session) readResponse() (string, error) {
	response, err := s.reader.ReadString('\n')
	if err != nil {
		return "", errors.Wrap(err, "read response")
	}
	return strings.TrimSpace(response), nil
}

func (s *Session) close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

// Stats returns server statistics
func (s *Server) Stats() map[string]interface{} {
	activeCount := 0
	s.activeConns.Range(func(key, value interface{}) bool {
		activeCount++
		return true
	})

	return map[string]interface{}{
		"active_connections": activeCount,
		"port":               s.listenPort,
	}
}
