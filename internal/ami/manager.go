package ami

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/asterisk"
)

var ErrNotConnected = errors.New("ami: not connected")

type Manager struct {
	host     string
	port     int
	username string
	password string
	conn     net.Conn
	reader   *bufio.Reader
	writer   *bufio.Writer
	mu       sync.Mutex
	eventCh  chan Event
	done     chan struct{}
	timeout  time.Duration
}

func NewManager(host string, port int, username, password string) *Manager {
	return &Manager{
		host:     host,
		port:     port,
		username: username,
		password: password,
		eventCh:  make(chan Event, 100),
		done:     make(chan struct{}),
		timeout:  5 * time.Second,
	}
}

func (m *Manager) Connect() error {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(m.host, fmt.Sprint(m.port)), m.timeout)
	if err != nil {
		return errors.Wrap(err, "dial ami")
	}

	m.conn = conn
	m.reader = bufio.NewReader(conn)
	m.writer = bufio.NewWriter(conn)

	// Read welcome banner
	if _, err := m.reader.ReadString('\n'); err != nil {
		conn.Close()
		return errors.Wrap(err, "read banner")
	}

	if err := m.login(); err != nil {
		conn.Close()
		return err
	}

	go m.eventReader()

	log.Println("[AMI] Connected successfully")
	return nil
}

func (m *Manager) login() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.send(Action{
		"Action":   "Login",
		"Username": m.username,
		"Secret":   m.password,
		"Events":   "call",
	}); err != nil {
		return err
	}

	response, err := readEvent(m.reader)
	if err != nil {
		return errors.Wrap(err, "read login response")
	}
	if response["Response"] != "Success" {
		return errors.Errorf("login failed: %s", response["Message"])
	}
	return nil
}

func (m *Manager) send(action Action) error {
	if _, err := m.writer.WriteString(action.String()); err != nil {
		return err
	}
	return m.writer.Flush()
}

func (m *Manager) eventReader() {
	defer close(m.eventCh)

	for {
		event, err := readEvent(m.reader)
		if err != nil {
			select {
			case <-m.done:
			default:
				log.Printf("[AMI] Event reader stopped: %v", err)
			}
			return
		}
		if len(event) == 0 {
			continue
		}

		select {
		case m.eventCh <- event:
		default:
			// Channel full, drop event
		}
	}
}

// Status requests the status of a channel. The reply arrives on Events()
// as StatusComplete/Status events.
func (m *Manager) Status(ch asterisk.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return ErrNotConnected
	}
	return m.send(Action{
		"Action":  "Status",
		"Channel": ch.ID,
	})
}

func (m *Manager) Close() {
	select {
	case <-m.done:
		return
	default:
		close(m.done)
	}
	if m.conn != nil {
		m.conn.Close()
	}
}

func (m *Manager) Events() <-chan Event {
	return m.eventCh
}
