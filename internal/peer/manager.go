package peer

import (
	"database/sql"
	"io"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"

	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/asterisk"
	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/models"
)

var ErrNotFound = errors.New("peer not found")

// Manager keeps the configured peers in memory, mirrored to the peers table
// when a database is attached.
type Manager struct {
	mu    sync.RWMutex
	db    *sql.DB
	peers map[string]*models.Peer
}

// NewManager returns a registry backed by conn. A nil conn keeps peers in
// memory only.
func NewManager(conn *sql.DB) *Manager {
	return &Manager{
		db:    conn,
		peers: make(map[string]*models.Peer),
	}
}

func (m *Manager) Initialize() error {
	if m.db == nil {
		return nil
	}
	return m.Load()
}

func (m *Manager) AddPeer(p *models.Peer) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return errors.Wrap(asterisk.ErrInvalidArgument, "peer name is required")
	}
	if strings.ContainsAny(p.Name, "/-@") {
		return errors.Wrapf(asterisk.ErrInvalidArgument, "peer name %q contains a reserved character", p.Name)
	}
	if p.Protocol == asterisk.ProtocolUnknown {
		return errors.Wrapf(asterisk.ErrUnrecognizedProtocol, "peer %s", p.Name)
	}

	if m.db != nil {
		query := `
            INSERT INTO peers (name, protocol, context, active)
            VALUES (?, ?, ?, ?)
            ON DUPLICATE KEY UPDATE
                protocol = VALUES(protocol),
                context = VALUES(context),
                active = VALUES(active)`

		result, err := m.db.Exec(query, p.Name, p.Protocol.String(), p.Context, p.Active)
		if err != nil {
			return errors.Wrapf(err, "store peer %s", p.Name)
		}
		if p.ID == 0 {
			id, _ := result.LastInsertId()
			p.ID = int(id)
		}
	}

	m.mu.Lock()
	m.peers[p.Name] = p
	m.mu.Unlock()

	log.Printf("[PEER] %s added (%s)", p.Name, asterisk.ChannelFromPeer(p.Info()).ID)
	return nil
}

func (m *Manager) GetPeer(name string) (*models.Peer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, exists := m.peers[name]
	if !exists {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	return p, nil
}

// ListPeers returns peers sorted by name. ProtocolUnknown lists all of them.
func (m *Manager) ListPeers(protocol asterisk.Protocol) []*models.Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var peers []*models.Peer
	for _, p := range m.peers {
		if protocol == asterisk.ProtocolUnknown || p.Protocol == protocol {
			peers = append(peers, p)
		}
	}

	sort.Slice(peers, func(i, j int) bool { return peers[i].Name < peers[j].Name })
	return peers
}

func (m *Manager) DeletePeer(name string) error {
	if _, err := m.GetPeer(name); err != nil {
		return err
	}

	if m.db != nil {
		if _, err := m.db.Exec("DELETE FROM peers WHERE name = ?", name); err != nil {
			return errors.Wrapf(err, "delete peer %s", name)
		}
	}

	m.mu.Lock()
	delete(m.peers, name)
	m.mu.Unlock()

	return nil
}

// Channel returns the channel addressing the named peer.
func (m *Manager) Channel(name string) (asterisk.Channel, error) {
	p, err := m.GetPeer(name)
	if err != nil {
		return asterisk.Channel{}, err
	}
	return asterisk.ChannelFromPeer(p.Info()), nil
}

// Match finds the active peer a parsed channel belongs to.
func (m *Manager) Match(ch asterisk.Channel) (*models.Peer, bool) {
	if ch.Protocol == asterisk.ProtocolUnknown || ch.Name == "" {
		return nil, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	p, exists := m.peers[ch.Name]
	if !exists || !p.Active || p.Protocol != ch.Protocol {
		return nil, false
	}
	return p, true
}

// importEntry is a peer as written in an import file. Peers without an
// active key are active, as with the peers table default.
type importEntry struct {
	Name     string            `yaml:"name"`
	Protocol asterisk.Protocol `yaml:"protocol"`
	Context  string            `yaml:"context"`
	Active   *bool             `yaml:"active"`
}

// Import adds every peer of a YAML list:
//
//   - name: trunk01
//     protocol: pjsip
//     context: from-trunk
//     active: true
func (m *Manager) Import(r io.Reader) (int, error) {
	var entries []importEntry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "decode peers")
	}

	added := 0
	for _, e := range entries {
		p := &models.Peer{
			Name:     e.Name,
			Protocol: e.Protocol,
			Context:  e.Context,
			Active:   e.Active == nil || *e.Active,
		}
		if err := m.AddPeer(p); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

func (m *Manager) Load() error {
	query := `
        SELECT id, name, protocol, context, active, created_at, updated_at
        FROM peers`

	rows, err := m.db.Query(query)
	if err != nil {
		return errors.Wrap(err, "query peers")
	}
	defer rows.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.peers = make(map[string]*models.Peer)

	for rows.Next() {
		p := &models.Peer{}
		var protocol string
		var context sql.NullString

		if err := rows.Scan(&p.ID, &p.Name, &protocol, &context, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			log.Printf("[PEER] Error loading peer: %v", err)
			continue
		}
		if err := p.Protocol.UnmarshalText([]byte(protocol)); err != nil {
			log.Printf("[PEER] Skipping peer %s: %v", p.Name, err)
			continue
		}
		p.Context = context.String
		m.peers[p.Name] = p
	}

	log.Printf("[PEER] Loaded %d peers", len(m.peers))
	return rows.Err()
}

// Stats returns the number of peers per protocol.
func (m *Manager) Stats() map[asterisk.Protocol]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[asterisk.Protocol]int)
	for _, p := range m.peers {
		stats[p.Protocol]++
	}
	return stats
}
