package models

import (
	"time"

	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/asterisk"
)

// Peer is a configured endpoint that channels are matched against
type Peer struct {
	ID        int               `json:"id"`
	Name      string            `json:"name"`
	Protocol  asterisk.Protocol `json:"protocol"`
	Context   string            `json:"context"`
	Active    bool              `json:"active"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Info returns the peer descriptor used to build its channel
func (p *Peer) Info() asterisk.PeerInfo {
	return asterisk.PeerInfo{Protocol: p.Protocol, Name: p.Name}
}

// ChannelRecord is a normalized channel as stored in channel_records
type ChannelRecord struct {
	ID        int64
	ChannelID string // raw channel string
	Protocol  asterisk.Protocol
	Name      string
	Suffix    string
	Context   string
	Title     string
	Origin    string // "agi", "ami", "cli"
	CreatedAt time.Time
}

func NewChannelRecord(ch asterisk.Channel, origin string) *ChannelRecord {
	return &ChannelRecord{
		ChannelID: ch.ID,
		Protocol:  ch.Protocol,
		Name:      ch.Name,
		Suffix:    ch.Suffix,
		Context:   ch.Context,
		Title:     ch.Title(),
		Origin:    origin,
		CreatedAt: time.Now(),
	}
}

// Channel rebuilds the parsed channel from the stored columns
func (r *ChannelRecord) Channel() asterisk.Channel {
	return asterisk.Channel{
		ID:       r.ChannelID,
		Protocol: r.Protocol,
		Name:     r.Name,
		Suffix:   r.Suffix,
		Context:  r.Context,
	}
}
