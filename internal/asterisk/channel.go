package asterisk

import (
	"strings"
)

// PeerInfo is the minimal description of a configured peer.
type PeerInfo struct {
	Protocol Protocol
	Name     string
}

// Channel is a decomposed channel identifier of the form
// TECH/NAME[-SUFFIX][@CONTEXT]. Values are never modified after construction.
type Channel struct {
	// ID is the source string, verbatim.
	ID       string
	Protocol Protocol
	Name     string
	Suffix   string
	Context  string
}

// ParseChannel decomposes a raw channel string.
//
// The technology is the text before the first '/' and the track is the
// segment right after it; further segments are dropped. The track is split
// on its last '-' into name and suffix, then the name is split on '@' into
// name and context. A source without '/' yields a Channel with only ID set.
func ParseChannel(source string) (Channel, error) {
	if strings.TrimSpace(source) == "" {
		return Channel{}, &ValueError{Kind: ErrInvalidArgument, Field: "source", Value: source}
	}

	ch := Channel{ID: source}
	if !strings.Contains(source, "/") {
		return ch, nil
	}

	parts := strings.Split(source, "/")
	protocol, err := NormalizeProtocol(parts[0])
	if err != nil {
		return Channel{}, err
	}
	ch.Protocol = protocol

	track := parts[1]
	if sep := strings.LastIndex(track, "-"); sep > -1 {
		ch.Suffix = track[sep+1:]
		ch.Name = track[:sep]
	} else {
		ch.Name = track
	}

	if strings.Contains(ch.Name, "@") {
		withContext := strings.Split(ch.Name, "@")
		ch.Context = withContext[1]
		ch.Name = withContext[0]
	}

	return ch, nil
}

// ChannelFromPeer builds the channel addressing a peer, "PROTOCOL/name".
func ChannelFromPeer(peer PeerInfo) Channel {
	return Channel{
		ID:       peer.Protocol.String() + "/" + peer.Name,
		Protocol: peer.Protocol,
		Name:     peer.Name,
	}
}

// Peer returns the protocol and name of the channel.
func (c Channel) Peer() PeerInfo {
	return PeerInfo{Protocol: c.Protocol, Name: c.Name}
}

// Title returns ChannelTitle of the channel ID.
func (c Channel) Title() string {
	return ChannelTitle(c.ID)
}

func (c Channel) String() string {
	return c.ID
}

// ChannelTitle returns the display part of a channel string, between the
// technology and the last '-', with any "@context" removed first.
//
//	"LOCAL/2344534fgdfgdfg-4543611@from-queues" => "2344534fgdfgdfg"
//	"PJSIP/out-datora-4543611@external"         => "out-datora"
func ChannelTitle(channel string) string {
	if strings.TrimSpace(channel) == "" {
		return ""
	}

	result := channel
	if i := strings.Index(result, "@"); i > -1 {
		result = result[:i]
	}

	if strings.Contains(result, "/") {
		result = strings.Split(result, "/")[1]
	}

	if last := strings.LastIndex(result, "-"); last > -1 {
		result = result[:last]
	}
	return result
}
