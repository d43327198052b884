package asterisk

import (
	"strings"
)

// Protocol is the channel technology of an Asterisk channel.
type Protocol int

const (
	ProtocolUnknown Protocol = iota
	ProtocolLocal
	ProtocolSIP
	ProtocolPJSIP
	ProtocolIAX
	ProtocolIAX2
	ProtocolMessage
)

var protocolNames = [...]string{
	ProtocolUnknown: "UNKNOWN",
	ProtocolLocal:   "LOCAL",
	ProtocolSIP:     "SIP",
	ProtocolPJSIP:   "PJSIP",
	ProtocolIAX:     "IAX",
	ProtocolIAX2:    "IAX2",
	ProtocolMessage: "MESSAGE",
}

// Protocols lists every known protocol, UNKNOWN excluded.
func Protocols() []Protocol {
	return []Protocol{
		ProtocolLocal,
		ProtocolSIP,
		ProtocolPJSIP,
		ProtocolIAX,
		ProtocolIAX2,
		ProtocolMessage,
	}
}

func (p Protocol) String() string {
	if p < 0 || int(p) >= len(protocolNames) {
		return protocolNames[ProtocolUnknown]
	}
	return protocolNames[p]
}

// MarshalText encodes the protocol by name.
func (p Protocol) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts any token NormalizeProtocol accepts, plus "UNKNOWN"
// and the empty string which both decode to ProtocolUnknown.
func (p *Protocol) UnmarshalText(text []byte) error {
	token := strings.ToUpper(strings.TrimSpace(string(text)))
	if token == "" || token == protocolNames[ProtocolUnknown] {
		*p = ProtocolUnknown
		return nil
	}

	parsed, err := NormalizeProtocol(token)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// NormalizeProtocol maps a technology token such as "pjsip" or " SIP " to
// its Protocol. Matching is case insensitive and ignores surrounding
// whitespace. Unknown tokens fail with ErrUnrecognizedProtocol.
func NormalizeProtocol(token string) (Protocol, error) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "LOCAL":
		return ProtocolLocal, nil
	case "SIP":
		return ProtocolSIP, nil
	case "PJSIP":
		return ProtocolPJSIP, nil
	case "IAX":
		return ProtocolIAX, nil
	case "IAX2":
		return ProtocolIAX2, nil
	case "MESSAGE":
		return ProtocolMessage, nil
	default:
		return ProtocolUnknown, &ValueError{Kind: ErrUnrecognizedProtocol, Field: "protocol", Value: token}
	}
}

// TryNormalizeProtocol is NormalizeProtocol for probing untrusted tokens:
// it reports (ProtocolUnknown, false) instead of an error.
func TryNormalizeProtocol(token string) (Protocol, bool) {
	p, err := NormalizeProtocol(token)
	if err != nil {
		return ProtocolUnknown, false
	}
	return p, true
}
