package ami

import (
	"bufio"
	"io"
	"sort"
	"strings"

	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/asterisk"
)

// Event is one AMI message, header name to value.
type Event map[string]string

// Name returns the Event header, or the Response header for replies.
func (e Event) Name() string {
	if name, ok := e["Event"]; ok {
		return name
	}
	return e["Response"]
}

// Channel parses the Channel header.
func (e Event) Channel() (asterisk.Channel, error) {
	return asterisk.ParseChannel(e["Channel"])
}

// Bool decodes an Asterisk boolean header. Missing headers are unset.
func (e Event) Bool(key string) (*bool, error) {
	return asterisk.ParseBool(e[key])
}

// Action is an AMI request.
type Action map[string]string

// String renders the action on the wire. Action comes first, the other
// headers follow in name order.
func (a Action) String() string {
	var b strings.Builder

	if name, ok := a["Action"]; ok {
		b.WriteString("Action: " + name + "\r\n")
	}

	keys := make([]string, 0, len(a))
	for k := range a {
		if k != "Action" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		b.WriteString(k + ": " + a[k] + "\r\n")
	}
	b.WriteString("\r\n")
	return b.String()
}

// readEvent reads headers up to the blank line that ends a message.
func readEvent(r *bufio.Reader) (Event, error) {
	event := make(Event)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF && len(event) > 0 {
				return event, nil
			}
			return event, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			return event, nil
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			event[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
}
