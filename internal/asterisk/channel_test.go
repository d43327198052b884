package asterisk_test

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/require"

	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/asterisk"
)

func TestParseChannel(t *testing.T) {
	for _, tt := range []struct {
		source string
		want   asterisk.Channel
	}{
		{
			source: "LOCAL/2344534fgdfgdfg-4543611@from-queues",
			// the last '-' is the one inside "from-queues"
			want: asterisk.Channel{
				Protocol: asterisk.ProtocolLocal,
				Name:     "2344534fgdfgdfg-4543611",
				Suffix:   "queues",
				Context:  "from",
			},
		},
		{
			source: "PJSIP/out-datora-4543611@external",
			want: asterisk.Channel{
				Protocol: asterisk.ProtocolPJSIP,
				Name:     "out-datora",
				Suffix:   "4543611@external",
			},
		},
		{
			source: "SIP/1000",
			want:   asterisk.Channel{Protocol: asterisk.ProtocolSIP, Name: "1000"},
		},
		{
			source: "PJSIP/1000-00000012",
			want:   asterisk.Channel{Protocol: asterisk.ProtocolPJSIP, Name: "1000", Suffix: "00000012"},
		},
		{
			source: "IAX2/trunk@intl",
			want:   asterisk.Channel{Protocol: asterisk.ProtocolIAX2, Name: "trunk", Context: "intl"},
		},
		{
			// only the segment right after the first '@' is kept
			source: "Local/a@b@c",
			want:   asterisk.Channel{Protocol: asterisk.ProtocolLocal, Name: "a", Context: "b"},
		},
		{
			// segments after the second '/' are dropped
			source: "SIP/peer/extra-1",
			want:   asterisk.Channel{Protocol: asterisk.ProtocolSIP, Name: "peer"},
		},
		{
			source: "sip/",
			want:   asterisk.Channel{Protocol: asterisk.ProtocolSIP},
		},
		{
			source: "MESSAGE/ksip-",
			want:   asterisk.Channel{Protocol: asterisk.ProtocolMessage, Name: "ksip"},
		},
	} {
		t.Run(tt.source, func(t *testing.T) {
			got, err := asterisk.ParseChannel(tt.source)
			require.NoError(t, err)

			tt.want.ID = tt.source
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseChannel_NoTechnology(t *testing.T) {
	for _, source := range []string{"1000", "out-datora-4543611@external", " x ", "@"} {
		got, err := asterisk.ParseChannel(source)
		require.NoError(t, err)
		require.Equal(t, asterisk.Channel{ID: source}, got)
	}
}

func TestParseChannel_InvalidArgument(t *testing.T) {
	for _, source := range []string{"", " ", "\t\n"} {
		_, err := asterisk.ParseChannel(source)
		require.ErrorIs(t, err, asterisk.ErrInvalidArgument)
		require.False(t, errors.Is(err, asterisk.ErrUnrecognizedProtocol))
	}
}

func TestParseChannel_UnrecognizedProtocol(t *testing.T) {
	for _, source := range []string{"XYZ/foo", "/foo", "DAHDI/1-1"} {
		got, err := asterisk.ParseChannel(source)
		require.ErrorIs(t, err, asterisk.ErrUnrecognizedProtocol, "source %q", source)
		require.Equal(t, asterisk.Channel{}, got)
	}
}

func TestChannelFromPeer(t *testing.T) {
	for _, p := range asterisk.Protocols() {
		ch := asterisk.ChannelFromPeer(asterisk.PeerInfo{Protocol: p, Name: "trunk01"})
		require.Equal(t, p.String()+"/trunk01", ch.ID)
		require.Equal(t, p, ch.Protocol)
		require.Equal(t, "trunk01", ch.Name)
		require.Empty(t, ch.Suffix)
		require.Empty(t, ch.Context)

		parsed, err := asterisk.ParseChannel(ch.ID)
		require.NoError(t, err)
		require.Equal(t, ch, parsed)
		require.Equal(t, ch.Peer(), parsed.Peer())
	}
}

func TestChannelTitle(t *testing.T) {
	for _, tt := range []struct {
		channel string
		want    string
	}{
		{"LOCAL/2344534fgdfgdfg-4543611@from-queues", "2344534fgdfgdfg"},
		{"PJSIP/out-datora-4543611@external", "out-datora"},
		{"", ""},
		{"   ", ""},
		{"SIP/1000", "1000"},
		{"1000-0001", "1000"},
		{"plain", "plain"},
		{"a-b@x/y-z", "a"},
		{"SIP/a/b-c", "a"},
	} {
		require.Equal(t, tt.want, asterisk.ChannelTitle(tt.channel), "channel %q", tt.channel)
	}

	ch, err := asterisk.ParseChannel("PJSIP/out-datora-4543611@external")
	require.NoError(t, err)
	require.Equal(t, "out-datora", ch.Title())
	require.Equal(t, "PJSIP/out-datora-4543611@external", ch.String())
}
