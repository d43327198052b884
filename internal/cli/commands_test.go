package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/asterisk"
	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/models"
	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/peer"
)

type memoryStore struct {
	records []models.ChannelRecord
}

func (s *memoryStore) Record(ch asterisk.Channel, origin string) error {
	s.records = append(s.records, *models.NewChannelRecord(ch, origin))
	return nil
}

func (s *memoryStore) Recent(limit int) ([]models.ChannelRecord, error) {
	if limit < len(s.records) {
		return s.records[:limit], nil
	}
	return s.records, nil
}

func (s *memoryStore) ProtocolCounts() (map[asterisk.Protocol]int, error) {
	counts := make(map[asterisk.Protocol]int)
	for _, r := range s.records {
		counts[r.Protocol]++
	}
	return counts, nil
}

func run(t *testing.T, pm *peer.Manager, store ChannelStore, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	if pm == nil {
		pm = peer.NewManager(nil)
	}
	root := InitCLI(pm, store)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParse(t *testing.T) {
	out, err := run(t, nil, nil, "parse", "PJSIP/out-datora-4543611@external", "SIP/1000@default")
	require.NoError(t, err)
	require.Contains(t, out, "out-datora")
	require.Contains(t, out, "4543611@external")
	require.Contains(t, out, "default")
}

func TestParse_Save(t *testing.T) {
	store := &memoryStore{}
	_, err := run(t, nil, store, "parse", "--save", "LOCAL/100@queue-0001;1")
	require.NoError(t, err)
	require.Len(t, store.records, 1)
	require.Equal(t, "cli", store.records[0].Origin)

	_, err = run(t, nil, nil, "parse", "--save", "SIP/1000")
	require.ErrorIs(t, err, errNoDatabase)
}

func TestParse_Invalid(t *testing.T) {
	out, err := run(t, nil, nil, "parse", "XYZ/foo", "SIP/1000")
	require.Error(t, err)
	require.Contains(t, out, "unrecognized_protocol")
	require.Contains(t, out, "1000")
}

func TestProtocol(t *testing.T) {
	out, err := run(t, nil, nil, "protocol", "pjsip", "iax2")
	require.NoError(t, err)
	require.Contains(t, out, `"pjsip" => PJSIP`)
	require.Contains(t, out, `"iax2" => IAX2`)

	out, err = run(t, nil, nil, "protocol", "h323")
	require.ErrorIs(t, err, asterisk.ErrUnrecognizedProtocol)
	require.Contains(t, out, `"h323" is not a known protocol`)
}

func TestBool(t *testing.T) {
	out, err := run(t, nil, nil, "bool", "On", "non", "null")
	require.NoError(t, err)
	require.Contains(t, out, "true")
	require.Contains(t, out, "false")
	require.Contains(t, out, "unset")

	_, err = run(t, nil, nil, "bool", "maybe")
	require.ErrorIs(t, err, asterisk.ErrUnrecognizedBoolean)
}

func TestTitle(t *testing.T) {
	out, err := run(t, nil, nil, "title", "LOCAL/2344534fgdfgdfg-4543611@from-queues")
	require.NoError(t, err)
	require.Equal(t, "LOCAL/2344534fgdfgdfg-4543611@from-queues\t2344534fgdfgdfg\n", out)
}

func TestPeerCommands(t *testing.T) {
	pm := peer.NewManager(nil)

	out, err := run(t, pm, nil, "peer", "add", "trunk01", "--protocol", "pjsip", "--context", "from-trunk")
	require.NoError(t, err)
	require.Contains(t, out, "PJSIP/trunk01")

	_, err = run(t, pm, nil, "peer", "add", "bad", "--protocol", "dahdi")
	require.ErrorIs(t, err, asterisk.ErrUnrecognizedProtocol)

	out, err = run(t, pm, nil, "peer", "list", "--protocol", "PJSIP")
	require.NoError(t, err)
	require.Contains(t, out, "trunk01")
	require.Contains(t, out, "Total: 1 peers")

	out, err = run(t, pm, nil, "peer", "show", "trunk01")
	require.NoError(t, err)
	require.Contains(t, out, "Active: yes")

	out, err = run(t, pm, nil, "parse", "PJSIP/trunk01-00000001")
	require.NoError(t, err)
	require.Contains(t, out, "trunk01")

	_, err = run(t, pm, nil, "peer", "delete", "trunk01")
	require.NoError(t, err)

	out, err = run(t, pm, nil, "peer", "list")
	require.NoError(t, err)
	require.Contains(t, out, "No peers found")
}

func TestPeerChannel(t *testing.T) {
	pm := peer.NewManager(nil)
	require.NoError(t, pm.AddPeer(&models.Peer{Name: "trunk01", Protocol: asterisk.ProtocolIAX2, Active: true}))

	out, err := run(t, pm, nil, "peer", "channel", "trunk01")
	require.NoError(t, err)
	require.Equal(t, "Channel: IAX2/trunk01\nProtocol: IAX2\nName: trunk01\n", out)

	_, err = run(t, pm, nil, "peer", "channel", "missing")
	require.ErrorIs(t, err, peer.ErrNotFound)
}

func TestPeerImport(t *testing.T) {
	file := filepath.Join(t.TempDir(), "peers.yaml")
	require.NoError(t, os.WriteFile(file, []byte("- name: queue\n  protocol: local\n  active: true\n"), 0o644))

	pm := peer.NewManager(nil)
	out, err := run(t, pm, nil, "peer", "import", file)
	require.NoError(t, err)
	require.Contains(t, out, "Imported 1 peers")

	ch, err := pm.Channel("queue")
	require.NoError(t, err)
	require.Equal(t, "LOCAL/queue", ch.ID)
}

func TestHistoryAndStats(t *testing.T) {
	_, err := run(t, nil, nil, "history")
	require.ErrorIs(t, err, errNoDatabase)

	store := &memoryStore{}
	ch, err := asterisk.ParseChannel("IAX2/trunk-1")
	require.NoError(t, err)
	require.NoError(t, store.Record(ch, "ami"))
	store.records[0].CreatedAt = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	out, err := run(t, nil, store, "history", "--limit", "5")
	require.NoError(t, err)
	require.Contains(t, out, "2024-05-01 10:00:00")
	require.Contains(t, out, "IAX2/trunk-1")

	out, err = run(t, nil, store, "stats")
	require.NoError(t, err)
	require.Contains(t, out, "IAX2")
	require.Contains(t, out, "MESSAGE")
}
