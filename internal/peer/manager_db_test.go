package peer

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/asterisk"
	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/models"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		conn.Close()
	})
	return conn, mock
}

func TestLoad(t *testing.T) {
	conn, mock := newMockDB(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM peers")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "protocol", "context", "active", "created_at", "updated_at"}).
			AddRow(1, "trunk01", "PJSIP", "from-trunk", true, at, at).
			AddRow(2, "legacy", "H323", nil, true, at, at).
			AddRow(3, "q1", "LOCAL", nil, false, at, at))

	m := NewManager(conn)
	require.NoError(t, m.Initialize())

	peers := m.ListPeers(asterisk.ProtocolUnknown)
	require.Len(t, peers, 2)

	trunk, err := m.GetPeer("trunk01")
	require.NoError(t, err)
	require.Equal(t, 1, trunk.ID)
	require.Equal(t, asterisk.ProtocolPJSIP, trunk.Protocol)
	require.Equal(t, "from-trunk", trunk.Context)
	require.True(t, trunk.Active)
	require.Equal(t, at, trunk.CreatedAt)

	q1, err := m.GetPeer("q1")
	require.NoError(t, err)
	require.Empty(t, q1.Context)
	require.False(t, q1.Active)

	// unknown protocols are skipped
	_, err = m.GetPeer("legacy")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAddPeer_Database(t *testing.T) {
	conn, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO peers")).
		WithArgs("trunk01", "PJSIP", "from-trunk", true).
		WillReturnResult(sqlmock.NewResult(7, 1))

	m := NewManager(conn)
	p := &models.Peer{Name: "trunk01", Protocol: asterisk.ProtocolPJSIP, Context: "from-trunk", Active: true}
	require.NoError(t, m.AddPeer(p))
	require.Equal(t, 7, p.ID)

	_, err := m.GetPeer("trunk01")
	require.NoError(t, err)
}

func TestAddPeer_DatabaseError(t *testing.T) {
	conn, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO peers")).
		WillReturnError(sqlmock.ErrCancelled)

	m := NewManager(conn)
	err := m.AddPeer(&models.Peer{Name: "trunk01", Protocol: asterisk.ProtocolSIP})
	require.ErrorIs(t, err, sqlmock.ErrCancelled)

	_, err = m.GetPeer("trunk01")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeletePeer_Database(t *testing.T) {
	conn, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO peers")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM peers WHERE name = ?")).
		WithArgs("trunk01").
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := NewManager(conn)
	require.NoError(t, m.AddPeer(&models.Peer{Name: "trunk01", Protocol: asterisk.ProtocolSIP, Active: true}))
	require.NoError(t, m.DeletePeer("trunk01"))
	require.Empty(t, m.ListPeers(asterisk.ProtocolUnknown))
}
