package db

import (
	"database/sql"

	"github.com/go-faster/errors"

	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/asterisk"
	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/models"
)

// ChannelStore persists normalized channels in channel_records.
type ChannelStore struct {
	db *sql.DB
}

func NewChannelStore(conn *sql.DB) *ChannelStore {
	return &ChannelStore{db: conn}
}

func (s *ChannelStore) Record(ch asterisk.Channel, origin string) error {
	rec := models.NewChannelRecord(ch, origin)

	query := `
        INSERT INTO channel_records (channel_id, protocol, name, suffix, context, title, origin, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := s.db.Exec(query, rec.ChannelID, rec.Protocol.String(), rec.Name, rec.Suffix,
		rec.Context, rec.Title, rec.Origin, rec.CreatedAt); err != nil {
		return errors.Wrapf(err, "record channel %s", ch.ID)
	}
	return nil
}

// Recent returns the latest records, newest first.
func (s *ChannelStore) Recent(limit int) ([]models.ChannelRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
        SELECT id, channel_id, protocol, name, suffix, context, title, origin, created_at
        FROM channel_records
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query channel records")
	}
	defer rows.Close()

	var records []models.ChannelRecord
	for rows.Next() {
		var rec models.ChannelRecord
		var protocol string
		var name, suffix, context, title, origin sql.NullString
		if err := rows.Scan(&rec.ID, &rec.ChannelID, &protocol, &name, &suffix, &context,
			&title, &origin, &rec.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan channel record")
		}
		if err := rec.Protocol.UnmarshalText([]byte(protocol)); err != nil {
			return nil, errors.Wrapf(err, "channel record %d", rec.ID)
		}
		rec.Name = name.String
		rec.Suffix = suffix.String
		rec.Context = context.String
		rec.Title = title.String
		rec.Origin = origin.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ProtocolCounts returns the number of recorded channels per protocol.
func (s *ChannelStore) ProtocolCounts() (map[asterisk.Protocol]int, error) {
	rows, err := s.db.Query(`SELECT protocol, COUNT(*) FROM channel_records GROUP BY protocol`)
	if err != nil {
		return nil, errors.Wrap(err, "count channel records")
	}
	defer rows.Close()

	counts := make(map[asterisk.Protocol]int)
	for rows.Next() {
		var (
			name  string
			count int
			p     asterisk.Protocol
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, errors.Wrap(err, "scan protocol count")
		}
		if err := p.UnmarshalText([]byte(name)); err != nil {
			return nil, err
		}
		counts[p] += count
	}
	return counts, rows.Err()
}
