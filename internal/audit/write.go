package audit

import (
	"context"
	"fmt"
)

// EventRecord is one stored audit event.
//
// Hash is the content-addressed identity: the domain-separated SHA-256 of
// the canonical JSON payload. Payload carries the full event (including seq
// and token); the remaining columns are denormalized for filtering.
type EventRecord struct {
	Hash          string
	Kind          string
	Child         string
	Parent        string
	AccessPointID uint64
	RecordID      uint64
	Payload       string
	Token         string
	Seq           int64
}

// WriteEvent inserts an event record.
// Uses ON CONFLICT(hash) DO NOTHING for idempotency - replayed events are
// silently ignored. Other constraint violations still return errors.
func (s *Store) WriteEvent(ctx context.Context, rec EventRecord) error {
	if rec.Hash == "" {
		return fmt.Errorf("write event: empty hash")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(hash, kind, child, parent, access_point_id, record_id, payload, token, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`,
		rec.Hash,
		rec.Kind,
		rec.Child,
		rec.Parent,
		rec.AccessPointID,
		rec.RecordID,
		rec.Payload,
		rec.Token,
		rec.Seq,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}
