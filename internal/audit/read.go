package audit

import (
	"context"
	"fmt"
	"strings"
)

// Filter narrows a ReadEvents query. Zero fields are ignored.
type Filter struct {
	// Child restricts to events for one linked address.
	Child string

	// Kind restricts to one event kind.
	Kind string

	// Limit caps the number of returned rows. 0 means no cap.
	Limit int
}

// ReadEvents returns stored events matching the filter, ordered by seq.
func (s *Store) ReadEvents(ctx context.Context, f Filter) ([]EventRecord, error) {
	query := `
		SELECT hash, kind, child, parent, access_point_id, record_id, payload, token, seq
		FROM events
	`
	var conds []string
	var args []any
	if f.Child != "" {
		conds = append(conds, "child = ?")
		args = append(args, f.Child)
	}
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, f.Kind)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY seq ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var rec EventRecord
		if err := rows.Scan(
			&rec.Hash,
			&rec.Kind,
			&rec.Child,
			&rec.Parent,
			&rec.AccessPointID,
			&rec.RecordID,
			&rec.Payload,
			&rec.Token,
			&rec.Seq,
		); err != nil {
			return nil, fmt.Errorf("read events: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	return out, nil
}
