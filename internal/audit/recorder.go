package audit

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roach88/tether/internal/canonical"
	"github.com/roach88/tether/internal/delegation"
)

// TokenSource generates audit correlation tokens.
// Implemented by UUIDv7Source (production) and testutil.FixedTokens (tests).
type TokenSource interface {
	Generate() string
}

// UUIDv7Source generates time-sortable UUIDv7 tokens.
//
// UUIDv7 embeds a timestamp in the most significant bits, making tokens
// sortable by creation time, which helps when reading the log back.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Source struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Source) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Recorder persists delegation events to a Store.
//
// It implements delegation.Emitter: each event is stamped with a monotonic
// seq and a correlation token, serialized to canonical JSON, content-hashed
// with domain separation, and appended. Emit never fails the emitting
// operation; a write error is logged and the event dropped.
type Recorder struct {
	store  *Store
	tokens TokenSource
	logger *slog.Logger
	seq    atomic.Int64
}

// NewRecorder creates a recorder writing to store.
// tokens defaults to UUIDv7Source; logger defaults to slog.Default().
func NewRecorder(store *Store, tokens TokenSource, logger *slog.Logger) *Recorder {
	if tokens == nil {
		tokens = UUIDv7Source{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, tokens: tokens, logger: logger}
}

// Emit implements delegation.Emitter.
func (r *Recorder) Emit(ev delegation.Event) {
	seq := r.seq.Add(1)
	token := r.tokens.Generate()

	payload := ev.Payload()
	payload["seq"] = seq
	payload["token"] = token

	data, err := canonical.Marshal(payload)
	if err != nil {
		r.logger.Error("audit: cannot serialize event", "kind", string(ev.Kind), "error", err)
		return
	}
	rec := EventRecord{
		Hash:          canonical.HashWithDomain(canonical.DomainEvent, data),
		Kind:          string(ev.Kind),
		Child:         string(ev.Child),
		Parent:        string(ev.Parent),
		AccessPointID: ev.AccessPointID,
		RecordID:      ev.RecordID,
		Payload:       string(data),
		Token:         token,
		Seq:           seq,
	}

	if err := r.store.WriteEvent(context.Background(), rec); err != nil {
		r.logger.Error("audit: cannot persist event", "kind", rec.Kind, "error", err)
	}
}
