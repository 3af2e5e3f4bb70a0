package delegation

import (
	"log/slog"
	"slices"

	"github.com/roach88/tether/internal/ledger"
)

// EventKind names a delegation state transition.
type EventKind string

const (
	EventContractInitialized EventKind = "ContractInitialized"
	EventCollectionCreated   EventKind = "CollectionCreated"
	EventAccessPointCreated  EventKind = "AccessPointCreated"
	EventMintedRecord        EventKind = "MintedRecord"
	EventAddedLinkedAccount  EventKind = "AddedLinkedAccount"
	EventUpdatedCapability   EventKind = "UpdatedCapabilityForLinkedAccount"
	EventRemovedLinkedAccount EventKind = "RemovedLinkedAccount"
)

// Event is one append-only audit record of a state transition.
// Events fire exactly once per transition and are never retried.
// Unused fields are left at their zero values.
type Event struct {
	Kind          EventKind
	AccessPointID uint64
	RecordID      uint64
	Child         ledger.Address
	Parent        ledger.Address
	Creator       ledger.Address
	AllowedTypes  []ledger.TypeID
}

// Payload renders the event as a plain map for canonical serialization.
// Zero-valued fields are omitted so payload hashes stay stable when
// unrelated fields are added.
func (e Event) Payload() map[string]any {
	p := map[string]any{
		"kind": string(e.Kind),
	}
	if e.AccessPointID != 0 {
		p["access_point_id"] = e.AccessPointID
	}
	if e.RecordID != 0 {
		p["record_id"] = e.RecordID
	}
	if e.Child != "" {
		p["child"] = string(e.Child)
	}
	if e.Parent != "" {
		p["parent"] = string(e.Parent)
	}
	if e.Creator != "" {
		p["creator"] = string(e.Creator)
	}
	if len(e.AllowedTypes) > 0 {
		types := make([]any, len(e.AllowedTypes))
		sorted := slices.Clone(e.AllowedTypes)
		slices.Sort(sorted)
		for i, t := range sorted {
			types[i] = string(t)
		}
		p["allowed_types"] = types
	}
	return p
}

// Emitter receives delegation events as they fire.
// Implementations must not mutate the event and must not fail the emitting
// operation; an emitter that cannot persist an event logs and drops it.
type Emitter interface {
	Emit(Event)
}

// NopEmitter discards all events.
type NopEmitter struct{}

// Emit implements Emitter.
func (NopEmitter) Emit(Event) {}

// SlogEmitter logs each event at info level.
type SlogEmitter struct {
	Logger *slog.Logger
}

// Emit implements Emitter.
func (e SlogEmitter) Emit(ev Event) {
	if e.Logger == nil {
		return
	}
	e.Logger.Info("delegation event",
		"kind", string(ev.Kind),
		"child", string(ev.Child),
		"parent", string(ev.Parent),
		"access_point_id", ev.AccessPointID,
		"record_id", ev.RecordID,
	)
}

// MultiEmitter fans an event out to several emitters in order.
type MultiEmitter []Emitter

// Emit implements Emitter.
func (m MultiEmitter) Emit(ev Event) {
	for _, e := range m {
		e.Emit(ev)
	}
}
