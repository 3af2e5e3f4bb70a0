package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tether/internal/canonical"
)

// TraceSnapshot captures one scenario execution for golden comparison.
// Serialized as canonical JSON so the comparison is byte-deterministic.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []StepOutcome
	Events       []EventSummary
}

// EventSummary is the golden-file view of one audit log entry. Content
// hashes are excluded: they are covered by the audit package's own tests,
// and golden files stay human-auditable without them.
type EventSummary struct {
	Kind          string
	Seq           int64
	Token         string
	Child         string
	Parent        string
	AccessPointID uint64
	RecordID      uint64
}

// toCanonicalMap renders the snapshot as a plain map for canonical.Marshal.
// Zero-valued event fields are omitted, mirroring Event.Payload.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, step := range s.Trace {
		trace[i] = map[string]any{
			"op":      step.Op,
			"child":   step.Child,
			"outcome": step.Outcome,
		}
	}

	events := make([]any, len(s.Events))
	for i, ev := range s.Events {
		m := map[string]any{
			"kind":  ev.Kind,
			"seq":   ev.Seq,
			"token": ev.Token,
		}
		if ev.Child != "" {
			m["child"] = ev.Child
		}
		if ev.Parent != "" {
			m["parent"] = ev.Parent
		}
		if ev.AccessPointID != 0 {
			m["access_point_id"] = ev.AccessPointID
		}
		if ev.RecordID != 0 {
			m["record_id"] = ev.RecordID
		}
		events[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
		"events":        events,
	}
}

// SnapshotOf builds a snapshot from a finished run.
func SnapshotOf(name string, result *Result) TraceSnapshot {
	s := TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		Events:       make([]EventSummary, len(result.Events)),
	}
	for i, rec := range result.Events {
		s.Events[i] = EventSummary{
			Kind:          rec.Kind,
			Seq:           rec.Seq,
			Token:         rec.Token,
			Child:         rec.Child,
			Parent:        rec.Parent,
			AccessPointID: rec.AccessPointID,
			RecordID:      rec.RecordID,
		}
	}
	return s
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return canonical.Marshal(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the resulting trace and
// audit log against a golden file at testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	snapshot := SnapshotOf(scenario.Name, result)
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return result, nil
}
