package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario("testdata/pending_gate.yaml")
	require.NoError(t, err)

	assert.Equal(t, "pending_gate", s.Name)
	require.Len(t, s.Children, 1)
	assert.Equal(t, "0x02", s.Children[0].Address)
	require.Len(t, s.Steps, 4)
	require.NotNil(t, s.Steps[1].Expect)
	assert.Equal(t, "NOT_ADMITTED", s.Steps[1].Expect.Error)
}

func TestLoadScenario_Missing(t *testing.T) {
	_, err := LoadScenario("testdata/does_not_exist.yaml")
	require.Error(t, err)
}

func TestScenarioValidate(t *testing.T) {
	valid := func() Scenario {
		return Scenario{
			Name:  "ok",
			Steps: []Step{{Op: "link", Child: "0x02"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr string
	}{
		{
			name:    "valid",
			mutate:  func(s *Scenario) {},
			wantErr: "",
		},
		{
			name:    "missing name",
			mutate:  func(s *Scenario) { s.Name = "" },
			wantErr: "name is required",
		},
		{
			name:    "no steps",
			mutate:  func(s *Scenario) { s.Steps = nil },
			wantErr: "at least one step",
		},
		{
			name: "unknown op",
			mutate: func(s *Scenario) {
				s.Steps = []Step{{Op: "teleport", Child: "0x02"}}
			},
			wantErr: `unknown op "teleport"`,
		},
		{
			name: "step without child",
			mutate: func(s *Scenario) {
				s.Steps = []Step{{Op: "link"}}
			},
			wantErr: "child is required",
		},
		{
			name: "unknown assertion",
			mutate: func(s *Scenario) {
				s.Assertions = []Assertion{{Type: "vibes"}}
			},
			wantErr: `unknown type "vibes"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
