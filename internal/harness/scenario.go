package harness

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios validate delegation behavior by executing a sequence of
// operations and asserting on the resulting registry state and audit log.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Parent is the parent account's address. Defaults to "0x01".
	Parent string `yaml:"parent,omitempty"`

	// Children lists the child accounts to create, with the typed values
	// installed into their storage before the flow runs.
	Children []ChildSpec `yaml:"children"`

	// PolicyFile is the path to a scope-policy CUE file, relative to the
	// scenario file. If empty, link steps use a policy granting every
	// installed value of the step's child.
	PolicyFile string `yaml:"policy,omitempty"`

	// Steps is the operation flow. Each step names an op, a child address,
	// and optionally an expected failure code.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// dir is the directory the scenario was loaded from, for resolving
	// PolicyFile. Empty for inline scenarios.
	dir string
}

// ChildSpec describes one child account.
type ChildSpec struct {
	// Address is the child account's address.
	Address string `yaml:"address"`

	// Install lists typed values placed in the child's storage.
	Install []InstallSpec `yaml:"install,omitempty"`
}

// InstallSpec is one typed value saved to a child's storage before the
// flow runs.
type InstallSpec struct {
	// Type is the ledger type id of the installed value.
	Type string `yaml:"type"`

	// Path is the storage path identifier (storage domain).
	Path string `yaml:"path"`
}

// Step is one operation in the flow.
//
// Supported ops:
//   - "link":              composite AddLinkedAccount (uses the policy)
//   - "unlink":            RemoveLinkedAccount
//   - "add_pending":       AddPendingDeposit
//   - "remove_pending":    RemovePendingDeposit
//   - "withdraw":          WithdrawByAddress; the record is parked and may
//     be re-deposited by a later "deposit" step
//   - "deposit":           Deposit of the parked record for the child
//   - "mint":              mint a record for the child without depositing;
//     parks it for a later "deposit"
//   - "unrestrict":        admin lifts restriction on the child's access point
//   - "break_handle":      unlink the record's account handle (external
//     invalidation)
//   - "update_capability": repair the link with a fresh account handle
type Step struct {
	// Op names the operation.
	Op string `yaml:"op"`

	// Child is the target child address.
	Child string `yaml:"child,omitempty"`

	// Suffix derives the access point install paths for "link" and "mint".
	Suffix string `yaml:"suffix,omitempty"`

	// Expect specifies the expected failure. If nil, the step must
	// succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies an expected step failure.
type ExpectClause struct {
	// Error is the expected delegation error code, e.g. "NOT_ADMITTED".
	Error string `yaml:"error"`
}

// Assertion validates final registry or audit state.
//
// Supported types:
//   - "link_active":  IsLinkActive(child) equals Active
//   - "linked_count": number of linked addresses equals Count
//   - "allowed_types": declared types for Child equal Types
//   - "event_count":  audit log holds Count events of Kind
type Assertion struct {
	Type   string   `yaml:"type"`
	Child  string   `yaml:"child,omitempty"`
	Active bool     `yaml:"active,omitempty"`
	Count  int      `yaml:"count,omitempty"`
	Kind   string   `yaml:"kind,omitempty"`
	Types  []string `yaml:"types,omitempty"`
}

// LoadScenario reads and validates a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", path, err)
	}
	s.dir = filepath.Dir(path)

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks structural requirements before execution.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	for i, step := range s.Steps {
		if !validOps[step.Op] {
			return fmt.Errorf("step %d: unknown op %q", i, step.Op)
		}
		if step.Child == "" {
			return fmt.Errorf("step %d: child is required", i)
		}
	}
	for i, a := range s.Assertions {
		if !validAssertions[a.Type] {
			return fmt.Errorf("assertion %d: unknown type %q", i, a.Type)
		}
	}
	return nil
}

var validOps = map[string]bool{
	"link":              true,
	"unlink":            true,
	"add_pending":       true,
	"remove_pending":    true,
	"withdraw":          true,
	"deposit":           true,
	"mint":              true,
	"unrestrict":        true,
	"break_handle":      true,
	"update_capability": true,
}

var validAssertions = map[string]bool{
	"link_active":   true,
	"linked_count":  true,
	"allowed_types": true,
	"event_count":   true,
}

// policyPath resolves the scenario's policy file, if any.
func (s *Scenario) policyPath() string {
	if s.PolicyFile == "" {
		return ""
	}
	if filepath.IsAbs(s.PolicyFile) || s.dir == "" {
		return s.PolicyFile
	}
	return filepath.Join(s.dir, s.PolicyFile)
}
