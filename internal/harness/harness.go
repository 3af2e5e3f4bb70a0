package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/tether/internal/audit"
	"github.com/roach88/tether/internal/delegation"
	"github.com/roach88/tether/internal/ledger"
	"github.com/roach88/tether/internal/policy"
	"github.com/roach88/tether/internal/testutil"
)

// storedValue is a typed stand-in installed into a child's storage so that
// validators have something real to dereference.
type storedValue struct {
	typeID ledger.TypeID
}

// LedgerType implements ledger.Typed.
func (v storedValue) LedgerType() ledger.TypeID {
	return v.typeID
}

// Harness executes one scenario against a fresh ledger, registry, and
// in-memory audit store.
//
// Every run is deterministic: object ids come from a resettable sequential
// allocator and audit correlation tokens from a fixed "tok-N" sequence, so
// the same scenario always produces the same trace and the same audit log.
type Harness struct {
	ledger   *ledger.Ledger
	store    *audit.Store
	recorder *audit.Recorder
	admin    *delegation.Admin
	registry *delegation.Registry
	policy   *policy.ScopePolicy
	logger   *slog.Logger

	// handles tracks the live account handle per child. break_handle
	// revokes the tracked handle; update_capability replaces it.
	handles map[ledger.Address]ledger.AccountHandle

	// installs remembers each child's installed values, for deriving a
	// default grant set when the scenario names no policy file.
	installs map[ledger.Address][]InstallSpec

	// suffixes remembers where each child's access point was installed.
	suffixes map[ledger.Address]string

	// parked holds records minted or withdrawn but not (re)deposited.
	parked map[ledger.Address]*delegation.Record
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory ledger and audit store for
// isolation. Execution flow:
//
//  1. Open an in-memory audit store and wire a recorder with deterministic
//     tokens as the event emitter
//  2. Create the parent account, admin, and registry
//  3. Create the child accounts, install their typed values, and issue an
//     account handle per child
//  4. Execute the steps, validating each against its expect clause
//  5. Evaluate the assertions and read the audit log back into the result
func Run(s *Scenario) (*Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	st, err := audit.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("harness: open audit store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := audit.NewRecorder(st, testutil.NewSequenceTokens("tok"), logger)
	l := ledger.New(ledger.Config{IDs: testutil.NewResettableIDs()})

	recorder.Emit(delegation.Event{Kind: delegation.EventContractInitialized})

	parentAddr := ledger.Address(s.Parent)
	if s.Parent == "" {
		parentAddr = "0x01"
	}
	if _, err := l.CreateAccount(parentAddr); err != nil {
		return nil, fmt.Errorf("harness: create parent: %w", err)
	}

	h := &Harness{
		ledger:   l,
		store:    st,
		recorder: recorder,
		admin:    delegation.NewAdmin(l, parentAddr, recorder),
		logger:   logger,
		handles:  make(map[ledger.Address]ledger.AccountHandle),
		installs: make(map[ledger.Address][]InstallSpec),
		suffixes: make(map[ledger.Address]string),
		parked:   make(map[ledger.Address]*delegation.Record),
	}
	h.registry = delegation.NewRegistry(parentAddr,
		delegation.WithEmitter(recorder),
		delegation.WithLogger(logger),
	)

	if err := h.setupChildren(s.Children); err != nil {
		return nil, err
	}

	if p := s.policyPath(); p != "" {
		pol, err := policy.LoadFile(p)
		if err != nil {
			return nil, fmt.Errorf("harness: %w", err)
		}
		h.policy = pol
	}

	result := NewResult()
	for i, step := range s.Steps {
		h.executeStep(i, step, result)
	}

	ctx := context.Background()
	EvaluateAssertions(result, s.Assertions, &AssertionContext{
		Registry: h.registry,
		Store:    st,
		Ctx:      ctx,
	})

	events, err := st.ReadEvents(ctx, audit.Filter{})
	if err != nil {
		return nil, fmt.Errorf("harness: read audit log: %w", err)
	}
	result.Events = events

	return result, nil
}

// setupChildren creates each child account, saves its installed values, and
// issues its account handle.
func (h *Harness) setupChildren(children []ChildSpec) error {
	for _, c := range children {
		addr := ledger.Address(c.Address)
		acct, err := h.ledger.CreateAccount(addr)
		if err != nil {
			return fmt.Errorf("harness: create child: %w", err)
		}
		for _, inst := range c.Install {
			path, err := ledger.NewPath(ledger.DomainStorage, inst.Path)
			if err != nil {
				return fmt.Errorf("harness: child %s: %w", c.Address, err)
			}
			if err := acct.Save(path, storedValue{typeID: ledger.TypeID(inst.Type)}); err != nil {
				return fmt.Errorf("harness: child %s: %w", c.Address, err)
			}
		}
		handle, err := h.ledger.IssueAccountHandle(addr)
		if err != nil {
			return fmt.Errorf("harness: child %s: %w", c.Address, err)
		}
		h.handles[addr] = handle
		h.installs[addr] = c.Install
	}
	return nil
}

// executeStep applies one step, records its outcome in the trace, and
// validates it against the expect clause.
func (h *Harness) executeStep(i int, step Step, result *Result) {
	err := h.applyStep(step)

	outcome := "ok"
	if err != nil {
		if code := delegation.CodeOf(err); code != "" {
			outcome = string(code)
		} else {
			outcome = "error"
		}
	}
	result.Trace = append(result.Trace, StepOutcome{
		Op:      step.Op,
		Child:   step.Child,
		Outcome: outcome,
	})

	switch {
	case step.Expect == nil && err != nil:
		result.AddError(fmt.Sprintf("step %d (%s %s): unexpected error: %v",
			i, step.Op, step.Child, err))
	case step.Expect != nil && err == nil:
		result.AddError(fmt.Sprintf("step %d (%s %s): expected error %s, got success",
			i, step.Op, step.Child, step.Expect.Error))
	case step.Expect != nil && string(delegation.CodeOf(err)) != step.Expect.Error:
		result.AddError(fmt.Sprintf("step %d (%s %s): expected error %s, got: %v",
			i, step.Op, step.Child, step.Expect.Error, err))
	}
}

// applyStep dispatches a step to the operation it names.
func (h *Harness) applyStep(step Step) error {
	child := ledger.Address(step.Child)

	switch step.Op {
	case "link":
		return h.stepLink(child, step.Suffix)
	case "unlink":
		return h.registry.RemoveLinkedAccount(child)
	case "add_pending":
		h.registry.AddPendingDeposit(child)
		return nil
	case "remove_pending":
		h.registry.RemovePendingDeposit(child)
		return nil
	case "withdraw":
		rec, err := h.registry.WithdrawByAddress(child)
		if err != nil {
			return err
		}
		h.parked[child] = rec
		return nil
	case "deposit":
		rec, ok := h.parked[child]
		if !ok {
			return fmt.Errorf("harness: no parked record for %s", child)
		}
		if err := h.registry.Deposit(rec); err != nil {
			return err
		}
		delete(h.parked, child)
		return nil
	case "mint":
		return h.stepMint(child, step.Suffix)
	case "unrestrict":
		return h.stepUnrestrict(child)
	case "break_handle":
		handle, ok := h.handles[child]
		if !ok {
			return fmt.Errorf("harness: unknown child %s", child)
		}
		if !h.ledger.Unlink(handle.ID()) {
			return fmt.Errorf("harness: handle for %s already revoked", child)
		}
		return nil
	case "update_capability":
		newHandle, err := h.ledger.IssueAccountHandle(child)
		if err != nil {
			return err
		}
		if err := h.registry.UpdateLinkedAccountCapability(child, newHandle); err != nil {
			return err
		}
		h.handles[child] = newHandle
		return nil
	default:
		return fmt.Errorf("harness: unknown op %q", step.Op)
	}
}

// stepLink runs the composite AddLinkedAccount operation for child.
func (h *Harness) stepLink(child ledger.Address, suffix string) error {
	handle, ok := h.handles[child]
	if !ok {
		return fmt.Errorf("harness: unknown child %s", child)
	}
	if suffix == "" {
		suffix = "main"
	}
	allowed, validator, metadata, err := h.grantsFor(child)
	if err != nil {
		return err
	}

	_, err = h.registry.AddLinkedAccount(h.ledger, h.admin, delegation.LinkRequest{
		Handle:    handle,
		Suffix:    suffix,
		Allowed:   allowed,
		Validator: validator,
		Metadata:  metadata,
	})
	if err != nil {
		return err
	}
	h.suffixes[child] = suffix
	return nil
}

// stepMint installs an access point and mints a record for child without
// depositing it, so a later deposit step can exercise the admission gate.
func (h *Harness) stepMint(child ledger.Address, suffix string) error {
	handle, ok := h.handles[child]
	if !ok {
		return fmt.Errorf("harness: unknown child %s", child)
	}
	if suffix == "" {
		suffix = "main"
	}
	allowed, validator, metadata, err := h.grantsFor(child)
	if err != nil {
		return err
	}

	ap, err := h.admin.CreateAccessPoint(handle, allowed, validator, h.registry.Owner(), metadata)
	if err != nil {
		return err
	}
	storagePath, err := ledger.NewPath(ledger.DomainStorage, delegation.AccessPointIdentifier(suffix))
	if err != nil {
		return err
	}
	acct, ok := handle.Borrow()
	if !ok {
		return fmt.Errorf("harness: account handle for %s does not resolve", child)
	}
	if err := acct.Save(storagePath, ap); err != nil {
		return err
	}
	apCap, err := handle.IssueCapability(storagePath)
	if err != nil {
		return err
	}

	rec, err := delegation.MintRecord(h.ledger, apCap, handle, h.recorder)
	if err != nil {
		return err
	}
	h.parked[child] = rec
	h.suffixes[child] = suffix
	return nil
}

// stepUnrestrict loads child's installed access point and lifts its
// restriction through the admin.
func (h *Harness) stepUnrestrict(child ledger.Address) error {
	suffix, ok := h.suffixes[child]
	if !ok {
		return fmt.Errorf("harness: no access point installed for %s", child)
	}
	acct, ok := h.ledger.Account(child)
	if !ok {
		return fmt.Errorf("harness: unknown child %s", child)
	}
	path, err := ledger.NewPath(ledger.DomainStorage, delegation.AccessPointIdentifier(suffix))
	if err != nil {
		return err
	}
	v, ok := acct.Load(path)
	if !ok {
		return fmt.Errorf("harness: no access point at %s in %s", path, child)
	}
	ap, ok := v.(*delegation.AccessPoint)
	if !ok {
		return fmt.Errorf("harness: value at %s in %s is %T, not an access point", path, child, v)
	}
	return h.admin.Unrestrict(ap)
}

// grantsFor resolves the allowed map, validator, and metadata for a link or
// mint step: from the scenario's policy when one was loaded, otherwise by
// granting every value installed in child's storage.
func (h *Harness) grantsFor(child ledger.Address) (map[ledger.TypeID]ledger.Path, delegation.Validator, map[string]string, error) {
	if h.policy != nil {
		return h.policy.Allowed(), h.policy.BuildValidator(), h.policy.Metadata, nil
	}

	allowed := make(map[ledger.TypeID]ledger.Path, len(h.installs[child]))
	for _, inst := range h.installs[child] {
		path, err := ledger.NewPath(ledger.DomainStorage, inst.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("harness: child %s: %w", child, err)
		}
		allowed[ledger.TypeID(inst.Type)] = path
	}
	return allowed, nil, nil, nil
}
