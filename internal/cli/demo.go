package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/tether/internal/audit"
	"github.com/roach88/tether/internal/delegation"
	"github.com/roach88/tether/internal/ledger"
)

// DemoOptions holds flags for the demo command.
type DemoOptions struct {
	*RootOptions
	DBPath string // audit database path
}

// DemoSummary is the demo command's result payload.
type DemoSummary struct {
	Parent        string              `json:"parent"`
	Linked        []string            `json:"linked"`
	LinkActive    map[string]bool     `json:"link_active"`
	AllowedTypes  map[string][]string `json:"allowed_types"`
	EventsWritten int                 `json:"events_written"`
	Database      string              `json:"database"`
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DemoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run an end-to-end delegation flow",
		Long: `Run a canned delegation flow against an in-memory ledger.

Creates a parent and two child accounts, links both children through
the full install-mint-deposit pipeline, lifts the restriction on one,
and removes the other. Every state transition is appended to the audit
database, which can then be inspected with "tether audit".

Examples:
  tether demo
  tether demo --db ./tether.db
  tether demo --db :memory: --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "tether.db", "audit database path (:memory: for none persisted)")

	return cmd
}

func runDemo(opts *DemoOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	store, err := audit.Open(opts.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot open audit database", err)
	}
	defer store.Close()

	logWriter := io.Discard
	if opts.Verbose {
		logWriter = cmd.ErrOrStderr()
	}
	logger := slog.New(slog.NewTextHandler(logWriter, nil))
	recorder := audit.NewRecorder(store, nil, logger)

	summary, err := runDemoFlow(recorder, logger)
	if err != nil {
		return WrapExitError(ExitFailure, "demo flow failed", err)
	}

	count, err := store.Count(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot count audit events", err)
	}
	summary.EventsWritten = count
	summary.Database = opts.DBPath

	if opts.Format == "json" {
		return formatter.Success(summary)
	}
	return outputDemoText(formatter, summary)
}

// runDemoFlow executes the canned flow and reads the registry back.
func runDemoFlow(recorder *audit.Recorder, logger *slog.Logger) (*DemoSummary, error) {
	l := ledger.New(ledger.Config{IDs: ledger.NewSequentialIDs()})
	recorder.Emit(delegation.Event{Kind: delegation.EventContractInitialized})

	const (
		parent = ledger.Address("0x01")
		gamer  = ledger.Address("0x02")
		vault  = ledger.Address("0x03")
	)

	if _, err := l.CreateAccount(parent); err != nil {
		return nil, err
	}
	admin := delegation.NewAdmin(l, parent, recorder)
	registry := delegation.NewRegistry(parent,
		delegation.WithEmitter(recorder),
		delegation.WithLogger(logger),
	)

	children := []struct {
		addr   ledger.Address
		typeID ledger.TypeID
		path   string
		suffix string
	}{
		{gamer, "example/NFTCollection", "gameCollection", "game"},
		{vault, "example/TokenVault", "tokenVault", "vault"},
	}

	for _, c := range children {
		acct, err := l.CreateAccount(c.addr)
		if err != nil {
			return nil, err
		}
		storagePath := ledger.MustPath(ledger.DomainStorage, c.path)
		if err := acct.Save(storagePath, demoValue{typeID: c.typeID}); err != nil {
			return nil, err
		}
		handle, err := l.IssueAccountHandle(c.addr)
		if err != nil {
			return nil, err
		}

		_, err = registry.AddLinkedAccount(l, admin, delegation.LinkRequest{
			Handle:  handle,
			Suffix:  c.suffix,
			Allowed: map[ledger.TypeID]ledger.Path{c.typeID: storagePath},
			Metadata: map[string]string{
				"purpose": "demo",
			},
		})
		if err != nil {
			return nil, err
		}
	}

	// Lift the restriction on the first child, then remove the second.
	gamerAcct, _ := l.Account(gamer)
	apPath := ledger.MustPath(ledger.DomainStorage, delegation.AccessPointIdentifier("game"))
	if v, ok := gamerAcct.Load(apPath); ok {
		if ap, ok := v.(*delegation.AccessPoint); ok {
			if err := admin.Unrestrict(ap); err != nil {
				return nil, err
			}
		}
	}
	if err := registry.RemoveLinkedAccount(vault); err != nil {
		return nil, err
	}

	summary := &DemoSummary{
		Parent:       string(parent),
		LinkActive:   make(map[string]bool),
		AllowedTypes: make(map[string][]string),
	}
	for _, addr := range registry.LinkedAddresses() {
		summary.Linked = append(summary.Linked, string(addr))
		summary.LinkActive[string(addr)] = registry.IsLinkActive(addr)
		if types, ok := registry.AllowedTypes(addr); ok {
			names := make([]string, len(types))
			for i, t := range types {
				names[i] = string(t)
			}
			summary.AllowedTypes[string(addr)] = names
		}
	}
	return summary, nil
}

// demoValue is the typed value installed in the demo children's storage.
type demoValue struct {
	typeID ledger.TypeID
}

// LedgerType implements ledger.Typed.
func (v demoValue) LedgerType() ledger.TypeID {
	return v.typeID
}

// outputDemoText outputs the demo summary as text.
func outputDemoText(formatter *OutputFormatter, summary *DemoSummary) error {
	w := formatter.Writer
	fmt.Fprintf(w, "Parent: %s\n", summary.Parent)
	fmt.Fprintf(w, "Linked accounts: %d\n", len(summary.Linked))
	for _, addr := range summary.Linked {
		fmt.Fprintf(w, "  %s active=%t types=%v\n", addr, summary.LinkActive[addr], summary.AllowedTypes[addr])
	}
	fmt.Fprintf(w, "Audit events written: %d (%s)\n", summary.EventsWritten, summary.Database)
	return nil
}
