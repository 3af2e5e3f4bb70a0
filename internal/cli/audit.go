package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tether/internal/audit"
)

// AuditOptions holds flags for the audit command.
type AuditOptions struct {
	*RootOptions
	Child string
	Kind  string
	Limit int
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit <database>",
		Short: "Query the audit log",
		Long: `Query the append-only audit log written by the delegation engine.

Events are returned in seq order. Each entry carries its canonical
payload, content hash, and correlation token.

Examples:
  tether audit tether.db
  tether audit tether.db --child 0x02
  tether audit tether.db --kind AddedLinkedAccount --limit 10
  tether audit tether.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Child, "child", "", "filter by linked account address")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter by event kind")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of events (0 = no cap)")

	return cmd
}

func runAudit(opts *AuditOptions, dbPath string, cmd *cobra.Command) error {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", dbPath))
	}

	store, err := audit.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot open audit database", err)
	}
	defer store.Close()

	events, err := store.ReadEvents(cmd.Context(), audit.Filter{
		Child: opts.Child,
		Kind:  opts.Kind,
		Limit: opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot read events", err)
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: events})
	}

	w := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintln(w, "No events.")
		return nil
	}
	for _, ev := range events {
		fmt.Fprintf(w, "%4d  %-34s", ev.Seq, ev.Kind)
		if ev.Child != "" {
			fmt.Fprintf(w, "  child=%s", ev.Child)
		}
		if ev.RecordID != 0 {
			fmt.Fprintf(w, "  record=%d", ev.RecordID)
		}
		fmt.Fprintln(w)
		if opts.Verbose {
			fmt.Fprintf(w, "      token=%s hash=%s\n", ev.Token, ev.Hash)
			fmt.Fprintf(w, "      %s\n", ev.Payload)
		}
	}
	fmt.Fprintf(w, "\n%d event(s)\n", len(events))
	return nil
}
