package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/tether/internal/policy"
)

// PolicyIssue is one problem found in a scope-policy document.
type PolicyIssue struct {
	File    string `json:"file"`
	Field   string `json:"field,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results for a set of policy files.
type ValidationResult struct {
	Valid    bool          `json:"valid"`
	Policies []string      `json:"policies,omitempty"`
	Issues   []PolicyIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <policy-file-or-dir>",
		Short: "Validate scope-policy documents",
		Long: `Validate CUE scope-policy documents without linking anything.

Compiles each policy, checking validator configuration, grant types,
and path identifiers. Reports source positions for compile errors.

Exit codes:
  0 - All policies valid
  1 - One or more policies invalid
  2 - Command error (path not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	files, err := findPolicyFiles(path)
	if err != nil {
		_ = formatter.Error("E_PATH", err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot read policies", err)
	}
	if len(files) == 0 {
		_ = formatter.Error("E_PATH", fmt.Sprintf("no .cue files under %s", path), nil)
		return NewExitError(ExitCommandError, "no policy files found")
	}

	result := ValidationResult{Valid: true}
	for _, file := range files {
		formatter.VerboseLog("Validating policy: %s", file)
		pol, err := policy.LoadFile(file)
		if err != nil {
			result.Valid = false
			result.Issues = append(result.Issues, issueFrom(file, err))
			continue
		}
		result.Policies = append(result.Policies, pol.Name)
	}

	if !result.Valid {
		return outputValidationIssues(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// findPolicyFiles resolves a path to the .cue files under it.
func findPolicyFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(p) == ".cue" {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

// issueFrom converts a policy load error into a PolicyIssue, surfacing the
// CUE source position when the error carries one.
func issueFrom(file string, err error) PolicyIssue {
	var cerr *policy.CompileError
	if errors.As(err, &cerr) {
		issue := PolicyIssue{
			File:    file,
			Field:   cerr.Field,
			Message: cerr.Message,
		}
		if cerr.Pos.IsValid() {
			issue.Line = cerr.Pos.Line()
		}
		return issue
	}
	return PolicyIssue{File: file, Message: err.Error()}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %d policy file(s) valid\n", len(result.Policies))
	for _, name := range result.Policies {
		fmt.Fprintf(formatter.Writer, "  %s\n", name)
	}
	return nil
}

// outputValidationIssues outputs validation failures.
func outputValidationIssues(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    "E_POLICY",
				Message: fmt.Sprintf("%d policy issue(s)", len(result.Issues)),
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(result.Issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range result.Issues {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", issue.File, issue.Line)
		} else {
			fmt.Fprintf(formatter.Writer, "%s\n", issue.File)
		}
		if issue.Field != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Field, issue.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s\n\n", issue.Message)
		}
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(result.Issues)))
}
