package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/emsync/internal/config"
	"github.com/roach88/emsync/internal/harness"
)

// FileError is one file that failed validation.
type FileError struct {
	File    string `json:"file"`
	Kind    string `json:"kind"` // "config" or "scenario"
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool        `json:"valid"`
	Checked []string    `json:"checked"`
	Errors  []FileError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [scenario-file...]",
		Short: "Validate the config file and scenario files",
		Long: `Validate the config file against its schema and check scenario files.

The config file is the one named by --config, or emsync.yaml when it
exists. Scenario files are parsed strictly and every step and assertion
is checked, without running anything.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, scenarios []string) error {
	out := formatter(opts)
	result := ValidationResult{Valid: true, Checked: []string{}}

	path := opts.Config
	if path == "" {
		path = config.DefaultPath
	}
	out.VerboseLog("Validating config %s", path)
	_, err := config.Load(path)
	switch {
	case err != nil && opts.Config == "" && errors.Is(err, fs.ErrNotExist):
		out.VerboseLog("No %s, defaults apply", path)
	case err != nil:
		result.Checked = append(result.Checked, path)
		result.Errors = append(result.Errors, FileError{File: path, Kind: "config", Message: err.Error()})
	default:
		result.Checked = append(result.Checked, path)
	}

	for _, file := range scenarios {
		if _, err := os.Stat(file); err != nil {
			return WrapExitError(ExitCommandError, "cannot read scenario file", err)
		}
		out.VerboseLog("Validating scenario %s", file)
		result.Checked = append(result.Checked, file)
		if _, err := harness.LoadScenario(file); err != nil {
			result.Errors = append(result.Errors, FileError{File: file, Kind: "scenario", Message: err.Error()})
		}
	}

	if len(result.Errors) > 0 {
		result.Valid = false
		return outputValidationErrors(out, result)
	}
	return outputValidateSuccess(out, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	if len(result.Checked) == 0 {
		fmt.Fprintln(formatter.Writer, "✓ Nothing to validate, defaults apply")
		return nil
	}
	fmt.Fprintf(formatter.Writer, "✓ %d file(s) valid\n", len(result.Checked))
	return nil
}

// outputValidationErrors outputs every failed file.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	failed := &ExitError{
		Code:     ExitFailure,
		Message:  fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)),
		reported: true,
	}

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    "INVALID_FILE",
				Message: result.Errors[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return failed
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range result.Errors {
		fmt.Fprintf(formatter.Writer, "%s (%s)\n  %s\n\n", e.File, e.Kind, e.Message)
	}
	return failed
}
