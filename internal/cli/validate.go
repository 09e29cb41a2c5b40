package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/seqgate/internal/harness"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// FileValidation is the validation result for one scenario file.
type FileValidation struct {
	File  string `json:"file"`
	Name  string `json:"name,omitempty"`
	Steps int    `json:"steps"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <scenario>...",
		Short: "Validate scenario files without running them",
		Long: `Check scenario files against the strict YAML decoder and the
embedded CUE schema. Nothing is executed.

Examples:
  seqgate validate ./scenarios/*.yaml
  seqgate validate ./scenarios/in_order.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, files []string, cmd *cobra.Command) error {
	results := make([]FileValidation, 0, len(files))
	invalid := 0
	for _, file := range files {
		res := FileValidation{File: file, Valid: true}
		scenario, err := harness.LoadScenario(file)
		if err != nil {
			res.Valid = false
			res.Error = err.Error()
			invalid++
		} else {
			res.Name = scenario.Name
			res.Steps = len(scenario.Steps)
		}
		results = append(results, res)
	}

	out := newFormatter(opts.RootOptions, cmd)
	if opts.Format == "json" {
		var cliErr *CLIError
		if invalid > 0 {
			cliErr = &CLIError{Code: "E_INVALID_SCENARIO", Message: fmt.Sprintf("%d invalid scenario file(s)", invalid)}
		}
		if err := out.JSON(results, cliErr); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, r := range results {
			if r.Valid {
				fmt.Fprintf(w, "✓ %s (%s, %d steps)\n", r.File, r.Name, r.Steps)
			} else {
				fmt.Fprintf(w, "✗ %s\n  %s\n", r.File, r.Error)
			}
		}
	}

	if invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d invalid scenario file(s)", invalid))
	}
	return nil
}
