package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/emsync/internal/export"
	"github.com/roach88/emsync/internal/project"
)

// ExportResult is the output of export.
type ExportResult struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EmployeesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <file.xlsx>",
		Short: "Write the visible employees to a spreadsheet",
		Long: `Write the employees visible to the signed-in user to an Excel
workbook, with office, post, payscale and bank names resolved. Accepts the
same filters as the employees command.

Example:
  emsync export employees.xlsx --status all`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pred, err := opts.predicate()
			if err != nil {
				return err
			}

			e, err := openEnv(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer e.Close()

			id, err := e.identity()
			if err != nil {
				return err
			}
			s := e.state.Snapshot()
			rows := project.Where(project.Employees(s, id), pred)
			if err := export.WriteFile(args[0], s, rows); err != nil {
				return WrapExitError(ExitFailure, "export failed", err)
			}
			e.logger.Info("exported employees", "path", args[0], "rows", len(rows))

			res := ExportResult{Path: args[0], Rows: len(rows)}
			return e.out.Render(res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "wrote %d employees to %s\n", res.Rows, res.Path)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&opts.Search, "search", "", "match name, EPIC or mobile")
	cmd.Flags().StringVar(&opts.Post, "post", "", "only employees holding this post id")
	cmd.Flags().StringVar(&opts.Service, "service", "", "only employees of this service type")
	cmd.Flags().StringVar(&opts.Status, "status", "all", "active, inactive or all")

	return cmd
}
