package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/emsync/internal/engine"
	"github.com/roach88/emsync/internal/model"
	"github.com/roach88/emsync/internal/mutation"
	"github.com/roach88/emsync/internal/project"
)

// WriteOutput is the result of a confirmed write.
type WriteOutput struct {
	Action model.Action `json:"action"`
	Record model.Entity `json:"record,omitempty"`
}

func writeOutput(r engine.WriteResult) WriteOutput {
	return WriteOutput{Action: r.Action, Record: r.Record}
}

func (o WriteOutput) text(w io.Writer) error {
	if o.Record == nil {
		_, err := fmt.Fprintf(w, "%s: ok\n", o.Action)
		return err
	}
	_, err := fmt.Fprintf(w, "%s: ok (id %s)\n", o.Action, o.Record.Key())
	return err
}

// WriteOptions holds flags for the write command.
type WriteOptions struct {
	*RootOptions
	Payload string
	File    string
}

// NewWriteCommand creates the write command.
func NewWriteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "write <action>",
		Short: "Send one write to the remote store",
		Long: `Send one write to the remote store. The change is applied to the
local copy first and reconciled with the store's answer.

Actions: upsertUser, deleteUser, upsertDepartment, deleteDepartment,
upsertOffice, deleteOffice, upsertBank, deleteBank, upsertBranch,
deleteBranch, upsertPost, deletePost, upsertPayscale, deletePayscale,
upsertEmployee, deleteEmployee, updateUserPostSelections.

A record without an id (or with id 0) is created; the store assigns the id.

Examples:
  emsync write upsertPost --payload '{"Post_Name":"Clerk"}'
  emsync write deleteBank --payload '{"Bank_ID":4}'
  emsync write upsertEmployee --file employee.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := model.ParseAction(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid action", err)
			}
			payload, err := opts.readPayload(cmd.InOrStdin())
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
			plan, err := mutation.ForAction(s, action, payload)
			if err != nil {
				return planError(err)
			}
			if err := authorize(s, id, plan); err != nil {
				return err
			}

			r, err := e.perform(cmd.Context(), plan)
			if err != nil {
				return err
			}
			out := writeOutput(r)
			return e.out.SuccessWithRequest(out, r.RequestID, out.text)
		},
	}

	cmd.Flags().StringVarP(&opts.Payload, "payload", "p", "", "payload as a JSON object")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read the payload from a file (- for stdin)")

	return cmd
}

func (o *WriteOptions) readPayload(stdin io.Reader) (map[string]any, error) {
	var data []byte
	switch {
	case o.Payload != "" && o.File != "":
		return nil, NewExitError(ExitCommandError, "use either --payload or --file, not both")
	case o.Payload != "":
		data = []byte(o.Payload)
	case o.File == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read payload", err)
		}
		data = b
	case o.File != "":
		b, err := os.ReadFile(o.File)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read payload", err)
		}
		data = b
	default:
		return nil, NewExitError(ExitCommandError, "a payload is required (--payload or --file)")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, WrapExitError(ExitCommandError, "payload is not a JSON object", err)
	}
	return payload, nil
}

// authorize applies the role rules to a planned write. Administrators may
// do anything. Other users may change their own post selection and the
// employees of the offices they look after, unless the office is finalized.
func authorize(s model.Snapshot, id model.Identity, p mutation.Plan) error {
	if id.IsAdmin() {
		return nil
	}

	switch p.Action.Kind() {
	case model.KindPostSelection:
		if sel, ok := p.Payload.(mutation.SelectionPayload); ok && sel.UserID == id.UserID {
			return nil
		}
		return NewExitError(ExitCommandError, "cannot change another user's post selection")
	case model.KindEmployee:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("%s requires an administrator", p.Action))
	}

	var rows []model.Employee
	switch payload := p.Payload.(type) {
	case mutation.EmployeePayload:
		if before, ok := model.Find(s.Employees, payload.EmployeeID); ok && !payload.EmployeeID.IsPending() {
			rows = append(rows, before)
		}
		rows = append(rows, payload.Employee)
	case map[string]any:
		if emp, ok := payload[model.KindEmployee.IDField()].(model.ID); ok {
			if before, ok := model.Find(s.Employees, emp); ok {
				rows = append(rows, before)
			}
		}
	}

	mine := map[model.ID]bool{}
	for _, o := range project.CustodianOffices(s, id) {
		mine[o.OfficeID] = true
	}
	for _, e := range rows {
		if !mine[e.OfficeID] {
			return NewExitError(ExitCommandError, fmt.Sprintf("office %s is not assigned to you", e.OfficeID))
		}
		if project.IsLocked(s, id, e) {
			return NewExitError(ExitCommandError, fmt.Sprintf("office %s is finalized", e.OfficeID))
		}
	}
	return nil
}

// NewSelectPostCommand creates the select-post command.
func NewSelectPostCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "select-post <post-id>",
		Short: "Toggle a post in the signed-in user's selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			post, ok := model.ParseID(args[0])
			if !ok || post.IsPending() {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid post id %q", args[0]))
			}

			e, err := openEnv(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer e.Close()

			id, err := e.identity()
			if err != nil {
				return err
			}
			s := e.state.Snapshot()
			if _, found := model.Find(s.Posts, post); !found {
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown post %s", post))
			}
			plan, err := mutation.TogglePostSelection(s, id, post)
			if err != nil {
				return planError(err)
			}

			r, err := e.perform(cmd.Context(), plan)
			if err != nil {
				return err
			}
			selected := r.Snapshot.PostSelections.Has(id.UserID, post)
			return e.out.SuccessWithRequest(map[string]any{"post": post, "selected": selected}, r.RequestID, func(w io.Writer) error {
				state := "deselected"
				if selected {
					state = "selected"
				}
				_, err := fmt.Fprintf(w, "post %s %s\n", post, state)
				return err
			})
		},
	}
}

// FinalizeOptions holds flags for the finalize command.
type FinalizeOptions struct {
	*RootOptions
	Reopen     bool
	Department bool
}

// NewFinalizeCommand creates the finalize command.
func NewFinalizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FinalizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "finalize <office-id>",
		Short: "Lock an office's employee list",
		Long: `Lock an office's employee list. Once finalized, only administrators
can change the office's employees.

With --department the argument is a department id and every open office
of the department is finalized, one write at a time. The run stops at the
first failed write.

Examples:
  emsync finalize 12
  emsync finalize 12 --reopen
  emsync finalize 3 --department`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, ok := model.ParseID(args[0])
			if !ok || target.IsPending() {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid id %q", args[0]))
			}
			if opts.Department && opts.Reopen {
				return NewExitError(ExitCommandError, "--reopen cannot be combined with --department")
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
			if opts.Department {
				return finalizeDepartment(cmd, e, id, target)
			}
			return finalizeOffice(cmd, e, id, target, !opts.Reopen)
		},
	}

	cmd.Flags().BoolVar(&opts.Reopen, "reopen", false, "reopen a finalized office (administrators only)")
	cmd.Flags().BoolVar(&opts.Department, "department", false, "finalize every office of a department (administrators only)")

	return cmd
}

func finalizeOffice(cmd *cobra.Command, e *env, id model.Identity, office model.ID, finalized bool) error {
	s := e.state.Snapshot()
	o, found := model.Find(s.Offices, office)
	if !found {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown office %s", office))
	}
	if !id.IsAdmin() {
		if o.UserID != id.UserID {
			return NewExitError(ExitCommandError, fmt.Sprintf("office %s is not assigned to you", office))
		}
		if !finalized {
			return NewExitError(ExitCommandError, "reopening an office requires an administrator")
		}
	}

	plan, err := mutation.SetOfficeFinalized(s, office, finalized)
	if err != nil {
		return planError(err)
	}
	r, err := e.perform(cmd.Context(), plan)
	if err != nil {
		return err
	}
	out := writeOutput(r)
	return e.out.SuccessWithRequest(out, r.RequestID, out.text)
}

// DepartmentResult is the output of finalize --department.
type DepartmentResult struct {
	Department model.ID   `json:"department"`
	Finalized  []model.ID `json:"finalized"`
}

func finalizeDepartment(cmd *cobra.Command, e *env, id model.Identity, department model.ID) error {
	if !id.IsAdmin() {
		return NewExitError(ExitCommandError, "finalizing a department requires an administrator")
	}
	s := e.state.Snapshot()
	if _, found := model.Find(s.Departments, department); !found {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown department %s", department))
	}
	plans, err := mutation.FinalizeDepartment(s, department)
	if err != nil {
		return planError(err)
	}

	res := DepartmentResult{Department: department, Finalized: []model.ID{}}
	for _, p := range plans {
		o, ok := p.Payload.(model.Office)
		if !ok {
			continue
		}
		office := o.OfficeID

		// Re-plan against the live snapshot: the previous write's
		// reconciliation may have changed it.
		plan, err := mutation.SetOfficeFinalized(e.state.Snapshot(), office, true)
		if errors.Is(err, mutation.ErrNotFound) {
			e.logger.Warn("office vanished before finalizing", "office_id", office)
			continue
		}
		if err != nil {
			return planError(err)
		}
		if _, err := e.perform(cmd.Context(), plan); err != nil {
			e.logger.Error("department finalize stopped", "office_id", office, "done", len(res.Finalized))
			return err
		}
		res.Finalized = append(res.Finalized, office)
	}

	return e.out.Render(res, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "department %s: finalized %d offices\n", department, len(res.Finalized))
		return err
	})
}
