package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/emsync/internal/model"
	"github.com/roach88/emsync/internal/project"
)

// EmployeesOptions holds flags for the employees command.
type EmployeesOptions struct {
	*RootOptions
	Search  string
	Post    string
	Service string
	Status  string // "active" | "inactive" | "all"
}

// EmployeeRow is one employee as listed, with its lock state.
type EmployeeRow struct {
	Employee model.Employee `json:"employee"`
	Locked   bool           `json:"locked"`
}

// NewEmployeesCommand creates the employees command.
func NewEmployeesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EmployeesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "employees",
		Short: "List the employees visible to the signed-in user",
		Long: `List the employees visible to the signed-in user from the local
cache. Administrators see every employee; other users see the employees
of the offices they look after.

Examples:
  emsync employees --search asha
  emsync employees --post 3 --status inactive`,
		Args: cobra.NoArgs,
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
			rows := []EmployeeRow{}
			for _, emp := range project.Where(project.Employees(s, id), pred) {
				rows = append(rows, EmployeeRow{Employee: emp, Locked: project.IsLocked(s, id, emp)})
			}
			e.logger.Debug("listed employees", "count", len(rows))

			return e.out.Render(rows, func(w io.Writer) error {
				return employeeTable(w, s, rows)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Search, "search", "", "match name, EPIC or mobile")
	cmd.Flags().StringVar(&opts.Post, "post", "", "only employees holding this post id")
	cmd.Flags().StringVar(&opts.Service, "service", "", "only employees of this service type")
	cmd.Flags().StringVar(&opts.Status, "status", "active", "active, inactive or all")

	return cmd
}

func (o *EmployeesOptions) predicate() (project.Predicate, error) {
	preds := project.And{project.Search(o.Search), project.ServiceIs(o.Service)}
	if o.Post != "" {
		post, ok := model.ParseID(o.Post)
		if !ok || post.IsPending() {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid post id %q", o.Post))
		}
		preds = append(preds, project.PostIs(post))
	}
	switch o.Status {
	case "active":
		preds = append(preds, project.ActiveIs(true))
	case "inactive":
		preds = append(preds, project.ActiveIs(false))
	case "all":
	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid status %q: must be active, inactive or all", o.Status))
	}
	return preds, nil
}

func employeeTable(w io.Writer, s model.Snapshot, rows []EmployeeRow) error {
	posts := make(map[model.ID]model.Text, len(s.Posts))
	for _, p := range s.Posts {
		posts[p.PostID] = p.PostName
	}
	offices := make(map[model.ID]model.Text, len(s.Offices))
	for _, o := range s.Offices {
		offices[o.OfficeID] = o.OfficeName
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tOFFICE\tPOST\tMOBILE\tACTIVE\tLOCKED")
	for _, r := range rows {
		locked := ""
		if r.Locked {
			locked = "yes"
		}
		e := r.Employee
		active := model.Yes
		if !e.IsActive() {
			active = model.No
		}
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\t%s\t%s\t%s\n",
			e.EmployeeID, e.EmployeeName, e.EmployeeSurname,
			offices[e.OfficeID], posts[e.PostID], e.Mobile, active, locked)
	}
	return tw.Flush()
}

// PostRow is one post as listed for the signed-in user.
type PostRow struct {
	Post     model.Post `json:"post"`
	Selected bool       `json:"selected"`
}

// NewPostsCommand creates the posts command.
func NewPostsCommand(opts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List posts and the signed-in user's selection",
		Long: `List the posts the signed-in user can assign. With --all every post
is listed and the selected ones are marked; toggle a post with select-post.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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
			visible := project.Posts(s, id)
			if all {
				visible = s.Posts
			}

			rows := make([]PostRow, 0, len(visible))
			for _, p := range visible {
				rows = append(rows, PostRow{Post: p, Selected: s.PostSelections.Has(id.UserID, p.PostID)})
			}
			return e.out.Render(rows, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tPOST\tSELECTED")
				for _, r := range rows {
					mark := ""
					if r.Selected {
						mark = "*"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Post.PostID, r.Post.PostName, mark)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "list every post, not only the selected ones")

	return cmd
}
