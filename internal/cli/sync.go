package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/emsync/internal/engine"
	"github.com/roach88/emsync/internal/model"
	"github.com/roach88/emsync/internal/state"
)

// PullResult is the output of pull and of each watch refresh.
type PullResult struct {
	Updated  bool           `json:"updated"`
	Skipped  bool           `json:"skipped,omitempty"`
	Offline  bool           `json:"offline,omitempty"`
	SyncedAt time.Time      `json:"synced_at,omitzero"`
	Counts   map[string]int `json:"counts"`
	Error    string         `json:"error,omitempty"`
}

func pullResult(r engine.RefreshResult) PullResult {
	out := PullResult{
		Updated:  r.Updated,
		Skipped:  r.Skipped,
		Offline:  r.Offline,
		SyncedAt: r.SyncedAt,
		Counts:   counts(r.Snapshot),
	}
	if r.Err != nil {
		out.Error = r.Err.Message
	}
	return out
}

func (p PullResult) text(w io.Writer) error {
	switch {
	case p.Error != "":
		_, err := fmt.Fprintf(w, "refresh failed: %s\n", p.Error)
		return err
	case p.Offline:
		_, err := fmt.Fprintln(w, "offline: no remote store configured, using cached data")
		return err
	case p.Skipped:
		_, err := fmt.Fprintln(w, "refresh skipped: write in flight")
		return err
	}
	_, err := fmt.Fprintf(w, "synced at %s: %d employees, %d offices, %d posts\n",
		p.SyncedAt.Format(time.RFC3339), p.Counts[model.TableEmployees], p.Counts[model.TableOffices], p.Counts[model.TablePosts])
	return err
}

func counts(s model.Snapshot) map[string]int {
	return map[string]int{
		model.TableUsers:       len(s.Users),
		model.TableDepartments: len(s.Departments),
		model.TableOffices:     len(s.Offices),
		model.TableBanks:       len(s.Banks),
		model.TableBranches:    len(s.Branches),
		model.TablePosts:       len(s.Posts),
		model.TablePayscales:   len(s.Payscales),
		model.TableEmployees:   len(s.Employees),
	}
}

// NewPullCommand creates the pull command.
func NewPullCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Refresh the local copy from the remote store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer e.Close()

			r := e.engine.RefreshNow(cmd.Context(), true)
			res := pullResult(r)
			if r.Err != nil {
				return WrapExitError(ExitFailure, "refresh failed", r.Err)
			}
			return e.out.Render(res, res.text)
		},
	}
}

// StatusResult is the output of status.
type StatusResult struct {
	state.Status
	User   *model.Identity `json:"user,omitempty"`
	Counts map[string]int  `json:"counts"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session, sync status and cached table sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer e.Close()

			res := StatusResult{
				Status: e.state.Status(),
				Counts: counts(e.state.Snapshot()),
			}
			if id, ok := e.state.Identity(); ok {
				res.User = &id
			}
			return e.out.Render(res, func(w io.Writer) error {
				user := "not logged in"
				if res.User != nil {
					user = fmt.Sprintf("%s (%s, %s)", res.User.UserName, res.User.UserID, res.User.UserType)
				}
				mode := "online"
				if res.Offline {
					mode = "offline"
				}
				fmt.Fprintf(w, "user:      %s\n", user)
				fmt.Fprintf(w, "mode:      %s\n", mode)
				fmt.Fprintf(w, "employees: %d\n", res.Counts[model.TableEmployees])
				if !res.LastSynced.IsZero() {
					fmt.Fprintf(w, "synced:    %s\n", res.LastSynced.Format(time.RFC3339))
				}
				if res.HasError() {
					fmt.Fprintf(w, "error:     [%s] %s\n", res.ErrorCode, res.LastError)
				}
				return nil
			})
		},
	}
}

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Interval time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Refresh now and then periodically until interrupted",
		Long: `Refresh the local copy immediately, then every interval until
interrupted with Ctrl-C. Each refresh prints one line.

Example:
  emsync watch --interval 1m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "refresh interval (default from config)")

	return cmd
}

func runWatch(ctx context.Context, opts *WatchOptions) error {
	e, err := openEnv(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.Close()

	interval := opts.Interval
	if interval <= 0 {
		interval = e.cfg.Sync.Interval
	}

	onSnapshot := func(r engine.RefreshResult) {
		res := pullResult(r)
		if err := e.out.Render(res, res.text); err != nil {
			e.logger.Warn("output failed", "error", err)
		}
	}
	if err := e.engine.Start(ctx, onSnapshot, interval); err != nil {
		return WrapExitError(ExitCommandError, "failed to start scheduler", err)
	}
	<-ctx.Done()
	e.engine.Stop()
	return nil
}
