package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/emsync/internal/model"
)

// NewLoginCommand creates the login command.
func NewLoginCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login <user-id>",
		Short: "Sign in as a user from the cached users table",
		Long: `Sign in as a user from the cached users table. Run pull first if
the cache is empty.

Example:
  emsync login 7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, ok := model.ParseID(args[0])
			if !ok || userID.IsPending() {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid user id %q", args[0]))
			}

			e, err := openEnv(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer e.Close()

			u, found := model.Find(e.state.Snapshot().Users, userID)
			if !found {
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown user %s (run: emsync pull)", userID))
			}
			id := e.state.Login(cmd.Context(), model.IdentityOf(u))
			e.logger.Info("logged in", "user_id", id.UserID, "role", id.UserType)

			return e.out.Render(id, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "logged in as %s (%s)\n", id.UserName, id.UserType)
				return err
			})
		},
	}
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the signed-in session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer e.Close()

			e.state.Logout(cmd.Context())
			return e.out.Render(map[string]bool{"logged_out": true}, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, "logged out")
				return err
			})
		},
	}
}
