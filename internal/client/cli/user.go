package cli

import (
	"github.com/spf13/cobra"
)

func whoamiCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.client.Me(cmd.Context())
			if err != nil {
				return explain(err)
			}
			a.printUser(u)
			return nil
		},
	}
}

func statusCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the saved session is still valid",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.client.Status(cmd.Context())
			if err != nil {
				return explain(err)
			}
			if !st.Authenticated || st.User == nil {
				a.printf("Not authenticated\n")
				return nil
			}
			a.printf("Authenticated as %s (%s)\n", st.User.Email, st.User.Role)
			return nil
		},
	}
}

func roleCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:       "role buyer|seller",
		Short:     "Switch the account role",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"buyer", "seller"},
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.client.ChangeRole(cmd.Context(), args[0])
			if err != nil {
				return explain(err)
			}
			a.printf("Role is now %s\n", u.Role)
			return nil
		},
	}
}

func pingCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server is up",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Ping(cmd.Context()); err != nil {
				return explain(err)
			}
			a.printf("Server is up\n")
			return nil
		},
	}
}
