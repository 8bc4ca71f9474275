package cli

import (
	"github.com/dmitrijs2005/estately/internal/client/client"
	"github.com/dmitrijs2005/estately/internal/common"
	"github.com/spf13/cobra"
)

// prompt returns value when set, otherwise asks for it.
func (a *App) prompt(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	return getSimpleText(a.reader, label, a.out)
}

func (a *App) password() (string, error) {
	pw, err := getPassword(a.out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

func registerCmd(a *App) *cobra.Command {
	var req client.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if req.Email, err = a.prompt(req.Email, "Email"); err != nil {
				return err
			}
			if req.FirstName, err = a.prompt(req.FirstName, "First name"); err != nil {
				return err
			}
			if req.LastName, err = a.prompt(req.LastName, "Last name"); err != nil {
				return err
			}
			if req.Password, err = a.password(); err != nil {
				return err
			}

			u, err := a.client.Register(cmd.Context(), req)
			if err != nil {
				return explain(err)
			}
			a.printf("Registered %s as %s\n", u.Email, u.Role)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Email, "email", "", "account email")
	f.StringVar(&req.FirstName, "first-name", "", "first name")
	f.StringVar(&req.LastName, "last-name", "", "last name")
	f.StringVar(&req.Phone, "phone", "", "phone number (optional)")
	f.StringVar(&req.Role, "role", "", "buyer or seller (default buyer)")
	return cmd
}

func loginCmd(a *App) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := a.prompt(email, "Email")
			if err != nil {
				return err
			}
			password, err := a.password()
			if err != nil {
				return err
			}

			u, err := a.client.Login(cmd.Context(), addr, password)
			if err != nil {
				return explain(err)
			}
			a.printf("Logged in as %s (%s)\n", u.Email, u.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func logoutCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session on the server and forget local tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Logout(cmd.Context()); err != nil {
				return explain(err)
			}
			a.printf("Logged out\n")
			return nil
		},
	}
}

func refreshCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rotate the saved token pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Refresh(cmd.Context()); err != nil {
				return explain(err)
			}
			a.printf("Tokens refreshed\n")
			return nil
		},
	}
}
