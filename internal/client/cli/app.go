package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/estately/internal/client/client"
	"github.com/dmitrijs2005/estately/internal/client/config"
)

// newClient builds the API client. Tests replace it.
var newClient = func(cfg *config.Config) (client.Client, error) {
	opts := []client.Option{client.WithHTTPClient(&http.Client{Timeout: cfg.Timeout})}
	if cfg.Persona != "" {
		opts = append(opts, client.WithPersona(cfg.Persona))
	}
	return client.NewHTTPClient(cfg.ServerURL, client.NewFileSessionStore(cfg.SessionFile), opts...)
}

type App struct {
	config *config.Config
	client client.Client
	reader *bufio.Reader
	out    io.Writer
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) printUser(u *client.User) {
	a.printf("ID:       %s\n", u.ID)
	a.printf("Email:    %s\n", u.Email)
	a.printf("Name:     %s %s\n", u.FirstName, u.LastName)
	if u.Phone != "" {
		a.printf("Phone:    %s\n", u.Phone)
	}
	a.printf("Role:     %s\n", u.Role)
	a.printf("Verified: %t\n", u.EmailVerified)
	if u.ActivePersona != "" {
		a.printf("Persona:  %s\n", u.ActivePersona)
	}
}

// explain turns client sentinels into advice for the operator.
func explain(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, client.ErrReauthenticate), errors.Is(err, client.ErrNotLoggedIn):
		return fmt.Errorf("%w; run 'estately login'", err)
	case errors.Is(err, client.ErrRateLimited):
		return fmt.Errorf("%w; try again in a minute", err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("request timed out: %w", err)
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		msg := apiErr.Message
		for _, f := range apiErr.Fields {
			msg += fmt.Sprintf("\n  %s: %s", f.Field, f.Rule)
		}
		return errors.New(msg)
	}
	return err
}
