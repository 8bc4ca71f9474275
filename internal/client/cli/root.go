package cli

import (
	"bufio"
	"context"
	"time"

	"github.com/dmitrijs2005/estately/internal/client/config"
	"github.com/spf13/cobra"
)

// NewRootCommand assembles the estately command tree. Settings come from
// defaults, then --config, then explicit flags.
func NewRootCommand() *cobra.Command {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	app := &App{config: cfg}

	var (
		configFile  string
		serverURL   string
		sessionFile string
		persona     string
		timeout     time.Duration
	)

	root := &cobra.Command{
		Use:           "estately",
		Short:         "Command-line client for the estately auth service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				if err := cfg.LoadFile(configFile); err != nil {
					return err
				}
			}
			flags := cmd.Flags()
			if flags.Changed("server") {
				cfg.ServerURL = serverURL
			}
			if flags.Changed("session") {
				cfg.SessionFile = sessionFile
			}
			if flags.Changed("persona") {
				cfg.Persona = persona
			}
			if flags.Changed("timeout") {
				cfg.Timeout = timeout
			}

			c, err := newClient(cfg)
			if err != nil {
				return err
			}
			app.client = c
			app.reader = bufio.NewReader(cmd.InOrStdin())
			app.out = cmd.OutOrStdout()
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "JSON or YAML config file")
	pf.StringVarP(&serverURL, "server", "a", cfg.ServerURL, "auth server base URL")
	pf.StringVar(&sessionFile, "session", cfg.SessionFile, "file holding the saved tokens")
	pf.StringVar(&persona, "persona", cfg.Persona, "persona to display (buyer, seller, broker)")
	pf.DurationVar(&timeout, "timeout", cfg.Timeout, "per-request timeout")

	root.AddCommand(
		registerCmd(app),
		loginCmd(app),
		logoutCmd(app),
		refreshCmd(app),
		whoamiCmd(app),
		statusCmd(app),
		roleCmd(app),
		pingCmd(app),
	)
	return root
}

// Execute runs the command tree with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
