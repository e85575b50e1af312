// nix-browser serves a dashboard describing the local Nix installation.
//
// Running it without a subcommand starts the server on 127.0.0.1:8080 and
// opens the dashboard in the default browser. The same information is
// available on the terminal through the info and health subcommands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/thesyncim/nixbrowser/internal/config"
	"github.com/thesyncim/nixbrowser/internal/logging"
	"github.com/thesyncim/nixbrowser/pkg/nix"
	"github.com/thesyncim/nixbrowser/pkg/theme"
)

// errUnhealthy makes the process exit 1 without printing anything more.
var errUnhealthy = errors.New("nix installation is unhealthy")

// app is the state shared by all subcommands, built in PersistentPreRunE.
type app struct {
	configDir string
	manager   *config.Manager
	log       zerolog.Logger
}

func (a *app) config() *config.Config {
	return a.manager.Get()
}

// runner runs the configured nix binary.
func (a *app) runner() *nix.Cmd {
	return &nix.Cmd{Binary: a.config().Nix.Binary}
}

// source builds the nix.Source described by the configuration.
func (a *app) source() *nix.CachedSource {
	return nix.NewCachedSource(nix.RunnerSource{Runner: a.runner()}, a.config().Nix.CacheTTL)
}

// theme loads the configured theme file, or the default theme.
func (a *app) theme() (*theme.Theme, error) {
	return loadTheme(a.config().Theme.File)
}

func loadTheme(file string) (*theme.Theme, error) {
	if file == "" {
		return theme.Default(), nil
	}
	return theme.Load(file)
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "nix-browser",
		Short:         "A dashboard for your Nix installation",
		Long:          `nix-browser shows the Nix version, configuration and health of this machine in the browser or on the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var paths []string
			if a.configDir != "" {
				paths = append(paths, a.configDir)
			}
			m, err := config.NewManager(paths...)
			if err != nil {
				return err
			}
			if err := m.Load(); err != nil {
				return err
			}
			a.manager = m

			cfg := m.Get()
			a.log = logging.FromSettings(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "Directory holding config.yaml (default $XDG_CONFIG_HOME/nix-browser)")

	serveCmd := newServeCmd(a)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newInfoCmd(a))
	rootCmd.AddCommand(newHealthCmd(a))
	rootCmd.AddCommand(newProbeCmd(a))
	rootCmd.AddCommand(newThemeCmd(a))
	rootCmd.AddCommand(newSchemaCmd())
	rootCmd.AddCommand(newFlakeCmd(a))

	// Bare `nix-browser` serves, accepting serve's flags.
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())
	rootCmd.Args = cobra.NoArgs
	rootCmd.RunE = serveCmd.RunE

	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errUnhealthy) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
