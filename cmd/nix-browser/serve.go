package main

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/thesyncim/nixbrowser/cmd/nix-browser/server"
	"github.com/thesyncim/nixbrowser/internal/config"
	"github.com/thesyncim/nixbrowser/pkg/store"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, a)
		},
	}
	cmd.Flags().StringP("site-addr", "s", "", "The address to serve the application on (default 127.0.0.1:8080)")
	cmd.Flags().BoolP("no-open", "n", false, "Do not open the browser")
	return cmd
}

func runServe(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	if flags.Changed("site-addr") {
		addr, _ := flags.GetString("site-addr")
		if err := a.manager.Set("server.addr", addr); err != nil {
			return err
		}
	}
	if flags.Changed("no-open") {
		noOpen, _ := flags.GetBool("no-open")
		if err := a.manager.Set("server.no_open", noOpen); err != nil {
			return err
		}
	}
	cfg := a.config()

	th, err := a.theme()
	if err != nil {
		return err
	}
	opts := []server.Option{
		server.WithSource(a.source()),
		server.WithRunner(a.runner()),
		server.WithTheme(th),
		server.WithLogger(a.log),
	}

	st, err := store.Open(ctx, cfg.Database.Path)
	if err != nil {
		a.log.Warn().Err(err).Str("path", cfg.Database.Path).Msg("flake registry disabled")
	} else {
		defer st.Close()
		opts = append(opts, server.WithStore(st))
	}

	srv, err := server.NewServer(server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	addr, err := srv.Start()
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	url := srv.URL()
	a.log.Info().Str("addr", addr).Msg("server started")

	banner := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(th.Hex("primary", 500)))
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", banner.Render("🚀 nix-browser is running at"), url)

	if a.manager.ConfigFile() != "" {
		a.manager.OnConfigChange(func(c *config.Config) {
			t, err := loadTheme(c.Theme.File)
			if err == nil {
				err = srv.SetTheme(t)
			}
			if err != nil {
				a.log.Warn().Err(err).Msg("keeping previous theme")
				return
			}
			a.log.Info().Msg("theme reloaded")
		})
		if err := a.manager.Watch(); err != nil {
			a.log.Warn().Err(err).Msg("config file not watched")
		}
	}

	if !cfg.Server.NoOpen {
		if err := openBrowser(url); err != nil {
			a.log.Warn().Err(err).Msg("failed to open browser")
		}
	}

	<-ctx.Done()
	a.log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openBrowser hands url to the desktop's URL opener without waiting for it.
func openBrowser(url string) error {
	var c *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		c = exec.Command("open", url)
	case "windows":
		c = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		c = exec.Command("xdg-open", url)
	}
	if err := c.Start(); err != nil {
		return err
	}
	go c.Wait() //nolint:errcheck
	return nil
}
