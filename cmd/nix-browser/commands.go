package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/thesyncim/nixbrowser/cmd/nix-browser/server"
	"github.com/thesyncim/nixbrowser/pkg/health"
	"github.com/thesyncim/nixbrowser/pkg/nix"
	"github.com/thesyncim/nixbrowser/pkg/probe"
	"github.com/thesyncim/nixbrowser/pkg/store"
	"github.com/thesyncim/nixbrowser/pkg/theme"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newInfoCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the Nix version and configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := a.source().Info(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			th, err := a.theme()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderInfo(info, th))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the /api/data/nix-info payload")
	return cmd
}

func renderInfo(info *nix.Info, th *theme.Theme) string {
	key := lipgloss.NewStyle().Bold(true).Width(24).Foreground(lipgloss.Color(th.Hex("primary", 500)))
	cfg := info.NixConfig

	rows := [][2]string{
		{"Nix Version", info.NixVersion.String()},
		{"System", cfg.System.Value},
		{"Max Jobs", fmt.Sprint(cfg.MaxJobs.Value)},
		{"Cores per build", fmt.Sprint(cfg.Cores.Value)},
		{"Nix Caches", strings.Join(cfg.Substituters.Value, " ")},
		{"Experimental Features", strings.Join(cfg.ExperimentalFeatures.Value, " ")},
		{"Trusted Users", strings.Join(cfg.TrustedUsers.Value, " ")},
	}
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(key.Render(r[0]))
		b.WriteString(r[1])
		b.WriteString("\n")
	}
	return b.String()
}

func newHealthCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the Nix installation for common problems",
		Long:  `Runs the health checks shown on the dashboard. Exits with status 1 when any check fails.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := a.source().Info(cmd.Context())
			if err != nil {
				return err
			}
			h := health.Run(info, nix.CurrentSysInfo())

			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), h); err != nil {
					return err
				}
			} else {
				th, err := a.theme()
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), health.Render(h, health.NewStyles(th)))
			}

			if !h.Healthy {
				return errUnhealthy
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the /api/data/nix-health payload")
	return cmd
}

func newProbeCmd(a *app) *cobra.Command {
	var (
		url      string
		nonEmpty bool
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check that a running dashboard renders the version its API reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode := probe.ModeExact
			if nonEmpty {
				mode = probe.ModeNonEmpty
			}
			p := probe.New(url, probe.HTTPPage{}, nil)

			res, err := p.Check(cmd.Context(), mode)
			if err != nil {
				a.log.Error().Err(err).Str("url", url).Str("mode", mode.String()).Msg("probe failed")
				return err
			}

			ok := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(theme.Scales["green"][500]))
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s rendered %q\n", ok.Render("✓"), mode, res.Rendered)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://127.0.0.1:8080", "Base URL of the dashboard")
	cmd.Flags().BoolVar(&nonEmpty, "non-empty", false, "Only require a non-empty version")
	return cmd
}

func newThemeCmd(a *app) *cobra.Command {
	themeCmd := &cobra.Command{
		Use:   "theme",
		Short: "Inspect the dashboard theme",
	}

	var root string
	cssCmd := &cobra.Command{
		Use:   "css",
		Short: "Print the stylesheet generated from the theme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			th, err := a.theme()
			if err != nil {
				return err
			}
			content := server.Assets()
			if root != "" {
				content = os.DirFS(root)
			}
			sources, err := th.Sources(content)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), th.CSS(sources))
			return err
		},
	}
	cssCmd.Flags().StringVar(&root, "root", "", "Directory the content globs are matched in (default: built-in templates)")

	themeCmd.AddCommand(cssCmd)
	return themeCmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of /api/data/nix-info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeJSON(cmd.OutOrStdout(), server.NixInfoSchema())
		},
	}
}

func newFlakeCmd(a *app) *cobra.Command {
	flakeCmd := &cobra.Command{
		Use:   "flake",
		Short: "Show flakes and manage the registry of recently used ones",
	}

	openStore := func(cmd *cobra.Command) (*store.Store, error) {
		return store.Open(cmd.Context(), a.config().Database.Path)
	}

	addCmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Register a flake URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.RegisterFlake(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", args[0])
			return nil
		},
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recently used flakes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			flakes, err := st.RecentFlakes(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(flakes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No flakes registered.")
				return nil
			}
			dim := lipgloss.NewStyle().Faint(true)
			for _, f := range flakes {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", dim.Render(f.LastAccessed.Local().Format("2006-01-02 15:04")), f.URL)
			}
			return nil
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of flakes to list")

	var asJSON bool
	showCmd := &cobra.Command{
		Use:   "show <url>",
		Short: "Show the outputs of a flake for this system",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			url := args[0]
			if err := store.ValidateFlakeURL(url); err != nil {
				return err
			}

			st, err := openStore(cmd)
			if err != nil {
				a.log.Warn().Err(err).Msg("flake registry disabled")
			} else {
				defer st.Close()
				if err := st.RegisterFlake(ctx, url); err != nil {
					return err
				}
			}

			info, err := a.source().Info(ctx)
			if err != nil {
				return err
			}
			f, err := nix.FetchFlake(ctx, a.runner(), url, info.NixConfig.System.Value)
			if err != nil {
				return err
			}
			if st != nil {
				if err := st.MarkFetched(ctx, url); err != nil {
					a.log.Warn().Err(err).Str("url", url).Msg("failed to mark flake fetched")
				}
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), f)
			}
			printFlake(cmd.OutOrStdout(), f)
			return nil
		},
	}
	showCmd.Flags().BoolVar(&asJSON, "json", false, "Print the outputs and schema as JSON")

	flakeCmd.AddCommand(addCmd, listCmd, showCmd)
	return flakeCmd
}

func printFlake(w io.Writer, f *nix.Flake) {
	heading := lipgloss.NewStyle().Bold(true)
	dim := lipgloss.NewStyle().Faint(true)

	fmt.Fprintf(w, "%s (%s)\n", heading.Render(f.URL), f.Schema.System)
	for _, sec := range f.Schema.Sections {
		fmt.Fprintf(w, "\n%s\n", heading.Render(sec.Title))
		names := slices.Sorted(maps.Keys(sec.Leaves))
		for _, name := range names {
			leaf := sec.Leaves[name]
			fmt.Fprintf(w, "  %s %s", leaf.Type.Icon(), name)
			if leaf.Description != "" {
				fmt.Fprintf(w, "  %s", dim.Render(leaf.Description))
			}
			fmt.Fprintln(w)
		}
	}
	if f.Schema.Formatter != nil {
		fmt.Fprintf(w, "\n%s\n  %s %s\n", heading.Render("Formatter"), f.Schema.Formatter.Type.Icon(), f.Schema.Formatter.Name)
	}
	if f.Schema.Other != nil {
		fmt.Fprintf(w, "\n%s\n  %s\n", heading.Render("Other"), strings.Join(f.Schema.Other.Keys(), ", "))
	}
}
