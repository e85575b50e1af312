package health

import (
	"fmt"
	"slices"
	"strings"

	"github.com/thesyncim/nixbrowser/pkg/nix"
)

// MinimumVersion is the oldest Nix considered healthy.
var MinimumVersion = nix.Version{Major: 2, Minor: 13, Patch: 0}

// OfficialCache is the binary cache every install is expected to use.
const OfficialCache = "https://cache.nixos.org"

// MinNixVersion checks the Nix version against MinimumVersion.
func MinNixVersion(info *nix.Info, _ nix.SysInfo) Check {
	c := Check{
		Name: "Minimum Nix Version",
		Info: "Nix version: " + info.NixVersion.String(),
	}
	if info.NixVersion.AtLeast(MinimumVersion) {
		c.Report = Pass()
	} else {
		c.Report = Fail(
			fmt.Sprintf("Nix version is too old, need at least %s", MinimumVersion),
			"See https://nixos.org/manual/nix/stable/command-ref/new-cli/nix3-upgrade-nix.html",
		)
	}
	return c
}

// FlakesEnabled checks that both the flakes and nix-command features are on.
func FlakesEnabled(info *nix.Info, _ nix.SysInfo) Check {
	features := info.NixConfig.ExperimentalFeatures.Value
	c := Check{
		Name: "Flakes Enabled",
		Info: "experimental-features: " + strings.Join(features, " "),
	}
	if slices.Contains(features, "flakes") && slices.Contains(features, "nix-command") {
		c.Report = Pass()
	} else {
		c.Report = Fail(
			"Nix flakes are not enabled",
			"See https://nixos.wiki/wiki/Flakes#Enable_flakes",
		)
	}
	return c
}

// MaxJobs checks that builds may use more than one job.
func MaxJobs(info *nix.Info, _ nix.SysInfo) Check {
	jobs := info.NixConfig.MaxJobs.Value
	c := Check{
		Name: "Max Jobs",
		Info: fmt.Sprintf("Nix builds are using %d cores", jobs),
	}
	if jobs > 1 {
		c.Report = Pass()
	} else {
		c.Report = Fail(
			"You are using only 1 core for nix builds",
			"Try editing /etc/nix/nix.conf",
		)
	}
	return c
}

// Caches checks that the official binary cache is configured.
func Caches(info *nix.Info, _ nix.SysInfo) Check {
	subs := info.NixConfig.Substituters.Value
	c := Check{
		Name: "Nix Caches in use",
		Info: "substituters: " + strings.Join(subs, " "),
	}
	found := slices.ContainsFunc(subs, func(s string) bool {
		return strings.TrimRight(s, "/") == OfficialCache
	})
	if found {
		c.Report = Pass()
	} else {
		c.Report = Fail(
			"You are missing the official cache",
			"Try looking in /etc/nix/nix.conf",
		)
	}
	return c
}

// TrustedUsers checks that the current user may configure substituters.
// Group entries (@wheel) are not resolved.
func TrustedUsers(info *nix.Info, sys nix.SysInfo) Check {
	users := info.NixConfig.TrustedUsers.Value
	c := Check{
		Name: "Trusted users",
		Info: "trusted-users: " + strings.Join(users, " "),
	}
	if slices.Contains(users, "*") || (sys.CurrentUser != "" && slices.Contains(users, sys.CurrentUser)) {
		c.Report = Pass()
	} else {
		c.Report = Fail(
			"$USER not present in trusted-users",
			`Run 'echo "trusted-users = root $USER" | sudo tee -a /etc/nix/nix.conf && sudo pkill nix-daemon'`,
		)
	}
	return c
}
