package health

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/nixbrowser/pkg/nix"
	"github.com/thesyncim/nixbrowser/pkg/theme"
)

func healthyInfo() *nix.Info {
	info := &nix.Info{NixVersion: nix.Version{Major: 2, Minor: 18, Patch: 1}}
	info.NixConfig.ExperimentalFeatures.Value = []string{"nix-command", "flakes"}
	info.NixConfig.MaxJobs.Value = 8
	info.NixConfig.Substituters.Value = []string{"https://cache.nixos.org/", "https://nix-community.cachix.org"}
	info.NixConfig.TrustedUsers.Value = []string{"root", "alice"}
	return info
}

var alice = nix.SysInfo{CurrentUser: "alice", OS: "linux", Arch: "amd64"}

func TestRun_Healthy(t *testing.T) {
	h := Run(healthyInfo(), alice)

	require.Len(t, h.Checks, len(DefaultCheckers))
	assert.True(t, h.Healthy)
	assert.Empty(t, h.Failed())
	assert.Equal(t, "Minimum Nix Version", h.Checks[0].Name)
}

func TestMinNixVersion(t *testing.T) {
	info := healthyInfo()

	info.NixVersion = nix.Version{Major: 2, Minor: 13, Patch: 0}
	assert.True(t, MinNixVersion(info, alice).Report.Green)

	info.NixVersion = nix.Version{Major: 2, Minor: 12, Patch: 9}
	c := MinNixVersion(info, alice)
	assert.False(t, c.Report.Green)
	assert.Contains(t, c.Report.Msg, "too old")
	assert.Equal(t, "Nix version: 2.12.9", c.Info)
}

func TestFlakesEnabled(t *testing.T) {
	info := healthyInfo()
	info.NixConfig.ExperimentalFeatures.Value = []string{"flakes"}
	assert.False(t, FlakesEnabled(info, alice).Report.Green)

	info.NixConfig.ExperimentalFeatures.Value = nil
	assert.False(t, FlakesEnabled(info, alice).Report.Green)
}

func TestMaxJobs(t *testing.T) {
	info := healthyInfo()
	info.NixConfig.MaxJobs.Value = 1
	c := MaxJobs(info, alice)
	assert.False(t, c.Report.Green)
	assert.Equal(t, "Nix builds are using 1 cores", c.Info)

	info.NixConfig.MaxJobs.Value = 2
	assert.True(t, MaxJobs(info, alice).Report.Green)
}

func TestCaches(t *testing.T) {
	info := healthyInfo()
	info.NixConfig.Substituters.Value = []string{"https://cache.nixos.org"}
	assert.True(t, Caches(info, alice).Report.Green, "trailing slash is optional")

	info.NixConfig.Substituters.Value = []string{"https://mirror.example.com/"}
	assert.False(t, Caches(info, alice).Report.Green)
}

func TestTrustedUsers(t *testing.T) {
	info := healthyInfo()
	assert.True(t, TrustedUsers(info, alice).Report.Green)

	bob := nix.SysInfo{CurrentUser: "bob"}
	assert.False(t, TrustedUsers(info, bob).Report.Green)

	info.NixConfig.TrustedUsers.Value = []string{"@wheel"}
	assert.False(t, TrustedUsers(info, bob).Report.Green, "groups are not resolved")

	info.NixConfig.TrustedUsers.Value = []string{"*"}
	assert.True(t, TrustedUsers(info, bob).Report.Green)
}

func TestRun_UnhealthyCollectsFailures(t *testing.T) {
	info := healthyInfo()
	info.NixConfig.MaxJobs.Value = 1
	info.NixConfig.Substituters.Value = nil

	h := Run(info, alice)
	assert.False(t, h.Healthy)

	failed := h.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, "Max Jobs", failed[0].Name)
	assert.Equal(t, "Nix Caches in use", failed[1].Name)
}

func TestRun_CustomCheckers(t *testing.T) {
	h := Run(healthyInfo(), alice, MaxJobs)
	require.Len(t, h.Checks, 1)
	assert.Equal(t, "Max Jobs", h.Checks[0].Name)
}

func TestHealth_JSON(t *testing.T) {
	info := healthyInfo()
	info.NixConfig.MaxJobs.Value = 1

	data, err := json.Marshal(Run(info, alice, MaxJobs, Caches))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"healthy": false,
		"checks": [
			{"name": "Max Jobs", "info": "Nix builds are using 1 cores",
			 "report": {"green": false, "msg": "You are using only 1 core for nix builds", "suggestion": "Try editing /etc/nix/nix.conf"}},
			{"name": "Nix Caches in use", "info": "substituters: https://cache.nixos.org/ https://nix-community.cachix.org",
			 "report": {"green": true}}
		]
	}`, string(data))
}

func TestRender(t *testing.T) {
	info := healthyInfo()
	info.NixConfig.MaxJobs.Value = 1

	out := Render(Run(info, alice), NewStyles(theme.Default()))

	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "✗")
	assert.Contains(t, out, "Max Jobs")
	assert.Contains(t, out, "Suggestion: Try editing /etc/nix/nix.conf")
	assert.Contains(t, out, "Some checks failed")
	assert.Equal(t, 1, strings.Count(out, "Suggestion:"))
}
