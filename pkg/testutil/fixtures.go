package testutil

import (
	"context"

	"github.com/thesyncim/nixbrowser/pkg/nix"
)

// NixInfo builds an Info reporting the given version with a healthy,
// flake-enabled configuration.
func NixInfo(major, minor, patch uint32) *nix.Info {
	return &nix.Info{
		NixVersion: nix.Version{Major: major, Minor: minor, Patch: patch},
		NixConfig: nix.Config{
			Cores:                nix.ConfigVal[int]{Value: 0, Description: "Maximum number of parallel tasks in one build."},
			ExperimentalFeatures: nix.ConfigVal[[]string]{Value: []string{"flakes", "nix-command"}},
			ExtraPlatforms:       nix.ConfigVal[[]string]{Value: []string{}},
			FlakeRegistry:        nix.ConfigVal[string]{Value: "https://channels.nixos.org/flake-registry.json"},
			MaxJobs:              nix.ConfigVal[int]{Value: 8, DefaultValue: 1},
			Substituters:         nix.ConfigVal[[]string]{Value: []string{"https://cache.nixos.org/"}},
			System:               nix.ConfigVal[string]{Value: "x86_64-linux"},
			TrustedUsers:         nix.ConfigVal[[]string]{Value: []string{"root", "*"}},
		},
	}
}

// StaticSource serves NixInfo(major, minor, patch).
func StaticSource(major, minor, patch uint32) nix.StaticSource {
	return nix.StaticSource{Value: NixInfo(major, minor, patch)}
}

// FailingSource is a nix.Source that always returns Err.
type FailingSource struct {
	Err error
}

// Info implements nix.Source.
func (s FailingSource) Info(context.Context) (*nix.Info, error) {
	return nil, s.Err
}
