package nix

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

// ConfigVal is a single entry of `nix show-config --json`.
type ConfigVal[T any] struct {
	// Value is the value currently in use.
	Value T `json:"value"`
	// DefaultValue is what Nix would use without any configuration.
	DefaultValue T `json:"defaultValue"`
	// Description is Nix's own documentation for the setting.
	Description string `json:"description"`
}

// Config is the subset of the Nix configuration the dashboard cares about.
type Config struct {
	Cores                ConfigVal[int]      `json:"cores"`
	ExperimentalFeatures ConfigVal[[]string] `json:"experimental-features"`
	ExtraPlatforms       ConfigVal[[]string] `json:"extra-platforms"`
	FlakeRegistry        ConfigVal[string]   `json:"flake-registry"`
	MaxJobs              ConfigVal[int]      `json:"max-jobs"`
	Substituters         ConfigVal[[]string] `json:"substituters"`
	System               ConfigVal[string]   `json:"system"`
	TrustedUsers         ConfigVal[[]string] `json:"trusted-users"`
}

func cloneList(v ConfigVal[[]string]) ConfigVal[[]string] {
	v.Value = slices.Clone(v.Value)
	v.DefaultValue = slices.Clone(v.DefaultValue)
	return v
}

// Clone returns a copy of c that shares no slices with it.
func (c Config) Clone() Config {
	c.ExperimentalFeatures = cloneList(c.ExperimentalFeatures)
	c.ExtraPlatforms = cloneList(c.ExtraPlatforms)
	c.Substituters = cloneList(c.Substituters)
	c.TrustedUsers = cloneList(c.TrustedUsers)
	return c
}

// showConfigArgs enables nix-command so that older installs without it in
// nix.conf still answer.
var showConfigArgs = []string{
	"--extra-experimental-features", "nix-command",
	"show-config", "--json",
}

// ParseConfig decodes `nix show-config --json` output. Keys not modelled by
// Config are ignored.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("nix: decode show-config: %w", err)
	}
	return cfg, nil
}

// FetchConfig runs `nix show-config --json` and decodes it.
func FetchConfig(ctx context.Context, r Runner) (Config, error) {
	out, err := r.Run(ctx, showConfigArgs...)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(out)
}
