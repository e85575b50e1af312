package nix

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Info is everything the dashboard knows about the Nix installation. It is
// also the payload of /api/data/nix-info.
type Info struct {
	NixVersion Version `json:"nix_version"`
	NixConfig  Config  `json:"nix_config"`
}

// Clone returns a deep copy of i.
func (i *Info) Clone() *Info {
	return &Info{NixVersion: i.NixVersion, NixConfig: i.NixConfig.Clone()}
}

// FetchInfo queries version and configuration concurrently. The first
// failure cancels the other query.
func FetchInfo(ctx context.Context, r Runner) (*Info, error) {
	var info Info
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		v, err := FetchVersion(gctx, r)
		if err != nil {
			return fmt.Errorf("nix version: %w", err)
		}
		info.NixVersion = v
		return nil
	})
	g.Go(func() error {
		cfg, err := FetchConfig(gctx, r)
		if err != nil {
			return fmt.Errorf("nix config: %w", err)
		}
		info.NixConfig = cfg
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &info, nil
}

// SysInfo describes the machine the dashboard runs on.
type SysInfo struct {
	CurrentUser string `json:"current_user"`
	OS          string `json:"os"`
	Arch        string `json:"arch"`
}

// CurrentSysInfo inspects the running process. $USER wins over the passwd
// lookup, matching what a shell user would expect.
func CurrentSysInfo() SysInfo {
	name := os.Getenv("USER")
	if name == "" {
		if u, err := user.Current(); err == nil {
			name = u.Username
		}
	}
	return SysInfo{
		CurrentUser: name,
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
	}
}
