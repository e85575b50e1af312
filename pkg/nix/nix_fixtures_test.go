package nix

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

const showConfigJSON = `{
  "cores": {"value": 8, "defaultValue": 0, "description": "Number of CPU cores to use per build."},
  "experimental-features": {"value": ["flakes", "nix-command"], "defaultValue": [], "description": "Experimental features."},
  "extra-platforms": {"value": ["aarch64-darwin"], "defaultValue": [], "description": "Extra platforms."},
  "flake-registry": {"value": "https://channels.nixos.org/flake-registry.json", "defaultValue": "https://channels.nixos.org/flake-registry.json", "description": "Path or URI of the global flake registry."},
  "max-jobs": {"value": 4, "defaultValue": 1, "description": "Maximum number of jobs to run in parallel."},
  "substituters": {"value": ["https://cache.nixos.org/"], "defaultValue": ["https://cache.nixos.org/"], "description": "Binary caches."},
  "system": {"value": "x86_64-linux", "defaultValue": "x86_64-linux", "description": "The system type."},
  "trusted-users": {"value": ["root", "alice"], "defaultValue": ["root"], "description": "Trusted users."},
  "sandbox": {"value": true, "defaultValue": true, "description": "Not modelled."}
}`

// fakeRunner answers nix invocations from a table keyed by joined args.
type fakeRunner struct {
	mu      sync.Mutex
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func newFakeRunner(version string) *fakeRunner {
	return &fakeRunner{
		outputs: map[string]string{
			"--version": version,
			strings.Join(showConfigArgs, " "): showConfigJSON,
		},
		errs: map[string]error{},
	}
}

func (f *fakeRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	key := strings.Join(args, " ")

	f.mu.Lock()
	f.calls = append(f.calls, key)
	out, ok := f.outputs[key]
	err := f.errs[key]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("unexpected nix invocation %q", key)
	}
	return []byte(out), nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
