// Package health runs sanity checks against a Nix installation.
//
// Every check inspects nix.Info (and the host's nix.SysInfo) and produces a
// Report that is either green or red with a message and a suggestion for
// fixing the problem.
package health

import (
	"github.com/thesyncim/nixbrowser/pkg/nix"
)

// Report is the outcome of a single check.
type Report struct {
	Green      bool   `json:"green"`
	Msg        string `json:"msg,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Pass is a green report.
func Pass() Report {
	return Report{Green: true}
}

// Fail is a red report.
func Fail(msg, suggestion string) Report {
	return Report{Msg: msg, Suggestion: suggestion}
}

// Check is a named, evaluated health check.
type Check struct {
	Name   string `json:"name"`
	Info   string `json:"info"`
	Report Report `json:"report"`
}

// Checker evaluates one aspect of the installation.
type Checker func(info *nix.Info, sys nix.SysInfo) Check

// DefaultCheckers are run by Run, in display order.
var DefaultCheckers = []Checker{
	MinNixVersion,
	FlakesEnabled,
	MaxJobs,
	Caches,
	TrustedUsers,
}

// Health is the result of running a set of checks.
type Health struct {
	Checks  []Check `json:"checks"`
	Healthy bool    `json:"healthy"`
}

// Run evaluates checkers (DefaultCheckers when none given).
func Run(info *nix.Info, sys nix.SysInfo, checkers ...Checker) *Health {
	if len(checkers) == 0 {
		checkers = DefaultCheckers
	}

	h := &Health{Checks: make([]Check, 0, len(checkers)), Healthy: true}
	for _, c := range checkers {
		check := c(info, sys)
		if !check.Report.Green {
			h.Healthy = false
		}
		h.Checks = append(h.Checks, check)
	}
	return h
}

// Failed returns the red checks.
func (h *Health) Failed() []Check {
	var out []Check
	for _, c := range h.Checks {
		if !c.Report.Green {
			out = append(out, c)
		}
	}
	return out
}
