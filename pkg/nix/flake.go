package nix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

// OutputType is the kind of a leaf in `nix flake show --json`.
type OutputType string

// Output types reported by nix. Anything else decodes as OutputUnknown.
const (
	OutputNixosModule OutputType = "nixos-module"
	OutputDerivation  OutputType = "derivation"
	OutputApp         OutputType = "app"
	OutputTemplate    OutputType = "template"
	OutputUnknown     OutputType = "unknown"
)

// UnmarshalJSON maps unrecognised types to OutputUnknown.
func (t *OutputType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch v := OutputType(s); v {
	case OutputNixosModule, OutputDerivation, OutputApp, OutputTemplate:
		*t = v
	default:
		*t = OutputUnknown
	}
	return nil
}

// Icon is the emoji shown next to outputs of this type.
func (t OutputType) Icon() string {
	switch t {
	case OutputNixosModule:
		return "❄️"
	case OutputDerivation:
		return "📦"
	case OutputApp:
		return "📱"
	case OutputTemplate:
		return "🏗️"
	default:
		return "❓"
	}
}

// Leaf is a flake output that is not an attribute set.
type Leaf struct {
	Type        OutputType `json:"type"`
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
}

// FlakeOutputs is the tree printed by `nix flake show --json`. Exactly one of
// Leaf and Attrs is set.
type FlakeOutputs struct {
	Leaf  *Leaf
	Attrs map[string]*FlakeOutputs
}

// UnmarshalJSON decodes an object with a string "type" as a Leaf and any
// other object as an attribute set.
func (o *FlakeOutputs) UnmarshalJSON(data []byte) error {
	var head struct {
		Type json.RawMessage `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	if t := bytes.TrimSpace(head.Type); len(t) > 0 && t[0] == '"' {
		var leaf Leaf
		if err := json.Unmarshal(data, &leaf); err != nil {
			return err
		}
		*o = FlakeOutputs{Leaf: &leaf}
		return nil
	}

	var attrs map[string]*FlakeOutputs
	if err := json.Unmarshal(data, &attrs); err != nil {
		return err
	}
	*o = FlakeOutputs{Attrs: attrs}
	return nil
}

// MarshalJSON writes the same shape nix prints.
func (o FlakeOutputs) MarshalJSON() ([]byte, error) {
	if o.Leaf != nil {
		return json.Marshal(o.Leaf)
	}
	if o.Attrs == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(o.Attrs)
}

// Lookup follows path through nested attribute sets.
func (o *FlakeOutputs) Lookup(path ...string) (*FlakeOutputs, bool) {
	cur := o
	for _, p := range path {
		if cur == nil || cur.Attrs == nil {
			return nil, false
		}
		next, ok := cur.Attrs[p]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, cur != nil
}

// Keys returns the attribute names in sorted order.
func (o *FlakeOutputs) Keys() []string {
	keys := make([]string, 0, len(o.Attrs))
	for k := range o.Attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// perSystemSections are the outputs keyed by system that FlakeSchema lifts
// out of the raw tree, with their display titles.
var perSystemSections = []struct{ Key, Title string }{
	{"packages", "Packages"},
	{"legacyPackages", "Legacy Packages"},
	{"devShells", "Dev Shells"},
	{"checks", "Checks"},
	{"apps", "Apps"},
}

// FlakeSection is one per-system output group.
type FlakeSection struct {
	Key    string          `json:"key"`
	Title  string          `json:"title"`
	Leaves map[string]Leaf `json:"leaves"`
}

// FlakeSchema is the typed view of a flake's outputs for a single system.
// Outputs for other systems are dropped; outputs that are not per-system
// are kept in Other.
type FlakeSchema struct {
	System    string         `json:"system"`
	Sections  []FlakeSection `json:"sections"`
	Formatter *Leaf          `json:"formatter,omitempty"`
	Other     *FlakeOutputs  `json:"other,omitempty"`
}

// NewFlakeSchema builds the schema of outputs for system. outputs is not
// modified.
func NewFlakeSchema(outputs *FlakeOutputs, system string) FlakeSchema {
	schema := FlakeSchema{System: system}
	if outputs == nil || outputs.Attrs == nil {
		return schema
	}

	rest := make(map[string]*FlakeOutputs, len(outputs.Attrs))
	for k, v := range outputs.Attrs {
		rest[k] = v
	}

	for _, sec := range perSystemSections {
		leaves := map[string]Leaf{}
		if set, ok := outputs.Lookup(sec.Key, system); ok {
			for name, v := range set.Attrs {
				if v != nil && v.Leaf != nil {
					leaves[name] = *v.Leaf
				}
			}
		}
		delete(rest, sec.Key)
		if len(leaves) > 0 {
			schema.Sections = append(schema.Sections, FlakeSection{Key: sec.Key, Title: sec.Title, Leaves: leaves})
		}
	}

	if f, ok := outputs.Lookup("formatter", system); ok && f.Leaf != nil {
		leaf := *f.Leaf
		schema.Formatter = &leaf
	}
	delete(rest, "formatter")

	if len(rest) > 0 {
		schema.Other = &FlakeOutputs{Attrs: rest}
	}
	return schema
}

// Flake is everything the dashboard shows about one flake.
type Flake struct {
	URL    string        `json:"url"`
	Output *FlakeOutputs `json:"output"`
	Schema FlakeSchema   `json:"schema"`
}

// flakeShowArgs enables flakes and IFD so that any flake can be shown.
func flakeShowArgs(url string) []string {
	return []string{
		"--extra-experimental-features", "nix-command flakes",
		"flake", "show",
		"--allow-import-from-derivation",
		"--json",
		url,
	}
}

// ParseFlakeShow decodes `nix flake show --json` output.
func ParseFlakeShow(data []byte) (*FlakeOutputs, error) {
	var out FlakeOutputs
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("nix: decode flake show: %w", err)
	}
	return &out, nil
}

// FetchFlakeShow runs `nix flake show --json url`.
func FetchFlakeShow(ctx context.Context, r Runner, url string) (*FlakeOutputs, error) {
	out, err := r.Run(ctx, flakeShowArgs(url)...)
	if err != nil {
		return nil, err
	}
	return ParseFlakeShow(out)
}

// FetchFlake shows url and builds its schema for system.
func FetchFlake(ctx context.Context, r Runner, url, system string) (*Flake, error) {
	out, err := FetchFlakeShow(ctx, r, url)
	if err != nil {
		return nil, fmt.Errorf("nix flake show %s: %w", url, err)
	}
	return &Flake{URL: url, Output: out, Schema: NewFlakeSchema(out, system)}, nil
}
