// Package theme holds the dashboard's style tables: which colour family each
// semantic role (primary, error, ...) uses, the font stacks, and which content
// files are scanned for class references when generating CSS.
package theme

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// ErrInvalidTheme wraps every validation failure.
var ErrInvalidTheme = errors.New("theme: invalid")

// DefaultFontFamily is the stock font table that font lists may spread from.
var DefaultFontFamily = map[string][]string{
	"sans": {
		"ui-sans-serif", "system-ui", "sans-serif",
		"Apple Color Emoji", "Segoe UI Emoji", "Segoe UI Symbol", "Noto Color Emoji",
	},
	"serif": {"ui-serif", "Georgia", "Cambria", "Times New Roman", "Times", "serif"},
	"mono": {
		"ui-monospace", "SFMono-Regular", "Menlo", "Monaco", "Consolas",
		"Liberation Mono", "Courier New", "monospace",
	},
}

// spreadPrefix marks a font list entry that expands a DefaultFontFamily entry.
const spreadPrefix = "..."

// Theme is an immutable set of style tables. Reloading produces a new Theme.
type Theme struct {
	// Content lists globs of files scanned for class references.
	Content []string
	// Colors maps a role to a key of Scales.
	Colors map[string]string
	// FontFamily maps a family name to an ordered font stack.
	FontFamily map[string][]string
}

// Default returns the built-in theme.
func Default() *Theme {
	return &Theme{
		Content: []string{"index.html", "partials/**.html", "templates/**.html"},
		Colors: map[string]string{
			"base":      "gray",
			"primary":   "blue",
			"secondary": "yellow",
			"error":     "red",
		},
		FontFamily: map[string][]string{
			"sans": append([]string{"Inter"}, DefaultFontFamily["sans"]...),
			"mono": slices.Clone(DefaultFontFamily["mono"]),
		},
	}
}

// Roles returns the colour roles in sorted order.
func (t *Theme) Roles() []string {
	return slices.Sorted(maps.Keys(t.Colors))
}

// Families returns the font family names in sorted order.
func (t *Theme) Families() []string {
	return slices.Sorted(maps.Keys(t.FontFamily))
}

// Color resolves role at shade to a hex colour.
func (t *Theme) Color(role string, shade int) (string, bool) {
	scale, ok := Scales[t.Colors[role]]
	if !ok {
		return "", false
	}
	hex, ok := scale[shade]
	return hex, ok
}

// Hex is Color without the ok flag: unknown roles and shades render as
// black.
func (t *Theme) Hex(role string, shade int) string {
	if hex, ok := t.Color(role, shade); ok {
		return hex
	}
	return "#000000"
}

// Validate checks that every role points at a known scale, every font stack
// is non-empty and every content glob compiles.
func (t *Theme) Validate() error {
	for _, role := range t.Roles() {
		if _, ok := Scales[t.Colors[role]]; !ok {
			return fmt.Errorf("%w: color %q refers to unknown scale %q", ErrInvalidTheme, role, t.Colors[role])
		}
	}
	for _, name := range t.Families() {
		if len(t.FontFamily[name]) == 0 {
			return fmt.Errorf("%w: font family %q is empty", ErrInvalidTheme, name)
		}
	}
	if _, err := compileContent(t.Content); err != nil {
		return err
	}
	return nil
}

// fileConfig is the on-disk layout, modelled on a tailwind config.
type fileConfig struct {
	Content []string `yaml:"content"`
	Theme   struct {
		Extend struct {
			Colors     map[string]string   `yaml:"colors"`
			FontFamily map[string][]string `yaml:"fontFamily"`
		} `yaml:"extend"`
	} `yaml:"theme"`
}

// Load reads a YAML theme file and merges it over Default. A non-empty
// content list replaces the default one; colors and fontFamily extend it.
func Load(path string) (*Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("theme: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse is Load for in-memory YAML.
func Parse(data []byte) (*Theme, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("theme: decode: %w", err)
	}

	t := Default()
	if len(fc.Content) > 0 {
		t.Content = fc.Content
	}
	maps.Copy(t.Colors, fc.Theme.Extend.Colors)
	for name, fonts := range fc.Theme.Extend.FontFamily {
		expanded, err := expandFonts(fonts)
		if err != nil {
			return nil, fmt.Errorf("font family %q: %w", name, err)
		}
		t.FontFamily[name] = expanded
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func expandFonts(fonts []string) ([]string, error) {
	out := make([]string, 0, len(fonts))
	for _, f := range fonts {
		name, ok := strings.CutPrefix(f, spreadPrefix)
		if !ok {
			out = append(out, f)
			continue
		}
		def, ok := DefaultFontFamily[name]
		if !ok {
			return nil, fmt.Errorf("%w: cannot spread unknown default family %q", ErrInvalidTheme, name)
		}
		out = append(out, def...)
	}
	return out, nil
}

func compileContent(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(strings.TrimPrefix(p, "./"), '/')
		if err != nil {
			return nil, fmt.Errorf("%w: content pattern %q: %v", ErrInvalidTheme, p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}
