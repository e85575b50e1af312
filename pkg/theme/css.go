package theme

import (
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Source is a content file scanned for class references.
type Source struct {
	Path string
	Data []byte
}

// Sources walks fsys and returns the files matching the theme's content
// globs, in walk order.
func (t *Theme) Sources(fsys fs.FS) ([]Source, error) {
	globs, err := compileContent(t.Content)
	if err != nil {
		return nil, err
	}

	var out []Source
	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		for _, g := range globs {
			if g.Match(path) {
				data, err := fs.ReadFile(fsys, path)
				if err != nil {
					return err
				}
				out = append(out, Source{Path: path, Data: data})
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("theme: scan content: %w", err)
	}
	return out, nil
}

// colorUtilities maps a class prefix to the CSS property it sets.
var colorUtilities = map[string]string{
	"bg":     "background-color",
	"text":   "color",
	"border": "border-color",
}

var classRefRe = regexp.MustCompile(`\b(bg|text|border)-([a-z]+)-(\d{2,3})\b`)

// genericFamilies are CSS keywords that must not be quoted.
var genericFamilies = map[string]bool{
	"serif": true, "sans-serif": true, "monospace": true, "cursive": true,
	"fantasy": true, "system-ui": true, "ui-serif": true, "ui-sans-serif": true,
	"ui-monospace": true, "ui-rounded": true, "emoji": true, "math": true,
}

// CSS renders the theme as a stylesheet: custom properties for every role
// and shade, colour utilities for the classes referenced in sources, and a
// font utility per family. The output is deterministic.
func (t *Theme) CSS(sources []Source) string {
	var b strings.Builder

	b.WriteString(":root {\n")
	for _, role := range t.Roles() {
		for _, shade := range Shades {
			if hex, ok := t.Color(role, shade); ok {
				fmt.Fprintf(&b, "  --color-%s-%d: %s;\n", role, shade, hex)
			}
		}
	}
	b.WriteString("}\n")

	for _, class := range t.ReferencedClasses(sources) {
		m := classRefRe.FindStringSubmatch(class)
		fmt.Fprintf(&b, ".%s { %s: var(--color-%s-%s); }\n", class, colorUtilities[m[1]], m[2], m[3])
	}

	for _, name := range t.Families() {
		fmt.Fprintf(&b, ".font-%s { font-family: %s; }\n", name, fontStack(t.FontFamily[name]))
	}
	return b.String()
}

// ReferencedClasses returns the sorted, de-duplicated colour utility classes
// in sources that resolve against the theme.
func (t *Theme) ReferencedClasses(sources []Source) []string {
	seen := make(map[string]bool)
	for _, src := range sources {
		for _, m := range classRefRe.FindAllSubmatch(src.Data, -1) {
			role := string(m[2])
			shade, err := strconv.Atoi(string(m[3]))
			if err != nil {
				continue
			}
			if _, ok := t.Color(role, shade); ok {
				seen[string(m[0])] = true
			}
		}
	}

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

func fontStack(fonts []string) string {
	parts := make([]string, len(fonts))
	for i, f := range fonts {
		if genericFamilies[f] || !strings.ContainsAny(f, " \"'") {
			parts[i] = f
		} else {
			parts[i] = strconv.Quote(f)
		}
	}
	return strings.Join(parts, ", ")
}
