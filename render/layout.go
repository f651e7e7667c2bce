package render

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Layout decides where an artifact lives under the output root.
type Layout string

const (
	// LayoutPerSource writes <root>/<source>/<feature><ext>.
	LayoutPerSource Layout = "per_source"
	// LayoutFlat writes <root>/<source>_<feature><ext>.
	LayoutFlat Layout = "flat"
)

// ParseLayout validates a layout name.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case LayoutPerSource, LayoutFlat:
		return l, nil
	case "":
		return LayoutPerSource, nil
	default:
		return "", fmt.Errorf("unknown layout %q", s)
	}
}

// Path returns the artifact path for a source display name and feature.
// Path separators in the source name are replaced.
func (l Layout) Path(root, source, feature, ext string) string {
	source = sanitize(source)
	if l == LayoutFlat {
		return filepath.Join(root, source+"_"+feature+ext)
	}
	return filepath.Join(root, source, feature+ext)
}

func sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
