package normalize

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// UnitPath maps a path reported by an analyzer onto the corpus-relative,
// slash-separated form used for unit paths. Analyzers report paths as
// absolute paths, file:// URIs, paths relative to the corpus root or paths
// relative to the directory the analyzer ran in (cwd). Paths that resolve
// outside root are returned cleaned and absolute; they never match a unit.
func UnitPath(raw, root, cwd string) string {
	p := strings.TrimSpace(raw)
	if p == "" {
		return ""
	}

	if strings.HasPrefix(p, "file:") {
		if u, err := url.Parse(p); err == nil && u.Path != "" {
			p = u.Path
		} else {
			p = strings.TrimPrefix(strings.TrimPrefix(p, "file://"), "file:")
		}
	} else if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	p = filepath.FromSlash(p)

	homeDir, _ := os.UserHomeDir()
	absRoot := expandPath(root, cwd, homeDir)

	if !filepath.IsAbs(p) && !strings.HasPrefix(p, "~") {
		// Relative paths are tried against the corpus root first.
		candidate := filepath.Join(absRoot, p)
		if _, err := os.Stat(candidate); err == nil || cwd == "" {
			p = candidate
		} else {
			p = expandPath(p, cwd, homeDir)
		}
	} else {
		p = expandPath(p, cwd, homeDir)
	}

	rel, err := filepath.Rel(absRoot, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

func expandPath(path, cwd, homeDir string) string {
	if strings.HasPrefix(path, "~/") && homeDir != "" {
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}

	cleaned := filepath.Clean(path)
	return cleaned
}
