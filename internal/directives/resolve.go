package directives

import (
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// resolvePath resolves a directive path argument. Order: the path as given
// when absolute, then relative to the process working directory, then
// relative to the configured base directory. First existing match wins; when
// nothing matches the error lists every attempted location.
func resolvePath(kind, arg, baseDir string, wantDir bool) (string, error) {
	if filepath.IsAbs(arg) {
		if statMatches(arg, wantDir) {
			return filepath.Clean(arg), nil
		}
		return "", &ResolutionError{Kind: kind, Path: arg, Tried: []string{filepath.Clean(arg)}}
	}

	var tried []string
	if cwd, err := os.Getwd(); err == nil {
		cand := filepath.Join(cwd, arg)
		tried = append(tried, cand)
		if statMatches(cand, wantDir) {
			return cand, nil
		}
	}
	cand := filepath.Join(baseDir, arg)
	tried = append(tried, cand)
	if statMatches(cand, wantDir) {
		return cand, nil
	}

	return "", &ResolutionError{Kind: kind, Path: arg, Tried: tried}
}

func statMatches(path string, wantDir bool) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir() == wantDir
}

// isRemoteURL reports whether arg is an http(s) URL.
func isRemoteURL(arg string) bool {
	u, err := url.Parse(arg)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// completePath suggests filesystem completions for a partial path. keep
// filters candidates by extension; directories always pass.
func completePath(baseDir, partial string, keep func(ext string) bool) []string {
	dir, prefix := filepath.Split(partial)

	searchDirs := []string{}
	if filepath.IsAbs(partial) {
		searchDirs = append(searchDirs, dir)
	} else {
		if cwd, err := os.Getwd(); err == nil {
			searchDirs = append(searchDirs, filepath.Join(cwd, dir))
		}
		searchDirs = append(searchDirs, filepath.Join(baseDir, dir))
	}

	seen := map[string]bool{}
	var out []string
	for _, sd := range searchDirs {
		entries, err := os.ReadDir(sd)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			if !e.IsDir() && keep != nil && !keep(strings.ToLower(filepath.Ext(name))) {
				continue
			}
			cand := dir + name
			if e.IsDir() {
				cand += string(filepath.Separator)
			}
			if !seen[cand] {
				seen[cand] = true
				out = append(out, cand)
			}
		}
	}
	sort.Strings(out)
	return out
}
