package batch

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const extension = ".png"

func isPNG(path string) bool {
	return strings.EqualFold(filepath.Ext(path), extension)
}

// Discover expands targets into PNG files. Files are taken as given (when
// they carry the extension), directories are walked recursively and their
// matches sorted. Paths resolving to the same file are only listed once, at
// their first position. Missing targets and unreadable entries are logged
// and skipped.
func Discover(targets []string) ([]string, error) {
	var out []string
	for _, target := range targets {
		fi, err := os.Stat(target)
		if err != nil {
			log.Printf("warning: skipping target %s: %v", target, err)
			continue
		}
		if !fi.IsDir() {
			if isPNG(target) {
				out = append(out, target)
			}
			continue
		}

		var found []string
		err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Printf("warning: skipping %s: %v", path, err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && isPNG(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return dedupe(out), nil
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		key := resolve(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func resolve(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
