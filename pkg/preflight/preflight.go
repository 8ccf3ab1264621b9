// Package preflight implements the preflight scanner (§4.G): it enumerates
// every package.json manifest under a node_modules tree, flat and
// content-addressed (pnpm) layouts alike, and reports the scripts each
// package declares.
//
// Modeled on yaklabco-dot's internal/scanner tree-walk style (plain
// os.ReadDir recursion, errors wrapped with fmt.Errorf), adapted from a
// generic filesystem tree to the two node_modules layouts this spec names.
package preflight

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/npm-malwatch/npm-malwatch/internal/idnorm"
	"github.com/npm-malwatch/npm-malwatch/internal/redact"
	"github.com/npm-malwatch/npm-malwatch/pkg/malerr"
)

// DefaultScriptKeys are the lifecycle script keys collected when the
// caller requests none explicitly (§3 PreflightReport).
var DefaultScriptKeys = []string{"preinstall", "install", "postinstall", "prepare"}

// MaxScriptValue is the truncation cap applied to each collected script
// value (§3).
const MaxScriptValue = 1000

// PackageEntry is one manifest whose scripts intersect the requested keys.
type PackageEntry struct {
	Name    string            `json:"name"`
	Version string            `json:"version"`
	Path    string            `json:"path"`
	Scripts map[string]string `json:"scripts"`
}

// Report is the PreflightReport described in §3.
type Report struct {
	Command      string         `json:"command"`
	Root         string         `json:"root"`
	ScannedCount int            `json:"scannedCount"`
	ParseErrors  int            `json:"parseErrors"`
	Truncated    bool           `json:"truncated"`
	Entries      []PackageEntry `json:"entries"`
}

// Options controls the scan.
type Options struct {
	// ScriptKeys is the set of lifecycle script keys to collect. Empty
	// means DefaultScriptKeys.
	ScriptKeys []string
	// MaxPackages bounds the number of manifests scanned; 0 means
	// unlimited (no truncation ever reported).
	MaxPackages int
	// IncludePM, when false, drops entries identified as a package
	// manager (npm/pnpm and their internal scoped packages).
	IncludePM bool
}

type manifestFile struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	ManifestPath string            `json:"-"`
	Scripts      map[string]string `json:"scripts"`
}

// Scan walks root's node_modules directory and builds a Report for the
// given command (e.g. "npm install --ignore-scripts").
func Scan(command, root string, opts Options) (Report, error) {
	keys := opts.ScriptKeys
	if len(keys) == 0 {
		keys = DefaultScriptKeys
	}

	report := Report{Command: command, Root: root}

	nodeModules := filepath.Join(root, "node_modules")
	paths, truncated, err := enumerateManifests(nodeModules, opts.MaxPackages)
	if err != nil {
		return report, err
	}
	report.Truncated = truncated

	limit := len(paths)
	if opts.MaxPackages > 0 && limit > opts.MaxPackages {
		limit = opts.MaxPackages
	}

	for _, manifestPath := range paths[:limit] {
		report.ScannedCount++

		mf, err := parseManifest(manifestPath)
		if err != nil {
			report.ParseErrors++
			continue
		}

		name := mf.Name
		if name == "" {
			name = filepath.Base(filepath.Dir(manifestPath))
		}
		if !opts.IncludePM && idnorm.IsPackageManagerName(name) {
			continue
		}

		scripts := intersectScripts(mf.Scripts, keys)
		if len(scripts) == 0 {
			continue
		}

		report.Entries = append(report.Entries, PackageEntry{
			Name:    name,
			Version: mf.Version,
			Path:    manifestPath,
			Scripts: scripts,
		})
	}

	return report, nil
}

func intersectScripts(scripts map[string]string, keys []string) map[string]string {
	if len(scripts) == 0 {
		return nil
	}
	out := make(map[string]string)
	for _, key := range keys {
		if v, ok := scripts[key]; ok {
			out[key] = redact.TruncateString(v, MaxScriptValue)
		}
	}
	return out
}

func parseManifest(path string) (manifestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return manifestFile{}, malerr.ManifestParseError{Path: path, Err: err}
	}

	var mf manifestFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return manifestFile{}, malerr.ManifestParseError{Path: path, Err: err}
	}
	mf.ManifestPath = path
	return mf, nil
}

// enumerateManifests collects package.json paths in both the flat and
// content-addressed (.pnpm) layouts, deterministically ASCII-sorted
// case-insensitively, up to max+1 entries (0 keeps collecting everything)
// so callers can detect truncation without scanning the whole tree twice.
func enumerateManifests(nodeModules string, max int) (paths []string, truncated bool, err error) {
	limit := -1
	if max > 0 {
		limit = max + 1
	}

	var collect func(dir string) error
	seen := map[string]bool{}
	add := func(p string) bool {
		if seen[p] {
			return true
		}
		seen[p] = true
		paths = append(paths, p)
		return limit < 0 || len(paths) < limit
	}

	collect = func(dir string) error {
		names, err := sortedDirNames(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("preflight: read dir %q: %w", dir, err)
		}

		for _, name := range names {
			if limit >= 0 && len(paths) >= limit {
				return nil
			}
			if name == ".bin" {
				continue
			}

			childDir := filepath.Join(dir, name)

			if name == ".pnpm" {
				if err := collectContentAddressed(childDir, add); err != nil {
					return err
				}
				continue
			}

			if strings.HasPrefix(name, "@") {
				scopedNames, err := sortedDirNames(childDir)
				if err != nil {
					continue
				}
				for _, scoped := range scopedNames {
					if limit >= 0 && len(paths) >= limit {
						return nil
					}
					manifest := filepath.Join(childDir, scoped, "package.json")
					if fileExists(manifest) {
						if !add(manifest) {
							return nil
						}
					}
				}
				continue
			}

			manifest := filepath.Join(childDir, "package.json")
			if fileExists(manifest) {
				if !add(manifest) {
					return nil
				}
			}
		}
		return nil
	}

	if err := collect(nodeModules); err != nil {
		return nil, false, err
	}

	if limit >= 0 && len(paths) >= limit {
		return paths, true, nil
	}
	return paths, false, nil
}

// collectContentAddressed walks <nodeModules>/.pnpm/<entry>/node_modules/…
// using the same flat rules as the top-level tree.
func collectContentAddressed(pnpmDir string, add func(string) bool) error {
	entries, err := sortedDirNames(pnpmDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("preflight: read dir %q: %w", pnpmDir, err)
	}

	for _, entry := range entries {
		innerNodeModules := filepath.Join(pnpmDir, entry, "node_modules")
		names, err := sortedDirNames(innerNodeModules)
		if err != nil {
			continue
		}
		for _, name := range names {
			if name == ".bin" || name == ".pnpm" {
				continue
			}
			childDir := filepath.Join(innerNodeModules, name)
			if strings.HasPrefix(name, "@") {
				scopedNames, err := sortedDirNames(childDir)
				if err != nil {
					continue
				}
				for _, scoped := range scopedNames {
					manifest := filepath.Join(childDir, scoped, "package.json")
					if fileExists(manifest) {
						if !add(manifest) {
							return nil
						}
					}
				}
				continue
			}
			manifest := filepath.Join(childDir, "package.json")
			if fileExists(manifest) {
				if !add(manifest) {
					return nil
				}
			}
		}
	}
	return nil
}

func sortedDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ShouldIgnoreScripts reports whether command looks like an install-like
// invocation whose second (or any) token matches {install, i, add, ci}
// (§4.F preflight mode).
func ShouldIgnoreScripts(argv []string) bool {
	for _, tok := range argv {
		switch tok {
		case "install", "i", "add", "ci":
			return true
		}
	}
	return false
}

// AppendIgnoreScripts appends --ignore-scripts to argv unless already
// present, idempotently (§4.F).
func AppendIgnoreScripts(argv []string) []string {
	for _, tok := range argv {
		if tok == "--ignore-scripts" {
			return argv
		}
	}
	out := make([]string, len(argv), len(argv)+1)
	copy(out, argv)
	return append(out, "--ignore-scripts")
}
