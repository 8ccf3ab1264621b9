// Package idnorm implements package-identity normalization (§3, §4.A):
// deriving a PackageIdentity from a node_modules file path, and collapsing
// package-manager internals to their sentinel identity.
//
// These are the same rules rendered into the generated preload's identify()
// fallback (see pkg/preload) — this package is the single source of truth,
// directly unit-tested, and also used by pkg/preflight and pkg/rootgraph to
// decide whether a scanned manifest belongs to a package manager.
package idnorm

import (
	"regexp"
	"strings"

	"github.com/npm-malwatch/npm-malwatch/pkg/event"
)

// NodeModulesPatternSource is the regex source for the last
// node_modules/(@scope/)?name segment in a path, which is what determines
// attribution for a call site. Exported so pkg/preload can render the
// identical pattern into the generated JS identify() function.
const NodeModulesPatternSource = `node_modules/(@[^/]+/[^/]+|[^/]+)(?:/|$)`

var nodeModulesPattern = regexp.MustCompile(NodeModulesPatternSource)

// RuntimeInternalPrefixes are path prefixes excluded from attribution
// scanning (§4.A step 2); exported for pkg/preload's template rendering.
var RuntimeInternalPrefixes = []string{"node:", "internal/", "<"}

// FromPath derives the package identity that owns the given file path, per
// the "…/node_modules/X/…" rule in §3. It returns ok=false when no
// node_modules segment is present or the path belongs to a runtime-internal
// frame.
func FromPath(path string) (name string, ok bool) {
	if path == "" {
		return "", false
	}
	for _, prefix := range RuntimeInternalPrefixes {
		if strings.HasPrefix(path, prefix) {
			return "", false
		}
	}
	matches := nodeModulesPattern.FindAllStringSubmatch(path, -1)
	if len(matches) == 0 {
		return "", false
	}
	// Last match wins: the deepest node_modules segment is the one that
	// actually owns the executing code (nested dependency layouts).
	last := matches[len(matches)-1]
	return last[1], true
}

// IsOwnFrame reports whether a stack frame belongs to this tool itself and
// must be excluded from attribution scanning (§4.A step 2).
func IsOwnFrame(path string) bool {
	return strings.Contains(path, "npm-malwatch") || strings.Contains(path, "npm-malwatch-preload")
}

// PMNames are package-manager package names that collapse to a sentinel,
// exported for pkg/preload's template rendering.
var PMNames = map[string]string{
	"npm":  event.PkgNPM,
	"pnpm": event.PkgPNPM,
}

// PMScopes are package-manager-owned scopes that collapse to a sentinel,
// exported for pkg/preload's template rendering.
var PMScopes = map[string]string{
	"@npmcli": event.PkgNPM,
	"@pnpm":   event.PkgPNPM,
}

// CollapsePM returns the package-manager sentinel for a given package name,
// if it matches npm/pnpm or one of their scoped internal packages (§3, §4.A
// step 3). ok is false for ordinary third-party packages.
func CollapsePM(name string) (sentinel string, ok bool) {
	if sentinel, ok := PMNames[name]; ok {
		return sentinel, true
	}
	if scope, _, found := strings.Cut(name, "/"); found {
		if sentinel, ok := PMScopes[scope]; ok {
			return sentinel, true
		}
	}
	return "", false
}

// IsPackageManagerName reports whether name is npm/pnpm or one of their
// scoped internal packages, used by the preflight scanner and root resolver
// to honor includePM=false (§4.G, §4.I).
func IsPackageManagerName(name string) bool {
	_, ok := CollapsePM(name)
	return ok
}

// Identify derives the PackageIdentity for a single candidate path, applying
// both the node_modules extraction and the package-manager collapse. It
// never returns an empty string: callers fall back to event.PkgUnknown.
func Identify(path string) string {
	name, ok := FromPath(path)
	if !ok {
		return event.PkgUnknown
	}
	if sentinel, ok := CollapsePM(name); ok {
		return sentinel
	}
	return name
}

// IdentifyStack scans a synthetic stack (top-down, most-recent frame first)
// and returns the first frame that resolves to a package identity, skipping
// runtime-internal and this tool's own frames (§4.A step 2).
func IdentifyStack(frames []string) string {
	for _, frame := range frames {
		if IsOwnFrame(frame) {
			continue
		}
		if name, ok := FromPath(frame); ok {
			if sentinel, ok := CollapsePM(name); ok {
				return sentinel
			}
			return name
		}
	}
	return event.PkgUnknown
}
