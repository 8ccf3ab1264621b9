// Package rootgraph implements the root resolver (§4.I): it builds a
// directed dependency graph from every manifest under a node_modules tree
// and, for each package, finds which of the project's direct dependencies
// can reach it.
//
// Modeled on yaklabco-dot's internal/planner.DependencyGraph (a
// map-based adjacency structure built by a single constructor function),
// adapted from operation-dependency edges to package-name dependency edges.
package rootgraph

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MaxManifests bounds the number of manifests read when building the graph
// (§4.I: "up to 50 000").
const MaxManifests = 50000

// Graph is a directed package-name dependency graph: edges[p] is the set of
// packages p directly depends on (dependencies ∪ optionalDependencies ∪
// peerDependencies).
type Graph struct {
	edges map[string][]string
}

type manifestDeps struct {
	Name                 string            `json:"name"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
}

func (m manifestDeps) edgeTargets() []string {
	return unionKeys(m.Dependencies, m.OptionalDependencies, m.PeerDependencies)
}

func (m manifestDeps) directRootTargets() []string {
	return unionKeys(m.Dependencies, m.DevDependencies, m.OptionalDependencies, m.PeerDependencies)
}

func unionKeys(maps ...map[string]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range maps {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}

// BuildGraph walks root/node_modules (flat and .pnpm content-addressed
// layouts) and builds the dependency graph, reading at most MaxManifests
// manifests.
func BuildGraph(root string) (*Graph, error) {
	g := &Graph{edges: make(map[string][]string)}

	count := 0
	err := walkManifests(filepath.Join(root, "node_modules"), func(path string, name string) error {
		if count >= MaxManifests {
			return errStopWalk
		}
		count++

		deps, err := readManifestDeps(path)
		if err != nil {
			return nil // best-effort: unreadable manifests contribute no edges
		}
		pkgName := deps.Name
		if pkgName == "" {
			pkgName = name
		}
		g.edges[pkgName] = deps.edgeTargets()
		return nil
	})
	if err != nil && err != errStopWalk {
		return nil, err
	}
	return g, nil
}

var errStopWalk = stopWalkError{}

type stopWalkError struct{}

func (stopWalkError) Error() string { return "rootgraph: manifest limit reached" }

// DirectRoots reads root's own package.json and returns the union of its
// dependencies, devDependencies, optionalDependencies, and
// peerDependencies.
func DirectRoots(root string) ([]string, error) {
	deps, err := readManifestDeps(filepath.Join(root, "package.json"))
	if err != nil {
		return nil, err
	}
	return deps.directRootTargets(), nil
}

// Resolve computes, for each name in packages, the sorted `|`-joined set of
// direct roots (from the slice returned by DirectRoots) that reach it via a
// breadth-first traversal of g. Direct roots always map to themselves, even
// if the traversal does not otherwise reach them. Unreachable packages map
// to nil.
func Resolve(g *Graph, roots []string, packages []string) map[string]*string {
	rootsFor := make(map[string][]string, len(packages))

	for _, root := range roots {
		for _, reached := range bfsReachable(g, root) {
			rootsFor[reached] = append(rootsFor[reached], root)
		}
	}
	for _, root := range roots {
		if !containsString(rootsFor[root], root) {
			rootsFor[root] = append(rootsFor[root], root)
		}
	}

	out := make(map[string]*string, len(packages))
	for _, pkg := range packages {
		reaching, ok := rootsFor[pkg]
		if !ok || len(reaching) == 0 {
			out[pkg] = nil
			continue
		}
		sorted := append([]string(nil), reaching...)
		sort.Strings(sorted)
		sorted = dedupeSorted(sorted)
		joined := strings.Join(sorted, "|")
		out[pkg] = &joined
	}
	return out
}

func bfsReachable(g *Graph, start string) []string {
	visited := map[string]bool{start: true}
	queue := []string{start}
	var out []string

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)

		for _, next := range g.edges[cur] {
			if visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}
	return out
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func dedupeSorted(sorted []string) []string {
	out := sorted[:0]
	var prev string
	for i, s := range sorted {
		if i > 0 && s == prev {
			continue
		}
		out = append(out, s)
		prev = s
	}
	return out
}

func readManifestDeps(path string) (manifestDeps, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return manifestDeps{}, err
	}
	var m manifestDeps
	if err := json.Unmarshal(data, &m); err != nil {
		return manifestDeps{}, err
	}
	return m, nil
}

// walkManifests enumerates package.json paths under nodeModules using the
// same flat + .pnpm content-addressed rules as pkg/preflight, invoking fn
// with each manifest path and its directory-derived package name.
func walkManifests(nodeModules string, fn func(path, dirName string) error) error {
	names, err := readDirNames(nodeModules)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, name := range names {
		if name == ".bin" {
			continue
		}
		dir := filepath.Join(nodeModules, name)

		if name == ".pnpm" {
			if err := walkPnpmStore(dir, fn); err != nil {
				return err
			}
			continue
		}

		if strings.HasPrefix(name, "@") {
			scoped, err := readDirNames(dir)
			if err != nil {
				continue
			}
			for _, s := range scoped {
				manifest := filepath.Join(dir, s, "package.json")
				if fileExists(manifest) {
					if err := fn(manifest, name+"/"+s); err != nil {
						return err
					}
				}
			}
			continue
		}

		manifest := filepath.Join(dir, "package.json")
		if fileExists(manifest) {
			if err := fn(manifest, name); err != nil {
				return err
			}
		}
	}
	return nil
}

func walkPnpmStore(pnpmDir string, fn func(path, dirName string) error) error {
	entries, err := readDirNames(pnpmDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		inner := filepath.Join(pnpmDir, entry, "node_modules")
		names, err := readDirNames(inner)
		if err != nil {
			continue
		}
		for _, name := range names {
			if name == ".bin" || name == ".pnpm" {
				continue
			}
			dir := filepath.Join(inner, name)
			if strings.HasPrefix(name, "@") {
				scoped, err := readDirNames(dir)
				if err != nil {
					continue
				}
				for _, s := range scoped {
					manifest := filepath.Join(dir, s, "package.json")
					if fileExists(manifest) {
						if err := fn(manifest, name+"/"+s); err != nil {
							return err
						}
					}
				}
				continue
			}
			manifest := filepath.Join(dir, "package.json")
			if fileExists(manifest) {
				if err := fn(manifest, name); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func readDirNames(dir string) ([]string, error) {
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
