// Package aggregate implements the aggregator (§4.H): it streams an event
// log line-by-line and builds a by-package usage summary plus top-N detail
// tables for the most frequently touched paths, commands, and hosts.
//
// Modeled on the teacher's pkg/ledger/ingest.go bufio.Scanner line loop with
// a per-record field switch, replacing its SQL emission with in-memory
// counters since this summary is never persisted relationally.
package aggregate

import (
	"bufio"
	"io"
	"sort"
	"strings"

	"github.com/npm-malwatch/npm-malwatch/internal/redact"
	"github.com/npm-malwatch/npm-malwatch/pkg/event"
)

const maxLineBytes = 10 * 1024 * 1024

// DefaultTopN is the default size of each detail table (§3 Summary).
const DefaultTopN = 10

// PackageCounts holds the per-package operation tallies in Summary.byPackage.
type PackageCounts struct {
	FSRead  int `json:"fs_read"`
	FSWrite int `json:"fs_write"`
	Proc    int `json:"proc"`
	DNS     int `json:"dns"`
	Net     int `json:"net"`
}

// DetailEntry is one row of a top-N table: a key (path/command/host) with
// its total count and the top-3 contributing packages.
type DetailEntry struct {
	Key         string         `json:"key"`
	Count       int            `json:"count"`
	TopPackages []PackageTally `json:"topPackages"`
}

// PackageTally is one package's contribution count within a DetailEntry.
type PackageTally struct {
	Pkg   string `json:"pkg"`
	Count int    `json:"count"`
}

// Summary is the aggregation result described in §3.
type Summary struct {
	TotalEvents   int                      `json:"totalEvents"`
	ByPackage     map[string]PackageCounts `json:"byPackage"`
	RootByPackage map[string]*string       `json:"rootByPackage"`
	TopFSWrites   []DetailEntry            `json:"topFsWrites"`
	TopCommands   []DetailEntry            `json:"topCommands"`
	TopDNS        []DetailEntry            `json:"topDns"`
	TopNet        []DetailEntry            `json:"topNet"`
}

// keyAccumulator tracks total count and per-package breakdown for one
// detail-table key, plus insertion order for stable tie-breaking.
type keyAccumulator struct {
	key      string
	total    int
	order    int
	byPkg    map[string]int
	pkgOrder []string
}

// Stream aggregates r (an open JSONL event log) into a Summary. Malformed
// lines are skipped; the record count they would have contributed to
// TotalEvents is likewise skipped, matching §4.H's "for each parseable
// record" scope.
func Stream(r io.Reader, topN int) (Summary, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}

	byPackage := make(map[string]PackageCounts)
	fsWrites := newKeySet()
	commands := newKeySet()
	dnsHosts := newKeySet()
	netHosts := newKeySet()

	total := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		evt, err := event.Unmarshal(line)
		if err != nil {
			continue
		}

		total++
		counts := byPackage[evt.Pkg]

		switch evt.Category {
		case event.CategoryFS:
			if isFSRead(evt.Op) {
				counts.FSRead++
			} else {
				counts.FSWrite++
				if p := evt.Args.Path; p != "" {
					fsWrites.add(p, evt.Pkg)
				}
			}
		case event.CategoryProc:
			counts.Proc++
			if cmd := procCommand(evt); cmd != "" {
				commands.add(cmd, evt.Pkg)
			}
		case event.CategoryDNS:
			counts.DNS++
			if h := evt.Args.Host; h != "" {
				dnsHosts.add(h, evt.Pkg)
			}
		case event.CategoryNet:
			counts.Net++
			if h := netHost(evt); h != "" {
				netHosts.add(h, evt.Pkg)
			}
		}

		byPackage[evt.Pkg] = counts
	}
	if err := scanner.Err(); err != nil {
		return Summary{}, err
	}

	return Summary{
		TotalEvents: total,
		ByPackage:   byPackage,
		TopFSWrites: fsWrites.topN(topN),
		TopCommands: commands.topN(topN),
		TopDNS:      dnsHosts.topN(topN),
		TopNet:      netHosts.topN(topN),
	}, nil
}

// fsWriteVerbs is the set of fs member names (promise/callback/sync suffix
// stripped) that mutate the filesystem, per §4.H. Everything else -
// including stat/lstat/readlink/realpath/open/close and plain reads -
// defaults to fs_read so unclassified fs calls are never hidden from the
// summary.
var fsWriteVerbs = map[string]bool{
	"writeFile":         true,
	"appendFile":        true,
	"chmod":             true,
	"chown":             true,
	"unlink":            true,
	"mkdir":             true,
	"rmdir":             true,
	"rm":                true,
	"rename":            true,
	"copyFile":          true,
	"createWriteStream": true,
}

// isFSRead classifies an fs op name per §4.H. The op's last path segment
// (e.g. "writeFileSync" from "fs.writeFileSync", or "writeFile" from
// "fs.promises.writeFile") has any trailing "Sync" stripped before the
// lookup, so sync, callback, and promise variants of the same verb
// classify identically.
func isFSRead(op string) bool {
	member := op
	if idx := strings.LastIndex(op, "."); idx >= 0 {
		member = op[idx+1:]
	}
	base := strings.TrimSuffix(member, "Sync")
	return !fsWriteVerbs[base]
}

func procCommand(evt event.Event) string {
	var cmd string
	switch {
	case evt.Args.File != "" && len(evt.Args.Argv) > 0:
		parts := make([]string, 0, len(evt.Args.Argv)+1)
		parts = append(parts, evt.Args.File)
		for _, a := range evt.Args.Argv {
			parts = append(parts, toString(a))
		}
		cmd = strings.Join(parts, " ")
	case evt.Args.Command != "":
		cmd = evt.Args.Command
	case evt.Args.File != "":
		cmd = evt.Args.File
	default:
		return ""
	}
	return redact.TruncateString(cmd, 200)
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func netHost(evt event.Event) string {
	if evt.Args.Host != "" {
		return evt.Args.Host
	}
	if evt.Args.Hostname != "" {
		return evt.Args.Hostname
	}
	if evt.Args.Href != "" {
		if host := hostFromHref(evt.Args.Href); host != "" {
			return host
		}
	}
	return ""
}

func hostFromHref(href string) string {
	rest := href
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	}
	if idx := strings.IndexAny(rest, "/?#"); idx >= 0 {
		rest = rest[:idx]
	}
	if idx := strings.LastIndex(rest, "@"); idx >= 0 {
		rest = rest[idx+1:]
	}
	if idx := strings.Index(rest, ":"); idx >= 0 {
		rest = rest[:idx]
	}
	return rest
}

// keySet accumulates counts and per-package breakdowns for one detail
// table, preserving first-seen order for stable tie-breaking.
type keySet struct {
	order []string
	byKey map[string]*keyAccumulator
}

func newKeySet() *keySet {
	return &keySet{byKey: make(map[string]*keyAccumulator)}
}

func (s *keySet) add(key, pkg string) {
	acc, ok := s.byKey[key]
	if !ok {
		acc = &keyAccumulator{key: key, order: len(s.order), byPkg: make(map[string]int)}
		s.byKey[key] = acc
		s.order = append(s.order, key)
	}
	acc.total++
	if _, ok := acc.byPkg[pkg]; !ok {
		acc.pkgOrder = append(acc.pkgOrder, pkg)
	}
	acc.byPkg[pkg]++
}

func (s *keySet) topN(n int) []DetailEntry {
	accs := make([]*keyAccumulator, 0, len(s.order))
	for _, key := range s.order {
		accs = append(accs, s.byKey[key])
	}
	sort.SliceStable(accs, func(i, j int) bool {
		if accs[i].total != accs[j].total {
			return accs[i].total > accs[j].total
		}
		return accs[i].order < accs[j].order
	})
	if len(accs) > n {
		accs = accs[:n]
	}

	out := make([]DetailEntry, 0, len(accs))
	for _, acc := range accs {
		out = append(out, DetailEntry{
			Key:         acc.key,
			Count:       acc.total,
			TopPackages: topPackages(acc),
		})
	}
	return out
}

func topPackages(acc *keyAccumulator) []PackageTally {
	tallies := make([]PackageTally, 0, len(acc.pkgOrder))
	orderIndex := make(map[string]int, len(acc.pkgOrder))
	for i, pkg := range acc.pkgOrder {
		orderIndex[pkg] = i
		tallies = append(tallies, PackageTally{Pkg: pkg, Count: acc.byPkg[pkg]})
	}
	sort.SliceStable(tallies, func(i, j int) bool {
		if tallies[i].Count != tallies[j].Count {
			return tallies[i].Count > tallies[j].Count
		}
		return orderIndex[tallies[i].Pkg] < orderIndex[tallies[j].Pkg]
	})
	if len(tallies) > 3 {
		tallies = tallies[:3]
	}
	return tallies
}

// MergeRoots merges a root-resolver result (pkg -> joined roots, or nil if
// unreachable) into s, as required after §4.H hands byPackage's keys to
// §4.I (pkg/rootgraph).
func (s *Summary) MergeRoots(roots map[string]*string) {
	if s.RootByPackage == nil {
		s.RootByPackage = make(map[string]*string, len(roots))
	}
	for pkg, root := range roots {
		s.RootByPackage[pkg] = root
	}
}

// PackageNames returns the keys of ByPackage, for handing to pkg/rootgraph.
func (s Summary) PackageNames() []string {
	names := make([]string, 0, len(s.ByPackage))
	for pkg := range s.ByPackage {
		names = append(names, pkg)
	}
	sort.Strings(names)
	return names
}
