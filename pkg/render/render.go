// Package render formats an aggregate.Summary or preflight.Report for a
// human (colorized lipgloss table, matching yaklabco-dot's muted
// professional ColorScheme), or for machine consumption (JSON, CSV).
//
// §6 requires the orchestrator to emit the summary in text or JSON form
// and always write a sibling CSV; preflight mode always writes a JSON
// report plus a sibling CSV.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/npm-malwatch/npm-malwatch/pkg/aggregate"
	"github.com/npm-malwatch/npm-malwatch/pkg/preflight"
)

// Scheme is the muted professional palette used for the by-package table
// and detail headers; NoColorScheme disables it entirely (NO_COLOR
// convention, honored by the caller when choosing which Scheme to pass).
type Scheme struct {
	Header  lipgloss.Style
	Accent  lipgloss.Style
	Dim     lipgloss.Style
	Warning lipgloss.Style
}

// DefaultScheme returns the colorized palette; NoColorScheme strips all
// styling for plain-text terminals or NO_COLOR.
func DefaultScheme() Scheme {
	return Scheme{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("110")),
		Accent:  lipgloss.NewStyle().Foreground(lipgloss.Color("104")),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("179")),
	}
}

// NoColorScheme renders every style as a no-op.
func NoColorScheme() Scheme {
	return Scheme{}
}

// SummaryText writes a human-readable rendering of s: a by-package count
// table, followed by the top-N detail tables that have any entries.
func SummaryText(w io.Writer, s aggregate.Summary, scheme Scheme) error {
	fmt.Fprintln(w, scheme.Header.Render(fmt.Sprintf("npm-malwatch summary — %d events", s.TotalEvents)))
	fmt.Fprintln(w)

	if len(s.ByPackage) > 0 {
		fmt.Fprintln(w, byPackageTable(s, scheme).Render())
		fmt.Fprintln(w)
	}

	writeDetailTable(w, "Top filesystem writes", s.TopFSWrites, scheme)
	writeDetailTable(w, "Top commands spawned", s.TopCommands, scheme)
	writeDetailTable(w, "Top DNS lookups", s.TopDNS, scheme)
	writeDetailTable(w, "Top network destinations", s.TopNet, scheme)

	return nil
}

func byPackageTable(s aggregate.Summary, scheme Scheme) *table.Table {
	names := s.PackageNames()
	sort.Strings(names)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PACKAGE", "ROOT", "FS READ", "FS WRITE", "PROC", "DNS", "NET")

	for _, name := range names {
		counts := s.ByPackage[name]
		root := ""
		if r := s.RootByPackage[name]; r != nil {
			root = *r
		}
		t.Row(name, scheme.Dim.Render(root),
			strconv.Itoa(counts.FSRead), strconv.Itoa(counts.FSWrite),
			strconv.Itoa(counts.Proc), strconv.Itoa(counts.DNS), strconv.Itoa(counts.Net))
	}
	return t
}

func writeDetailTable(w io.Writer, title string, entries []aggregate.DetailEntry, scheme Scheme) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintln(w, scheme.Accent.Render(title))

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("KEY", "COUNT", "TOP PACKAGES")

	for _, e := range entries {
		t.Row(e.Key, strconv.Itoa(e.Count), formatTopPackages(e.TopPackages))
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w)
}

func formatTopPackages(tallies []aggregate.PackageTally) string {
	out := ""
	for i, p := range tallies {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s (%d)", p.Pkg, p.Count)
	}
	return out
}

// SummaryJSON writes s as indented JSON.
func SummaryJSON(w io.Writer, s aggregate.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// SummaryCSV writes one row per package in s.ByPackage: the always-written
// sibling artifact described in §6.
func SummaryCSV(w io.Writer, s aggregate.Summary) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"package", "root", "fs_read", "fs_write", "proc", "dns", "net"}); err != nil {
		return err
	}

	names := s.PackageNames()
	sort.Strings(names)
	for _, name := range names {
		counts := s.ByPackage[name]
		root := ""
		if r := s.RootByPackage[name]; r != nil {
			root = *r
		}
		row := []string{
			name, root,
			strconv.Itoa(counts.FSRead), strconv.Itoa(counts.FSWrite),
			strconv.Itoa(counts.Proc), strconv.Itoa(counts.DNS), strconv.Itoa(counts.Net),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return cw.Error()
}

// PreflightJSON writes r as indented JSON, the always-written preflight
// report artifact (§6).
func PreflightJSON(w io.Writer, r preflight.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PreflightCSV writes one row per (package, script key) pair found in r,
// the sibling CSV always written alongside the JSON report.
func PreflightCSV(w io.Writer, r preflight.Report) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"package", "version", "path", "script", "command"}); err != nil {
		return err
	}

	for _, entry := range r.Entries {
		keys := make([]string, 0, len(entry.Scripts))
		for key := range entry.Scripts {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			row := []string{entry.Name, entry.Version, entry.Path, key, entry.Scripts[key]}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	return cw.Error()
}
