package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir string, manifest string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(manifest), 0o644))
}

func TestScanFlatLayoutCollectsMatchingScripts(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "node_modules", "left-pad"),
		`{"name":"left-pad","version":"1.0.0","scripts":{"postinstall":"node hook.js","test":"jest"}}`)
	writeManifest(t, filepath.Join(root, "node_modules", "@scope", "thing"),
		`{"name":"@scope/thing","version":"2.0.0","scripts":{"preinstall":"echo hi"}}`)
	writeManifest(t, filepath.Join(root, "node_modules", "quiet-pkg"),
		`{"name":"quiet-pkg","version":"1.0.0"}`)

	report, err := Scan("npm install", root, Options{IncludePM: true})
	require.NoError(t, err)

	require.Equal(t, 3, report.ScannedCount)
	require.Len(t, report.Entries, 2)

	names := map[string]PackageEntry{}
	for _, e := range report.Entries {
		names[e.Name] = e
	}
	require.Equal(t, "node hook.js", names["left-pad"].Scripts["postinstall"])
	require.NotContains(t, names["left-pad"].Scripts, "test")
	require.Equal(t, "echo hi", names["@scope/thing"].Scripts["preinstall"])
}

func TestScanContentAddressedLayout(t *testing.T) {
	root := t.TempDir()
	writeManifest(t,
		filepath.Join(root, "node_modules", ".pnpm", "left-pad@1.0.0", "node_modules", "left-pad"),
		`{"name":"left-pad","version":"1.0.0","scripts":{"install":"node build.js"}}`)

	report, err := Scan("pnpm install", root, Options{IncludePM: true})
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	require.Equal(t, "left-pad", report.Entries[0].Name)
}

func TestScanDropsPackageManagerEntriesWhenIncludePMFalse(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "node_modules", "npm"),
		`{"name":"npm","version":"10.0.0","scripts":{"postinstall":"echo done"}}`)
	writeManifest(t, filepath.Join(root, "node_modules", "left-pad"),
		`{"name":"left-pad","version":"1.0.0","scripts":{"postinstall":"echo done"}}`)

	report, err := Scan("npm install", root, Options{IncludePM: false})
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	require.Equal(t, "left-pad", report.Entries[0].Name)
}

func TestScanReportsParseErrorsAndContinues(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "node_modules", "broken")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte("not json"), 0o644))
	writeManifest(t, filepath.Join(root, "node_modules", "ok-pkg"),
		`{"name":"ok-pkg","version":"1.0.0","scripts":{"install":"noop"}}`)

	report, err := Scan("npm install", root, Options{IncludePM: true})
	require.NoError(t, err)
	require.Equal(t, 1, report.ParseErrors)
	require.Len(t, report.Entries, 1)
}

func TestScanDetectsTruncation(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a-pkg", "b-pkg", "c-pkg"} {
		writeManifest(t, filepath.Join(root, "node_modules", name),
			`{"name":"`+name+`","version":"1.0.0","scripts":{"install":"x"}}`)
	}

	report, err := Scan("npm install", root, Options{IncludePM: true, MaxPackages: 2})
	require.NoError(t, err)
	require.True(t, report.Truncated)
	require.Equal(t, 2, report.ScannedCount)
}

func TestShouldIgnoreScriptsAndAppendIdempotent(t *testing.T) {
	require.True(t, ShouldIgnoreScripts([]string{"npm", "install"}))
	require.True(t, ShouldIgnoreScripts([]string{"npm", "ci"}))
	require.False(t, ShouldIgnoreScripts([]string{"npm", "run", "build"}))

	out := AppendIgnoreScripts([]string{"npm", "install"})
	require.Equal(t, []string{"npm", "install", "--ignore-scripts"}, out)

	out2 := AppendIgnoreScripts(out)
	require.Equal(t, out, out2)
}
