package aggregate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func jsonl(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func TestStreamClassifiesFSReadAndWrite(t *testing.T) {
	log := jsonl(
		`{"ts":1,"session":"s","pid":1,"ppid":0,"pkg":"left-pad","op":"fs.readFileSync","category":"fs","args":{"path":"/a"},"result":"ok"}`,
		`{"ts":2,"session":"s","pid":1,"ppid":0,"pkg":"left-pad","op":"fs.writeFileSync","category":"fs","args":{"path":"/b"},"result":"ok"}`,
		`{"ts":3,"session":"s","pid":1,"ppid":0,"pkg":"left-pad","op":"fs.statSync","category":"fs","args":{"path":"/c"},"result":"ok"}`,
	)

	summary, err := Stream(strings.NewReader(log), 10)
	require.NoError(t, err)
	require.Equal(t, 3, summary.TotalEvents)
	counts := summary.ByPackage["left-pad"]
	require.Equal(t, 2, counts.FSRead) // readFileSync + unclassified statSync
	require.Equal(t, 1, counts.FSWrite)
}

func TestStreamBuildsTopWriteTableWithContributingPackages(t *testing.T) {
	log := jsonl(
		`{"ts":1,"pkg":"a","op":"fs.writeFileSync","category":"fs","args":{"path":"/shared"},"result":"ok"}`,
		`{"ts":2,"pkg":"b","op":"fs.writeFileSync","category":"fs","args":{"path":"/shared"},"result":"ok"}`,
		`{"ts":3,"pkg":"a","op":"fs.writeFileSync","category":"fs","args":{"path":"/shared"},"result":"ok"}`,
		`{"ts":4,"pkg":"c","op":"fs.writeFileSync","category":"fs","args":{"path":"/other"},"result":"ok"}`,
	)

	summary, err := Stream(strings.NewReader(log), 10)
	require.NoError(t, err)
	require.Len(t, summary.TopFSWrites, 2)
	require.Equal(t, "/shared", summary.TopFSWrites[0].Key)
	require.Equal(t, 3, summary.TopFSWrites[0].Count)
	require.Equal(t, "a", summary.TopFSWrites[0].TopPackages[0].Pkg)
	require.Equal(t, 2, summary.TopFSWrites[0].TopPackages[0].Count)
}

func TestStreamSynthesizesProcCommand(t *testing.T) {
	log := jsonl(
		`{"ts":1,"pkg":"evil","op":"child_process.spawn","category":"proc","args":{"file":"curl","argv":["curl","http://x"]},"result":"ok"}`,
	)
	summary, err := Stream(strings.NewReader(log), 10)
	require.NoError(t, err)
	require.Len(t, summary.TopCommands, 1)
	require.Equal(t, "curl curl http://x", summary.TopCommands[0].Key)
}

func TestStreamDerivesNetHostFromHref(t *testing.T) {
	log := jsonl(
		`{"ts":1,"pkg":"evil","op":"http.get","category":"net","args":{"href":"https://evil.example.com:8443/path"},"result":"ok"}`,
	)
	summary, err := Stream(strings.NewReader(log), 10)
	require.NoError(t, err)
	require.Len(t, summary.TopNet, 1)
	require.Equal(t, "evil.example.com", summary.TopNet[0].Key)
}

func TestStreamSkipsMalformedLines(t *testing.T) {
	log := jsonl(
		`not json`,
		`{"ts":1,"pkg":"a","op":"dns.lookup","category":"dns","args":{"host":"example.com"},"result":"ok"}`,
	)
	summary, err := Stream(strings.NewReader(log), 10)
	require.NoError(t, err)
	require.Equal(t, 1, summary.TotalEvents)
	require.Len(t, summary.TopDNS, 1)
}

func TestMergeRootsAndPackageNames(t *testing.T) {
	summary := Summary{ByPackage: map[string]PackageCounts{"b": {}, "a": {}}}
	require.Equal(t, []string{"a", "b"}, summary.PackageNames())

	root := "a"
	summary.MergeRoots(map[string]*string{"a": &root, "b": nil})
	require.Equal(t, &root, summary.RootByPackage["a"])
	require.Nil(t, summary.RootByPackage["b"])
}
