package instrument

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/npm-malwatch/npm-malwatch/internal/attribution"
	"github.com/npm-malwatch/npm-malwatch/pkg/event"
	"github.com/npm-malwatch/npm-malwatch/pkg/sink"
	"github.com/stretchr/testify/require"
)

func newTestSink(t *testing.T) (*sink.Sink, string) {
	t.Helper()
	path := t.TempDir() + "/log.jsonl"
	return sink.New(path, sink.Filter{}), path
}

func readEvents(t *testing.T, path string) []event.Event {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var out []event.Event
	for _, line := range strings.Split(string(data), "\n") {
		if len(line) == 0 {
			continue
		}
		evt, err := event.Unmarshal([]byte(line))
		require.NoError(t, err)
		out = append(out, evt)
	}
	return out
}

func TestWrapEmitsOKEventAndReturnsResult(t *testing.T) {
	s, path := newTestSink(t)
	defer s.Close()

	reg := NewRegistry("sess-1", 100, 1, s)
	readFileOp := Wrap[string, string](
		reg,
		event.OpFSReadFileSync,
		event.CategoryFS,
		func(input string) event.Args { return event.Args{Path: input} },
		FuncOp[string, string](func(ctx context.Context, input string) (string, error) {
			return "contents", nil
		}),
	)

	ctx := attribution.WithPackage(context.Background(), "left-pad")
	out, err := readFileOp.Call(ctx, "/tmp/x.txt")
	require.NoError(t, err)
	require.Equal(t, "contents", out)
	require.NoError(t, s.Close())

	events := readEvents(t, path)
	require.Len(t, events, 1)
	require.Equal(t, "left-pad", events[0].Pkg)
	require.Equal(t, event.OpFSReadFileSync, events[0].Op)
	require.Equal(t, event.CategoryFS, events[0].Category)
	require.Equal(t, event.ResultOK, events[0].Result)
	require.Equal(t, "/tmp/x.txt", events[0].Args.Path)
	require.Nil(t, events[0].Error)
}

func TestWrapEmitsErrorEventAndReRaises(t *testing.T) {
	s, path := newTestSink(t)
	defer s.Close()

	reg := NewRegistry("sess-1", 100, 1, s)
	boom := errors.New("permission denied")
	writeOp := Wrap[string, struct{}](
		reg,
		event.OpFSWriteFileSync,
		event.CategoryFS,
		func(input string) event.Args { return event.Args{Path: input} },
		FuncOp[string, struct{}](func(ctx context.Context, input string) (struct{}, error) {
			return struct{}{}, boom
		}),
	)

	ctx := attribution.WithPackage(context.Background(), "evil-pkg")
	_, err := writeOp.Call(ctx, "/etc/passwd")
	require.ErrorIs(t, err, boom)
	require.NoError(t, s.Close())

	events := readEvents(t, path)
	require.Len(t, events, 1)
	require.Equal(t, event.ResultError, events[0].Result)
	require.NotNil(t, events[0].Error)
	require.Equal(t, "permission denied", events[0].Error.Message)
}

func TestWrapFallsBackToStackIdentityWithoutAttribution(t *testing.T) {
	prev := StackFrames
	defer func() { StackFrames = prev }()
	StackFrames = func(ctx context.Context) []string {
		return []string{"/repo/node_modules/chalk/index.js:1:1"}
	}

	s, path := newTestSink(t)
	defer s.Close()

	reg := NewRegistry("sess-1", 100, 1, s)
	op := Wrap[string, string](
		reg,
		event.OpFSReadFileSync,
		event.CategoryFS,
		func(input string) event.Args { return event.Args{Path: input} },
		FuncOp[string, string](func(ctx context.Context, input string) (string, error) {
			return "", nil
		}),
	)

	_, err := op.Call(context.Background(), "/tmp/a")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	events := readEvents(t, path)
	require.Len(t, events, 1)
	require.Equal(t, "chalk", events[0].Pkg)
}

func TestCheckTamperOnlyFiresWhenDetectAndMarkerMissing(t *testing.T) {
	s, _ := newTestSink(t)
	defer s.Close()
	reg := NewRegistry("sess-1", 100, 1, s)

	op := Wrap[string, string](
		reg,
		event.OpFSWriteFileSync,
		event.CategoryFS,
		func(input string) event.Args { return event.Args{} },
		FuncOp[string, string](func(ctx context.Context, input string) (string, error) { return "", nil }),
	)
	_ = op

	// off: no events regardless of missing markers.
	require.Nil(t, CheckTamper(reg, HardeningOff, DefaultCheckSet))

	// detect: fs.writeFileSync is registered, the other three are not.
	events := CheckTamper(reg, HardeningDetect, DefaultCheckSet)
	require.Len(t, events, 3)
	for _, evt := range events {
		require.Equal(t, event.OpTamper, evt.Op)
		require.Equal(t, event.PkgMalwatch, evt.Pkg)
		require.Equal(t, "wrapper_missing", evt.Args.Reason)
		require.NotEqual(t, event.OpFSWriteFileSync, evt.Args.Target)
	}
}

func TestCheckTamperDetectsExplicitlyClearedMarker(t *testing.T) {
	s, _ := newTestSink(t)
	defer s.Close()
	reg := NewRegistry("sess-1", 100, 1, s)
	reg.register(event.OpChildSpawn)
	reg.Tamper(event.OpChildSpawn)

	events := CheckTamper(reg, HardeningDetect, []string{event.OpChildSpawn})
	require.Len(t, events, 1)
	require.Equal(t, event.OpChildSpawn, events[0].Args.Target)
}

func TestRunTamperCheckEmitsThroughSink(t *testing.T) {
	s, path := newTestSink(t)
	defer s.Close()
	reg := NewRegistry("sess-1", 100, 1, s)

	RunTamperCheck(reg, HardeningDetect, []string{event.OpDNSLookup})
	require.NoError(t, s.Close())

	events := readEvents(t, path)
	require.Len(t, events, 1)
	require.Equal(t, event.OpTamper, events[0].Op)
	require.Equal(t, event.OpDNSLookup, events[0].Args.Target)
}
