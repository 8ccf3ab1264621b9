package instrument

import (
	"context"
	"fmt"
	"os"

	"github.com/npm-malwatch/npm-malwatch/internal/attribution"
	"github.com/npm-malwatch/npm-malwatch/pkg/event"
	"github.com/npm-malwatch/npm-malwatch/pkg/sink"
)

// SelfCheck exercises the Go reference wrap/emit/tamper pipeline end to
// end without a Node.js runtime: it wraps a trivial fs-like Func, invokes
// it under an attributed context, confirms an event reached the sink, then
// verifies CheckTamper reports clean and reports tampered after Tamper is
// called. It backs the `selfcheck` CLI diagnostic (§6).
func SelfCheck(ctx context.Context) error {
	dir, err := os.MkdirTemp("", "npm-malwatch-selfcheck-*")
	if err != nil {
		return fmt.Errorf("selfcheck: %w", err)
	}
	defer os.RemoveAll(dir)

	logPath := dir + "/selfcheck.jsonl"
	s := sink.New(logPath, sink.DefaultFilter())
	defer s.Close()

	reg := NewRegistry("selfcheck", os.Getpid(), os.Getppid(), s)

	readFile := Wrap(reg, event.OpFSReadFileSync, event.CategoryFS,
		func(path string) event.Args { return event.Args{Path: path} },
		FuncOp[string, []byte](func(ctx context.Context, path string) ([]byte, error) {
			return os.ReadFile(path)
		}))

	selfPath := dir + "/probe.txt"
	if err := os.WriteFile(selfPath, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("selfcheck: seed probe file: %w", err)
	}

	ctx = attribution.WithPackage(ctx, "<self>")
	if _, err := readFile.Call(ctx, selfPath); err != nil {
		return fmt.Errorf("selfcheck: wrapped call failed: %w", err)
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("selfcheck: close sink: %w", err)
	}
	if data, err := os.ReadFile(logPath); err != nil || len(data) == 0 {
		return fmt.Errorf("selfcheck: wrapped call did not reach the sink")
	}

	if events := CheckTamper(reg, HardeningDetect, []string{event.OpFSReadFileSync}); len(events) != 0 {
		return fmt.Errorf("selfcheck: expected no tamper events on an intact registry, got %d", len(events))
	}

	reg.Tamper(event.OpFSReadFileSync)
	events := CheckTamper(reg, HardeningDetect, []string{event.OpFSReadFileSync})
	if len(events) != 1 {
		return fmt.Errorf("selfcheck: expected exactly one tamper event after Tamper, got %d", len(events))
	}

	return nil
}
