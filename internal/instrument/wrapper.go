// Package instrument provides a generic, directly-testable reference
// implementation of the instrumentation contract (§4.C) and tamper
// detector (§4.D).
//
// It cannot monkey-patch the observed JavaScript runtime's host APIs (that
// happens inside the generated preload, see pkg/preload); instead it wraps
// arbitrary Go callables representing the same five namespaces
// (fs/proc/dns/net/http), in the same style as bassosimone-nop's
// Func[A,B]/Compose primitives: a typed, composable wrap around a single
// call with exactly one success mode and one failure mode. This proves the
// attribution/format/emit/re-raise algorithm in Go, exercised by tests
// against the invariants in §8, and backs the `selfcheck` CLI diagnostic.
package instrument

import (
	"context"
	"time"

	"github.com/npm-malwatch/npm-malwatch/internal/attribution"
	"github.com/npm-malwatch/npm-malwatch/internal/idnorm"
	"github.com/npm-malwatch/npm-malwatch/internal/redact"
	"github.com/npm-malwatch/npm-malwatch/pkg/event"
	"github.com/npm-malwatch/npm-malwatch/pkg/sink"
)

// Func is a single atomic operation with exactly one success mode and one
// failure mode, mirroring bassosimone-nop's Func[A,B] composition style.
type Func[A, B any] interface {
	Call(ctx context.Context, input A) (B, error)
}

// FuncOp adapts a plain function to Func.
type FuncOp[A, B any] func(ctx context.Context, input A) (B, error)

// Call implements Func.
func (f FuncOp[A, B]) Call(ctx context.Context, input A) (B, error) {
	return f(ctx, input)
}

// Summarizer extracts the op-specific Args summary from a call's input, for
// the formatter step (§4.B).
type Summarizer[A any] func(input A) event.Args

// Wrap returns a Func that wraps original with attribution capture,
// timing, and event emission through sink, per the Contract in §4.C:
//   - capture attribution context at entry
//   - invoke the original
//   - emit one event with result=ok on normal return, result=error on
//     error (never throws/propagates: emission failures are swallowed)
//   - return the original outcome unchanged (transparent re-raise)
func Wrap[A, B any](
	reg *Registry,
	name string,
	category event.Category,
	summarize Summarizer[A],
	original Func[A, B],
) Func[A, B] {
	reg.register(name)

	return FuncOp[A, B](func(ctx context.Context, input A) (B, error) {
		pkg, ok := attribution.FromContext(ctx)
		if !ok {
			pkg = idnorm.IdentifyStack(StackFrames(ctx))
		}

		out, err := original.Call(ctx, input)

		evt := event.Event{
			TS:       time.Now().UnixMilli(),
			Session:  reg.session,
			PID:      reg.pid,
			PPID:     reg.ppid,
			Pkg:      pkg,
			Op:       name,
			Category: category,
			Args:     summarize(input),
			Result:   event.ResultOK,
		}
		if err != nil {
			evt.Result = event.ResultError
			evt.Error = &event.ErrorInfo{Name: "Error", Message: redact.TruncateString(err.Error(), redact.MaxArgString)}
		}
		reg.emit(evt)

		return out, err
	})
}

// Registry holds the patch table (name -> marker still intact) used by both the
// wrapping layer (§4.C) and the tamper detector (§4.D), and owns the sink
// and run-identity fields stamped on every emitted event.
type Registry struct {
	session string
	pid     int
	ppid    int
	sink    *sink.Sink

	entries map[string]bool // name -> currently registered/intact
}

// register records that name has a wrapper installed, giving the tamper
// detector a marker to check against later (§4.C "wrappers carry a
// distinguishing marker").
func (r *Registry) register(name string) {
	if r.entries == nil {
		r.entries = make(map[string]bool)
	}
	r.entries[name] = true
}

// Tamper simulates external replacement of a wrapper, for tests exercising
// §8's tamper-detection invariant.
func (r *Registry) Tamper(name string) {
	r.entries[name] = false
}

// NewRegistry constructs a Registry bound to the given sink and run
// identity fields.
func NewRegistry(session string, pid, ppid int, s *sink.Sink) *Registry {
	return &Registry{
		session: session,
		pid:     pid,
		ppid:    ppid,
		sink:    s,
		entries: make(map[string]bool),
	}
}

func (r *Registry) emit(evt event.Event) {
	if r.sink == nil {
		return
	}
	// Errors inside the sink are already swallowed by Sink.Write; this call
	// must never be allowed to propagate into instrumented code (§4.C).
	r.sink.Write(evt)
}

// StackFrames is a seam for tests / alternative frame sources. In the
// generated preload this corresponds to a synthetic JS stack capture; here
// it defaults to an empty slice (callers typically rely on the attribution
// context rather than stack fallback in the Go reference pipeline).
var StackFrames = func(ctx context.Context) []string {
	return nil
}
