// Package attribution implements the AttributionContext (§3): a task-local
// binding of "currently resolving package" propagated across asynchronous
// continuations.
//
// In the observed JavaScript runtime this is AsyncLocalStorage (rendered
// into the preload template, see pkg/preload). The Go-native analogue used
// by internal/instrument's reference pipeline and by tests is
// context.Context, which is the idiomatic Go mechanism for propagating
// request-scoped values across goroutine and call boundaries — there is no
// third-party library that models task-local scope more faithfully than the
// standard library's context, so it is used directly here (documented per
// DESIGN.md's standard-library justification requirement).
package attribution

import "context"

type scopeKey struct{}

// WithPackage returns a new context carrying pkg as the currently-resolving
// package identity. Nested calls shadow outer scopes, matching the "entries
// are pushed on module load" semantics of §3.
func WithPackage(ctx context.Context, pkg string) context.Context {
	return context.WithValue(ctx, scopeKey{}, pkg)
}

// FromContext returns the package identity bound to ctx, if any.
func FromContext(ctx context.Context) (pkg string, ok bool) {
	if ctx == nil {
		return "", false
	}
	pkg, ok = ctx.Value(scopeKey{}).(string)
	return pkg, ok
}
