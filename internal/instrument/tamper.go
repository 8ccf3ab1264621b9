package instrument

import (
	"time"

	"github.com/npm-malwatch/npm-malwatch/pkg/event"
)

// DefaultCheckSet is the small check set asserted by the tamper detector
// (§4.D): these four wrapper names are checked at each scheduled point.
var DefaultCheckSet = []string{
	event.OpFSWriteFileSync,
	event.OpChildSpawn,
	event.OpHTTPRequest,
	event.OpDNSLookup,
}

// Hardening controls whether the tamper detector is active (§4.D): it is
// enabled only when hardening equals "detect", and never blocks execution.
type Hardening string

const (
	HardeningDetect Hardening = "detect"
	HardeningOff    Hardening = "off"
)

// CheckTamper asserts that every name in checkSet is still registered in
// reg's patch table. It returns one tamper event per name that has lost its
// marker (wrapper_missing), and emits nothing when hardening is off.
func CheckTamper(reg *Registry, hardening Hardening, checkSet []string) []event.Event {
	if hardening != HardeningDetect {
		return nil
	}

	var out []event.Event
	for _, name := range checkSet {
		if reg.entries[name] {
			continue
		}
		out = append(out, reg.tamperEvent(name))
	}
	return out
}

// RunTamperCheck performs CheckTamper and emits any resulting events through
// reg's sink, matching the "once after install, at beforeExit, and at exit"
// schedule (§4.D) — callers invoke this at each of those three points.
func RunTamperCheck(reg *Registry, hardening Hardening, checkSet []string) {
	for _, evt := range CheckTamper(reg, hardening, checkSet) {
		reg.emit(evt)
	}
}

func (r *Registry) tamperEvent(name string) event.Event {
	return event.Event{
		TS:       time.Now().UnixMilli(),
		Session:  r.session,
		PID:      r.pid,
		PPID:     r.ppid,
		Pkg:      event.PkgMalwatch,
		Op:       event.OpTamper,
		Category: event.CategoryTamper,
		Args: event.Args{
			Target: name,
			Reason: "wrapper_missing",
		},
		Result: event.ResultOK,
	}
}
