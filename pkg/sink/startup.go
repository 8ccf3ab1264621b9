package sink

import "github.com/npm-malwatch/npm-malwatch/pkg/event"

// StartupEvent builds the record always written first by the orchestrator
// before launching the observed child (§6): pkg=<malwatch>, op=startup,
// category=tamper.
func StartupEvent(ts int64, session string, pid, ppid int, logFile, filter, hardening string) event.Event {
	return event.Event{
		TS:       ts,
		Session:  session,
		PID:      pid,
		PPID:     ppid,
		Pkg:      event.PkgMalwatch,
		Op:       event.OpStartup,
		Category: event.CategoryTamper,
		Args: event.Args{
			LogFile:   logFile,
			Filter:    filter,
			Hardening: hardening,
		},
		Result: event.ResultOK,
	}
}
