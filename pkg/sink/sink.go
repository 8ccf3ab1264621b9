// Package sink implements the append-only JSONL event sink (§4.E): a
// lazily-opened, raw-I/O file writer that the instrumentation layer uses to
// record events without recursing back through its own wrapped APIs.
//
// Modeled on the teacher's pkg/core/emitter.go append-only writer, but each
// record is written synchronously under a mutex (no buffered channel or
// background goroutine), appending to a real file path (opened with raw,
// un-wrapped os.OpenFile) rather than an externally supplied io.Writer, per
// §4.E's "raw (un-wrapped) file sink" requirement.
package sink

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/npm-malwatch/npm-malwatch/pkg/event"
)

// MaxRecordBytes is the soft per-record size bound assumed by the
// concurrency model (§5): sibling processes sharing one log path rely on
// platform append-atomicity for writes at or under this size.
const MaxRecordBytes = 4096

// Filter selects which records the sink drops before writing (§4.E).
type Filter struct {
	// PackageOnly, when true, drops records whose pkg is <malwatch>.
	PackageOnly bool
	// IncludePM, when false, additionally drops records whose pkg begins
	// with "<pm:".
	IncludePM bool
}

// DefaultFilter matches the default NPM_MALWATCH_FILTER=package-only,
// NPM_MALWATCH_INCLUDE_PM=0 configuration.
func DefaultFilter() Filter {
	return Filter{PackageOnly: true, IncludePM: false}
}

// Allow reports whether a record with the given pkg identity passes the
// filter policy.
func (f Filter) Allow(pkg string) bool {
	if f.PackageOnly && pkg == event.PkgMalwatch {
		return false
	}
	if !f.IncludePM && strings.HasPrefix(pkg, "<pm:") {
		return false
	}
	return true
}

// Sink is a single-writer-per-process append-only JSONL file. Open is lazy:
// the file descriptor is created on first successful Write call.
type Sink struct {
	path   string
	filter Filter

	mu   sync.Mutex
	file *os.File
}

// New returns a Sink that will lazily open path in append mode on first
// write, creating parent directories as needed.
func New(path string, filter Filter) *Sink {
	return &Sink{path: path, filter: filter}
}

// Write serializes evt and appends it to the log file. Write failures
// (including directory-creation and open failures) are swallowed per §4.E
// and §7 (LogIOError is dropped, never propagated to the observed program).
// Write reports whether the record was written (false if filtered out or
// dropped due to an I/O error).
func (s *Sink) Write(evt event.Event) bool {
	if !s.filter.Allow(evt.Pkg) {
		return false
	}
	return s.writeRaw(evt)
}

// WriteStartup writes the run's startup record unconditionally, bypassing
// the filter policy: §6 requires it always be written first regardless of
// NPM_MALWATCH_FILTER, since it documents the run's own configuration
// rather than observed package behavior.
func (s *Sink) WriteStartup(evt event.Event) bool {
	return s.writeRaw(evt)
}

func (s *Sink) writeRaw(evt event.Event) bool {
	data, err := event.Marshal(evt)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		if err := s.openLocked(); err != nil {
			return false
		}
	}
	if _, err := s.file.Write(data); err != nil {
		return false
	}
	return true
}

func (s *Sink) openLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	s.file = f
	return nil
}

// Close releases the underlying file descriptor, if open.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Path returns the configured log path.
func (s *Sink) Path() string {
	return s.path
}
