package event

// JSONL serialization for Event records.
//
// One compact JSON object per line, newline-terminated. This makes the log
// trivially streamable and grep-able by the aggregator (pkg/aggregate) and
// by ad-hoc operator tooling.
//
// Contract (§3, §8): one JSON object per line, no embedded unescaped
// newlines, UTF-8, \n terminator.

import "encoding/json"

// Marshal converts an Event to its JSONL representation (one line + \n).
func Marshal(evt Event) ([]byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Unmarshal parses a single JSONL line into an Event.
func Unmarshal(line []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(line, &evt); err != nil {
		return Event{}, err
	}
	return evt, nil
}
