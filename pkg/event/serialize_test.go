package event

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalProducesSingleLine(t *testing.T) {
	evt := Event{
		TS:       1700000000000,
		Session:  "sess-1",
		PID:      123,
		PPID:     1,
		Pkg:      "lodash",
		Op:       OpFSWriteFileSync,
		Category: CategoryFS,
		Args:     Args{Path: "/x"},
		Result:   ResultOK,
	}

	data, err := Marshal(evt)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(data), "\n"))
	require.Equal(t, 1, strings.Count(string(data), "\n"))
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	evt := Event{
		TS:       1,
		Session:  "s",
		Pkg:      "a",
		Op:       OpDNSLookup,
		Category: CategoryDNS,
		Args:     Args{Host: "example.com"},
		Result:   ResultError,
		Error:    &ErrorInfo{Name: "Error", Message: "boom"},
	}

	data, err := Marshal(evt)
	require.NoError(t, err)

	got, err := Unmarshal(data[:len(data)-1])
	require.NoError(t, err)
	require.Equal(t, evt, got)
}

func TestUnmarshalRejectsMalformedLine(t *testing.T) {
	_, err := Unmarshal([]byte("not json"))
	require.Error(t, err)
}
