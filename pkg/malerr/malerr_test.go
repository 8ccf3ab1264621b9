package malerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorKindsUnwrapToUnderlyingCause(t *testing.T) {
	cause := errors.New("boom")

	cases := []error{
		ChildLaunchFailure{Command: "npm install", Err: cause},
		LogIOError{Path: "/tmp/log.jsonl", Err: cause},
		ManifestParseError{Path: "node_modules/x/package.json", Err: cause},
		LogParseError{Line: 4, Err: cause},
		SandboxUnavailable{Runtime: "docker", Err: cause},
	}

	for _, err := range cases {
		require.ErrorIs(t, err, cause, "%T", err)
		require.NotEmpty(t, err.Error())
	}
}

func TestUsageErrorHasNoUnderlyingCause(t *testing.T) {
	err := UsageError{Message: "missing command"}
	require.Equal(t, "missing command", err.Error())
}

func TestErrorsAsRecoversConcreteKind(t *testing.T) {
	var target ManifestParseError
	err := error(ManifestParseError{Path: "p", Err: errors.New("bad json")})
	require.True(t, errors.As(err, &target))
	require.Equal(t, "p", target.Path)
}
