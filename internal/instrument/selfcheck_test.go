package instrument

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelfCheckPasses(t *testing.T) {
	require.NoError(t, SelfCheck(context.Background()))
}
