package attribution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithPackageFromContext(t *testing.T) {
	ctx := context.Background()
	_, ok := FromContext(ctx)
	require.False(t, ok)

	ctx = WithPackage(ctx, "lodash")
	pkg, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "lodash", pkg)
}

func TestNestedScopeShadowsOuter(t *testing.T) {
	ctx := WithPackage(context.Background(), "outer")
	inner := WithPackage(ctx, "inner")

	pkg, ok := FromContext(inner)
	require.True(t, ok)
	require.Equal(t, "inner", pkg)

	pkg, ok = FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "outer", pkg)
}
