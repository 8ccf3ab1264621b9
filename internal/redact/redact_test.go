package redact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruncateStringCapsAndEllipsizes(t *testing.T) {
	s := strings.Repeat("a", 10)
	require.Equal(t, s, TruncateString(s, 20))

	truncated := TruncateString(s, 5)
	require.Equal(t, "aaaaa"+"…", truncated)
}

func TestSanitizeValueRedactsSensitiveKeys(t *testing.T) {
	input := map[string]any{
		"password": "hunter2",
		"Token":    "abc",
		"note":     "fine",
	}
	out := SanitizeValue(input, 0).(map[string]any)
	require.Equal(t, RedactedValue, out["password"])
	require.Equal(t, RedactedValue, out["Token"])
	require.Equal(t, "fine", out["note"])
}

func TestSanitizeValueCapsDepthArrayAndKeys(t *testing.T) {
	deep := map[string]any{"a": map[string]any{"b": map[string]any{"c": map[string]any{"d": "x"}}}}
	out := SanitizeValue(deep, 0)
	// depth 0=deep, 1=a's val, 2=b's val, 3=c's val -> d's val at depth 4 dropped
	m := out.(map[string]any)["a"].(map[string]any)["b"].(map[string]any)["c"].(map[string]any)["d"]
	require.Nil(t, m)

	arr := make([]any, 30)
	for i := range arr {
		arr[i] = i
	}
	outArr := SanitizeValue(arr, 0).([]any)
	require.Len(t, outArr, MaxRedactArray)

	bigMap := map[string]any{}
	for i := 0; i < 50; i++ {
		bigMap[string(rune('a'+i%26))+string(rune(i))] = i
	}
	outMap := SanitizeValue(bigMap, 0).(map[string]any)
	require.LessOrEqual(t, len(outMap), MaxRedactKeys)
}

func TestSensitiveKeyPatternCaseInsensitive(t *testing.T) {
	for _, key := range []string{"password", "PASSWORD", "authToken", "Cookie", "session_id"} {
		require.True(t, SensitiveKeyPattern.MatchString(key), key)
	}
	require.False(t, SensitiveKeyPattern.MatchString("path"))
}
