package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashUserID(t *testing.T) {
	a := HashUserID("user-1")
	b := HashUserID("user-2")

	require.Len(t, a, 8)
	require.NotEqual(t, a, b)
	require.Equal(t, a, HashUserID("user-1"), "hash must be stable per user")
	require.NotContains(t, a, "user-1")
}

func TestRedactNINO(t *testing.T) {
	require.Equal(t, "AB*******", RedactNINO("AB123456C"))
	require.Equal(t, "<redacted>", RedactNINO("AB"))
	require.Equal(t, "<redacted>", RedactNINO(""))
}

func TestSanitizeDescription(t *testing.T) {
	require.Equal(t, "<redacted: 19 chars>", SanitizeDescription("TESCO STORES 034217"))
	require.Equal(t, "<empty>", SanitizeDescription(""))
	require.NotContains(t, SanitizeDescription("ACME LTD SALARY"), "ACME",
		"descriptions carry merchant and payee names")
}
