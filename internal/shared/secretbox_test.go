package shared

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecretBoxRoundTrip(t *testing.T) {
	box, err := NewSecretBox(strings.Repeat("ab", 32))
	require.NoError(t, err)

	sealed, err := box.Seal("asaas_live_key")
	require.NoError(t, err)
	require.NotContains(t, sealed, "asaas_live_key")

	plain, err := box.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, "asaas_live_key", plain)
}

func TestSecretBoxRejectsTampering(t *testing.T) {
	box, err := NewSecretBox(strings.Repeat("ab", 32))
	require.NoError(t, err)

	other, err := NewSecretBox(strings.Repeat("cd", 32))
	require.NoError(t, err)

	sealed, err := box.Seal("asaas_live_key")
	require.NoError(t, err)

	_, err = other.Open(sealed)
	require.Error(t, err)
}

func TestSecretBoxKeyValidation(t *testing.T) {
	_, err := NewSecretBox("not-hex")
	require.Error(t, err)

	_, err = NewSecretBox("abcd")
	require.Error(t, err)
}
