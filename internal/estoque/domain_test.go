package estoque

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// Requests and responses use the same wire name for the movement kind.
func TestMovimentacaoWireName(t *testing.T) {
	raw, err := json.Marshal(Movimentacao{Tipo: TipoEntrada})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "ENTRADA", decoded["tipo_movimentacao"])
	require.NotContains(t, decoded, "tipo")
}
