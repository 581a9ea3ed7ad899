package estoque

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// The ledger queries share one column list; keep it aligned with the
// movimentacoes DDL so a drifting column name fails here instead of at
// runtime.
func TestMovimentacaoColumnsMatchSchema(t *testing.T) {
	ddl, err := os.ReadFile("../../migrations/0001_init.sql")
	require.NoError(t, err)

	start := strings.Index(string(ddl), "CREATE TABLE movimentacoes")
	require.GreaterOrEqual(t, start, 0)
	table := string(ddl)[start:]
	table = table[:strings.Index(table, ");")]

	for _, column := range strings.Split(movimentacaoColumns, ", ") {
		require.Contains(t, table, "\n    "+column+" ", column)
	}
}
