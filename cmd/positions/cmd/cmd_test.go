package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rustyeddy/positions/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tradesCSV = `external_id,account_id,symbol,action,quantity,price,fees,executed_at
E1,ACC1,AAPL,BUY,100,10,0,2024-01-02T15:00:00Z
E2,ACC1,AAPL,SELL,-60,12,0,2024-01-03T15:00:00Z
E3,ACC1,AAPL,SELL,-1,oops,0,2024-01-03T16:00:00Z
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// Commands share package level flag state, so these run in sequence.
func TestCommands(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "positions.db")
	csvPath := filepath.Join(dir, "trades.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(tradesCSV), 0644))

	t.Run("version", func(t *testing.T) {
		out, err := execute(t, "version")
		require.NoError(t, err)
		assert.Contains(t, out, "positions version "+version)
	})

	t.Run("config init and validate", func(t *testing.T) {
		path := filepath.Join(dir, "positions.yaml")
		out, err := execute(t, "config", "init", "-o", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Created default configuration")

		out, err = execute(t, "config", "validate", "-f", path)
		require.NoError(t, err)
		assert.Contains(t, out, "✓ Configuration valid")
		assert.Contains(t, out, "Database: sqlite3")
	})

	t.Run("import", func(t *testing.T) {
		out, err := execute(t, "import", "--db", db, csvPath)
		require.NoError(t, err)
		assert.Contains(t, out, "2 inserted, 0 already present, 1 unreadable")
		assert.Contains(t, out, "position keys: 1 groups, 2 trades updated")
	})

	t.Run("reimport is a no-op", func(t *testing.T) {
		out, err := execute(t, "import", "--db", db, csvPath)
		require.NoError(t, err)
		assert.Contains(t, out, "0 inserted, 2 already present")
		assert.Contains(t, out, "1 groups, 0 trades updated")
	})

	t.Run("recalc", func(t *testing.T) {
		out, err := execute(t, "recalc", "--db", db)
		require.NoError(t, err)
		assert.Contains(t, out, "1 groups, 0 trades updated, 0 failed")

		out, err = execute(t, "recalc", "--db", db, "--account", "ACC1", "--instrument", "AAPL")
		require.NoError(t, err)
		assert.Contains(t, out, "ACC1|AAPL: 0 trades updated")
	})

	t.Run("report org", func(t *testing.T) {
		out, err := execute(t, "report", "--db", db)
		require.NoError(t, err)
		assert.Contains(t, out, "* Closed trades")
		assert.Contains(t, out, ":REALIZED_PL: 120.00")
		assert.Contains(t, out, ":POSITION_KEY: v2|ACC1|AAPL|1704207600000")
		assert.Contains(t, out, "# realized: 120.00 over 1 closed trades")
		assert.Contains(t, out, "| ACC1 | AAPL | 40 | 10.0000 | 2024-01-02 | 400.00 |  |")
		assert.Contains(t, out, "# unrealized cost: 400.00")
	})

	t.Run("trades day", func(t *testing.T) {
		out, err := execute(t, "trades", "day", "2024-01-03", "--db", db)
		require.NoError(t, err)
		assert.Contains(t, out, "SELL")
		assert.NotContains(t, out, "BUY")
	})

	var buyID, sellID string
	t.Run("trades show", func(t *testing.T) {
		s, err := journal.NewSQLite(context.Background(), db)
		require.NoError(t, err)
		recs, err := s.ListTrades(context.Background(), "ACC1")
		require.NoError(t, err)
		require.NoError(t, s.Close())
		require.Len(t, recs, 2)
		buyID, sellID = recs[0].ID, recs[1].ID

		out, err := execute(t, "trades", "show", buyID, "--db", db)
		require.NoError(t, err)
		assert.Contains(t, out, buyID)
		assert.Contains(t, out, "key=v2|ACC1|AAPL|1704207600000")

		_, err = execute(t, "trades", "show", "missing", "--db", db)
		assert.Error(t, err)
	})

	t.Run("trades delete", func(t *testing.T) {
		out, err := execute(t, "trades", "delete", sellID, "--db", db)
		require.NoError(t, err)
		assert.Contains(t, out, "deleted 1 trades, 0 keys updated, 0 tag links pruned")
	})

	t.Run("prune tags", func(t *testing.T) {
		out, err := execute(t, "prune-tags", "--db", db)
		require.NoError(t, err)
		assert.Contains(t, out, "pruned 0 tag links")
	})

	t.Run("report csv", func(t *testing.T) {
		out, err := execute(t, "report", "--db", db, "--format", "csv")
		require.NoError(t, err)
		assert.Equal(t, "account_id,symbol,asset_type,direction,quantity,entry_price,exit_price,opened_at,closed_at,realized_pl,fees,position_key,tags\n", out)
	})

	t.Run("report window", func(t *testing.T) {
		out, err := execute(t, "report", "--db", db, "--format", "org", "--from", "2024-02-01")
		require.NoError(t, err)
		assert.Contains(t, out, "# unrealized cost: 0.00")

		_, err = execute(t, "report", "--db", db, "--from", "February")
		assert.Error(t, err)

		_, err = execute(t, "report", "--db", db, "--from=", "--tag-mode", "some")
		assert.Error(t, err)
	})

	t.Run("recalc flags", func(t *testing.T) {
		_, err := execute(t, "recalc", "--db", db, "--account", "ACC1", "--instrument=")
		assert.Error(t, err)
	})
}
