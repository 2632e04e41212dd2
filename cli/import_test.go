package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archelon/pricesim/market"
	"github.com/archelon/pricesim/source"
)

func TestParseCandleFileName(t *testing.T) {
	t.Parallel()

	symbol, interval, err := parseCandleFileName("/data/AVAXUSDT_recent_1h.csv")
	require.NoError(t, err)
	assert.Equal(t, "AVAXUSDT", symbol)
	assert.Equal(t, market.H1, interval)

	// The window part may itself contain underscores.
	symbol, interval, err = parseCandleFileName("BTCUSDT_1year_ago_5m.csv")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", symbol)
	assert.Equal(t, market.M5, interval)

	_, _, err = parseCandleFileName("candles.csv")
	assert.Error(t, err)

	_, _, err = parseCandleFileName("AVAXUSDT_recent_2q.csv")
	assert.Error(t, err)
}

func TestImportCommandLoadsCSVIntoSQLite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "candles.sqlite")

	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf("data:\n  backend: sqlite\n  db_path: %s\n", dbPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	csvPath := filepath.Join(dir, "AVAXUSDT_recent_1h.csv")
	csvData := "time,open,high,low,close,volume,close_time\n" +
		"1717200000000,35.1,36.0,34.5,35.8,1200.5,1717203599999\n" +
		"1717203600000,35.8,36.5,35.2,36.1,900.25,1717207199999\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(csvData), 0o644))

	cmd := NewRootCmd()
	cmd.SetArgs([]string{"import", "--config", cfgPath, "--log-level", "error", csvPath})
	require.NoError(t, cmd.Execute())

	db, err := source.NewSQLite(dbPath)
	require.NoError(t, err)
	defer db.Close()

	n, err := db.Count(context.Background(), "AVAXUSDT", market.H1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
