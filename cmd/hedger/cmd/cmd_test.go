package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/hedger/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		cfgFile, logLevel = "", ""
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, journalType string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Journal.Type = journalType
	cfg.Journal.Path = filepath.Join(dir, "trades."+journalType)
	path := filepath.Join(dir, "hedger.yaml")
	require.NoError(t, cfg.SaveToFile(path))
	return path
}

func TestDayBounds(t *testing.T) {
	loc, err := time.LoadLocation("America/Santiago")
	require.NoError(t, err)

	start, end, err := dayBounds(loc, "2026-01-12")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-12T00:00:00-03:00", start.Format(time.RFC3339))
	assert.Equal(t, "2026-01-13T00:00:00-03:00", end.Format(time.RFC3339))

	_, _, err = dayBounds(loc, "12/01/2026")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "hedger version "+version)
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hedger.yaml")

	out, err := execute(t, "config", "init", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	_, err = os.Stat(path)
	require.NoError(t, err)

	out, err = execute(t, "config", "validate", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "USD_CLP")
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poll:\n  interval: 10s\n  cycle_timeout: 30s\n"), 0o600))

	_, err := execute(t, "config", "validate", "--file", path)
	assert.ErrorContains(t, err, "validation failed")
}

func TestJournalRecordAndList(t *testing.T) {
	for _, typ := range []string{"csv", "sqlite"} {
		t.Run(typ, func(t *testing.T) {
			path := writeConfig(t, typ)

			out, err := execute(t, "journal", "record", "--config", path,
				"--direction", "buy", "--engine", "950.12", "--broker", "950.5", "--outcome", "filled")
			require.NoError(t, err)
			assert.Contains(t, out, ":LAG: 0.38")

			out, err = execute(t, "journal", "list", "--config", path)
			require.NoError(t, err)
			assert.Contains(t, out, "** Trade: BUY 950.5")
			assert.Contains(t, out, ":OUTCOME: filled")
		})
	}
}

func TestJournalRecordRejectsBadDirection(t *testing.T) {
	path := writeConfig(t, "csv")
	_, err := execute(t, "journal", "record", "--config", path,
		"--direction", "hold", "--engine", "1", "--broker", "1")
	assert.ErrorContains(t, err, "direction")
}

func TestJournalListDoesNotCreateCSV(t *testing.T) {
	path := writeConfig(t, "csv")
	trades := filepath.Join(filepath.Dir(path), "trades.csv")

	out, err := execute(t, "journal", "list", "--config", path, "2026-01-12")
	require.NoError(t, err)
	assert.NotContains(t, out, "** Trade")

	_, err = os.Stat(trades)
	assert.True(t, os.IsNotExist(err), "listing must not create the journal")
}
