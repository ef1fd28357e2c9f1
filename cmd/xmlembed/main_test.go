// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/xmlembed/internal/history"
	"github.com/ManuGH/xmlembed/internal/inbox"
)

// envFixture writes a dotenv file that points every writable path into a temp dir.
func envFixture(t *testing.T, extra ...string) (envFile, dir string) {
	t.Helper()
	dir = t.TempDir()
	lines := []string{
		"ACCESS_KEY=ak-test",
		"SECRET_KEY=sk-test",
		"ID_PDV=7",
		"XMLEMBED_BACKEND_MODE=mock",
		"XMLEMBED_MOCK_PENDING_POLLS=1",
		"XMLEMBED_POLL_INTERVAL=5ms",
		"XMLEMBED_RAWLOG_DIR=" + filepath.Join(dir, "log"),
		"XMLEMBED_HISTORY_PATH=" + filepath.Join(dir, "history.db"),
		"XMLEMBED_INBOX_DIR=" + filepath.Join(dir, "inbox"),
		"XMLEMBED_INBOX_RATE=100",
		"XMLEMBED_INBOX_SETTLE=0s",
		"XMLEMBED_LOG_LEVEL=error",
	}
	lines = append(lines, extra...)
	envFile = filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return envFile, dir
}

func runCLI(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	code := run(context.Background(), args, &out)
	return code, out.String()
}

func TestVersion(t *testing.T) {
	code, out := runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(out, "xmlembed "), out)
}

func TestSubmit_MockCycle(t *testing.T) {
	envFile, _ := envFixture(t)

	code, out := runCLI(t, "--env-file", envFile, "submit", "--kind", "xml", "--json", "<NFe/>")
	require.Equal(t, 0, code, out)

	var s submitSummary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, history.OutcomeSuccess, s.Outcome)
	assert.Equal(t, "xml", s.Kind)
	assert.GreaterOrEqual(t, s.Polls, 1)
	assert.Equal(t, 0, s.LastStatus)
	require.NotEmpty(t, s.ID)

	code, out = runCLI(t, "--env-file", envFile, "history", s.ID)
	require.Equal(t, 0, code, out)
	var rec history.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, s.ID, rec.ID)
	assert.Equal(t, "cli", rec.Source)
	assert.Equal(t, history.OutcomeSuccess, rec.Outcome)

	code, out = runCLI(t, "--env-file", envFile, "history")
	require.Equal(t, 0, code)
	assert.Contains(t, out, s.ID)
}

func TestSubmit_InvalidInput(t *testing.T) {
	envFile, _ := envFixture(t)

	code, _ := runCLI(t, "--env-file", envFile, "submit", "--kind", "tar", "x")
	assert.Equal(t, 2, code)

	code, _ = runCLI(t, "--env-file", envFile, "submit", "--kind", "xml")
	assert.Equal(t, 2, code)
}

func TestSubmit_MissingPathFails(t *testing.T) {
	// The mock never completes a rejected submit, so the wait deadline ends the run.
	envFile, dir := envFixture(t, "XMLEMBED_POLL_MAX_WAIT=200ms")

	code, out := runCLI(t, "--env-file", envFile, "submit", "--kind", "path", "--history=false",
		filepath.Join(dir, "absent.xml"))
	assert.Equal(t, 1, code)
	assert.Contains(t, out, history.OutcomeFailed)
}

func TestConfigValidate(t *testing.T) {
	envFile, _ := envFixture(t)
	code, out := runCLI(t, "--env-file", envFile, "config", "validate")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "valid")

	if _, ok := os.LookupEnv("ACCESS_KEY"); ok {
		t.Skip("ACCESS_KEY set in the process environment")
	}
	// Native mode without credentials in the file.
	bare, _ := envFixture(t, "XMLEMBED_BACKEND_MODE=native")
	raw, err := os.ReadFile(bare)
	require.NoError(t, err)
	stripped := strings.NewReplacer("ACCESS_KEY=ak-test\n", "", "SECRET_KEY=sk-test\n", "").Replace(string(raw))
	require.NoError(t, os.WriteFile(bare, []byte(stripped), 0o600))
	code, _ = runCLI(t, "--env-file", bare, "config", "validate")
	assert.Equal(t, 1, code)
}

func TestConfigDump_MasksCredentials(t *testing.T) {
	envFile, _ := envFixture(t)
	code, out := runCLI(t, "--env-file", envFile, "config", "dump")
	require.Equal(t, 0, code)
	assert.NotContains(t, out, "sk-test")
	assert.NotContains(t, out, "ak-test")
	assert.Contains(t, out, "accessKey:")
	assert.Contains(t, out, "***")
	assert.Contains(t, out, "interval: 5ms")
}

func TestConfig_InvalidExitsTwo(t *testing.T) {
	envFile, _ := envFixture(t, "XMLEMBED_POLL_INTERVAL=-1s")
	code, _ := runCLI(t, "--env-file", envFile, "config", "validate")
	assert.Equal(t, 2, code)
}

func TestWatchOnce(t *testing.T) {
	envFile, dir := envFixture(t)
	in := filepath.Join(dir, "inbox")
	require.NoError(t, os.MkdirAll(in, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(in, "lote.zip"), []byte("PK"), 0o600))

	code, out := runCLI(t, "--env-file", envFile, "watch", "--once")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, history.OutcomeSuccess)

	moved := filepath.Join(in, inbox.DoneDir, "lote.zip")
	assert.FileExists(t, moved)
	rc, err := inbox.ReadReceipt(moved + inbox.ReceiptSuffix)
	require.NoError(t, err)
	assert.Equal(t, "zip", rc.Kind)
}
