package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ruralpay/payments-engine/internal/config"
	"github.com/ruralpay/payments-engine/internal/services"
)

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transactions.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testConfig(format string) *config.Config {
	return &config.Config{Engine: config.EngineConfig{OutputFormat: format}}
}

func TestReplayFile(t *testing.T) {
	path := writeInput(t, `type, client, tx, amount
deposit, 1, 1, 1.0
deposit, 2, 2, 2.0
deposit, 1, 3, 2.0
withdrawal, 1, 4, 1.5
withdrawal, 2, 5, 3.0
`)

	var out bytes.Buffer
	err := replayFile(context.Background(), path, &out, testConfig("csv"), services.LockedReject, zap.NewNop())
	require.NoError(t, err)

	want := "client,available,held,total,locked\n" +
		"1,1.5000,0.0000,1.5000,false\n" +
		"2,2.0000,0.0000,2.0000,false\n"
	assert.Equal(t, want, out.String())
}

func TestReplayFile_JSON(t *testing.T) {
	path := writeInput(t, "type,client,tx,amount\ndeposit,0,1,10.0\ndispute,0,1,\nchargeback,0,1,\n")

	var out bytes.Buffer
	err := replayFile(context.Background(), path, &out, testConfig("json"), services.LockedReject, zap.NewNop())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"client":0,"available":"10.0000","held":"0.0000","total":"10.0000","locked":true}]`, out.String())
}

func TestReplayFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		err := replayFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), &bytes.Buffer{}, testConfig("csv"), services.LockedReject, zap.NewNop())
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("bad header", func(t *testing.T) {
		path := writeInput(t, "a,b,c\n")
		var out bytes.Buffer
		err := replayFile(context.Background(), path, &out, testConfig("csv"), services.LockedReject, zap.NewNop())
		assert.Error(t, err)
		assert.Empty(t, out.String())
	})

	t.Run("unknown output format", func(t *testing.T) {
		path := writeInput(t, "type,client,tx,amount\n")
		err := replayFile(context.Background(), path, &bytes.Buffer{}, testConfig("xml"), services.LockedReject, zap.NewNop())
		assert.Error(t, err)
	})
}

func TestRun_Usage(t *testing.T) {
	assert.Equal(t, 2, run([]string{"--config", "", "a.csv", "b.csv"}))
	assert.Equal(t, 2, run([]string{"--config", "", "--locked-policy", "maybe", "a.csv"}))
}
