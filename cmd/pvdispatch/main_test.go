package main

import (
	"bytes"
	"context"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/saylorsolutions/pvdispatch/dispatch"
	"github.com/saylorsolutions/pvdispatch/slogx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func runTest(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	code = run(context.Background(), args, &outBuf, &errBuf)
	return code, outBuf.String(), errBuf.String()
}

func findRow(t *testing.T, output, first string) []string {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Split(line, "\t")
		if fields[0] == first {
			return fields
		}
	}
	t.Fatalf("No row starting with '%s' in output:\n%s", first, output)
	return nil
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runTest(t)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stderr, "COMMANDS:")
	assert.Contains(t, stderr, "simulate, sim")
	assert.Contains(t, stderr, "config, conf")
}

func TestRunWithSignals(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitOK, runWithSignals([]string{"config"}, &stdout, &stderr), stderr.String())
	assert.Contains(t, stdout.String(), "categories:")
	assert.Equal(t, exitUsage, runWithSignals([]string{"bogus"}, &stdout, &stderr))
}

func TestRun_UnknownCommand(t *testing.T) {
	code, _, stderr := runTest(t, "bogus")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "bogus")
	assert.Contains(t, stderr, "COMMANDS:")
}

func TestRun_BadFlag(t *testing.T) {
	code, _, stderr := runTest(t, "simulate", "--bogus")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "bogus")
}

func TestRun_Config(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pvdispatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dispatcher:\n  queue_capacity: 64\n"), 0600))

	code, stdout, stderr := runTest(t, "config", "-c", path, "--log-level", "warn")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "queue_capacity: 64")
	assert.Contains(t, stdout, "level: warn")
	assert.Contains(t, stdout, "- get_put")
}

func TestRun_Config_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pvdispatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dispatcher:\n  bogus: true\n"), 0600))

	code, stdout, stderr := runTest(t, "config", "-c", path)
	assert.Equal(t, exitError, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Error:")
}

func TestRun_Config_BadLogLevel(t *testing.T) {
	code, _, _ := runTest(t, "config", "--log-level", "loud")
	assert.Equal(t, exitUsage, code)
}

func TestRun_Simulate(t *testing.T) {
	code, stdout, stderr := runTest(t, "simulate",
		"--log-level", "error",
		"--updates", "5",
		"--interval", "1ms",
		"--puts", "2",
		"--put-delay", "1ms",
		"sim:a", "sim:b",
	)
	require.Equal(t, exitOK, code, stderr)
	assert.Nil(t, dispatch.Instance(), "The dispatcher should be torn down")

	for _, cat := range []string{"metadata", "monitor", "get_put", "utility"} {
		row := findRow(t, stdout, cat)
		require.Len(t, row, 6)
		assert.Equal(t, "0", row[3], "No callbacks should fail")
		assert.Equal(t, "0", row[4], "Nothing should be dropped on a clean stop")
	}
	assert.Equal(t, "1", findRow(t, stdout, "utility")[2], "The queue depth snapshot should run")

	for _, name := range []string{"sim:a", "sim:b"} {
		row := findRow(t, stdout, name)
		require.Len(t, row, 4)
		assert.Equal(t, "1", row[1], "One connection event expected")
		updates, err := strconv.Atoi(row[2])
		require.NoError(t, err)
		assert.Greater(t, updates, 0)
		assert.Equal(t, "2", row[3], "Every put should complete")
	}
}

func TestRun_Simulate_NegativeUpdates(t *testing.T) {
	code, _, _ := runTest(t, "simulate", "--updates", "-1")
	assert.Equal(t, exitUsage, code)
}

func TestServeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	addr, stop, err := serveMetrics(context.Background(), slogx.Discard(), "127.0.0.1:0", reg)
	require.NoError(t, err)
	defer stop()

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}
