package cmd

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/planhaus/internal/apiclient"
	"github.com/theirongolddev/planhaus/internal/model"
)

func TestFilterDetachArg(t *testing.T) {
	got := filterDetachArg([]string{"serve", "--detach", "--addr", ":9000", "--detach=true"})
	assert.Equal(t, []string{"serve", "--addr", ":9000"}, got)
}

func TestPIDAndStateFiles(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "planhaus.pid")

	_, err := readPID(pidFile)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.NoError(t, ensureServerNotRunning(pidFile))

	require.NoError(t, writePID(pidFile, os.Getpid()))
	pid, err := readPID(pidFile)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, processAlive(pid))
	assert.Error(t, ensureServerNotRunning(pidFile), "our own pid is alive")

	st := serverRuntimeState{PID: pid, Addr: "127.0.0.1:9999", StartedAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, writeState(statePath(pidFile), st))
	got, err := readState(statePath(pidFile))
	require.NoError(t, err)
	assert.Equal(t, st.Addr, got.Addr)

	require.NoError(t, os.WriteFile(pidFile, []byte("nope\n"), 0o600))
	_, err = readPID(pidFile)
	assert.Error(t, err)
}

func TestDescribeError(t *testing.T) {
	assert.Contains(t, describeError(fmt.Errorf("loading: %w", apiclient.ErrLoginRequired)), "planhaus login")
	assert.Equal(t, "name required (HTTP 400)",
		describeError(&apiclient.APIError{Status: http.StatusBadRequest, Message: "name required"}))
}

func TestDaysLabel(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	wedding := now.Add(36 * time.Hour)
	assert.Equal(t, "-", daysLabel(model.WeddingProject{}, now))
	assert.Equal(t, "2 days", daysLabel(model.WeddingProject{WeddingDate: &wedding}, now))
}
