package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writePlan(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRunMissingPlanPathIsBadUsage(t *testing.T) {
	require.Equal(t, exitBadUsage, run([]string{"run"}))
}

func TestRunInvalidMergeMethodIsBadUsage(t *testing.T) {
	dir := t.TempDir()
	planPath := writePlan(t, dir, `{"kind":"agent","key":"hello","props":{"kind":"claude","prompt":"hi"}}`)
	code := run([]string{"run", planPath, "--merge-method", "bogus"})
	require.Equal(t, exitBadUsage, code)
}

func TestRunMockedPlanSucceeds(t *testing.T) {
	dir := t.TempDir()
	planPath := writePlan(t, dir, `{"kind":"agent","key":"hello","props":{"kind":"claude","prompt":"hi"}}`)
	dbPath := filepath.Join(dir, "conductor.db")

	code := run([]string{"run", planPath, "--mock", "--db", dbPath, "--log-level", "error"})
	require.Equal(t, exitOK, code)

	_, err := os.Stat(dbPath)
	require.NoError(t, err)
}

func TestRunUnknownPlanPathFails(t *testing.T) {
	dir := t.TempDir()
	code := run([]string{"run", filepath.Join(dir, "missing.json"), "--mock"})
	require.Equal(t, exitBadUsage, code)
}
