package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "dtu:\n  server: 192.168.1.50\n  port: 10081\n  powerLimit: 80\n")

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.50", f.DTU.Server)
	assert.Equal(t, uint16(10081), f.DTU.Port)
	assert.Equal(t, 80, f.DTU.PowerLimit)
}

func TestLoadRejectsMissingServer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "dtu:\n  port: 10081\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "dtu:\n  server: 192.168.1.50\n  port: 10081\n")

	changes := make(chan Change, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, Watch(ctx, path, func(c Change) { changes <- c }, nil))

	time.Sleep(50 * time.Millisecond)
	writeConfig(t, path, "dtu:\n  server: 192.168.1.51\n  port: 10082\n")

	select {
	case c := <-changes:
		assert.Equal(t, "192.168.1.51", c.File.DTU.Server)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatchSurvivesInvalidEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "dtu:\n  server: 192.168.1.50\n  port: 10081\n")

	errs := make(chan error, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, Watch(ctx, path, nil, func(err error) { errs <- err }))

	time.Sleep(50 * time.Millisecond)
	writeConfig(t, path, "dtu:\n  port: 10081\n")

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload error")
	}
}
