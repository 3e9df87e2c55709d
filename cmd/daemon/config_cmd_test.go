// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, "dataDir: "+dir+"\nprocessing:\n  speedMultiplier: 1.5\n")

	var stdout, stderr bytes.Buffer
	code := runConfigCLIWithOutput([]string{"validate", "-f", path}, &stdout, &stderr)
	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "is valid")
}

func TestConfigValidate_UnknownKey(t *testing.T) {
	path := writeConfigFile(t, "dataDir: "+t.TempDir()+"\nbouquet: favourites\n")

	var stdout, stderr bytes.Buffer
	code := runConfigCLIWithOutput([]string{"validate", "--file", path}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Configuration error")
}

func TestConfigDump_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, "dataDir: "+dir+"\nlogLevel: debug\n")

	var stdout, stderr bytes.Buffer
	code := runConfigCLIWithOutput([]string{"dump", "--effective", "-f", path, "--format=json"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var got map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, "debug", got["LogLevel"])
	assert.Equal(t, filepath.Join(dir, "uploads"), got["UploadDir"])
}

func TestConfigDump_RequiresEffective(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, runConfigCLIWithOutput([]string{"dump"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "--effective is required")
}

func TestConfigCLI_UnknownSubcommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, runConfigCLIWithOutput([]string{"explode"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Unknown subcommand")
}

func TestResolveDefaultConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SPEEDUP_CONFIG", "")
	t.Setenv("SPEEDUP_DATA", dir)
	assert.Empty(t, resolveDefaultConfigPath())

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o600))
	assert.Equal(t, path, resolveDefaultConfigPath())

	t.Setenv("SPEEDUP_CONFIG", "/etc/speedup.yaml")
	assert.Equal(t, "/etc/speedup.yaml", resolveDefaultConfigPath())
}
