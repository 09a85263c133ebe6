package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port    int    `json:"port"`
	Archive string `json:"archive"`
}

func writeFile(t *testing.T, path, contents string) {
	err := os.WriteFile(path, []byte(contents), 0644)
	if err != nil {
		t.Fatal(err)
	}
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")
	writeFile(t, name, `{
		// comments are fine, this is json5
		port: 8220,
		archive: "https://archive.org/wayback/available",
	}`)

	config, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, 8220, config.Port)
	require.Equal(t, "https://archive.org/wayback/available", config.Archive)
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")
	writeFile(t, name, `{port: 8220, archive: "https://archive.org/wayback/available"}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{port: 9000}`)

	config, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, 9000, config.Port)
	require.Equal(t, "https://archive.org/wayback/available", config.Archive)
}

func TestReadConfigOnlyLocal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{port: 9000}`)

	config, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, 9000, config.Port)
}

func TestReadConfigMissing(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.True(t, os.IsNotExist(err))
}
