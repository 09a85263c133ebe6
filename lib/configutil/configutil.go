// Package configutil reads archivescout's json5 configuration files:
// config.json5 for the daemon and telemetry.json5 for the otlp setup.
package configutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// derives the override filename for a config path,
// ex. config.json5 -> config.local.json5
func localName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

// reads one config layer into out, reporting whether the file
// contributed anything
func readLayer[T any](path string, out *T) (bool, error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(contents) == 0 {
		return false, nil
	}
	err = json5.Unmarshal(contents, out)
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReadConfig reads <name> and, when present, merges <name's
// basename>.local.<ext> over it so checked-in defaults can be
// overridden per machine. os.ErrNotExist is returned when neither
// layer exists.
func ReadConfig[T any](name string) (T, error) {
	var out T

	found, err := readLayer(name, &out)
	if err != nil {
		return out, err
	}

	localPath := localName(name)
	var override T
	foundLocal, err := readLayer(localPath, &override)
	if err != nil {
		return out, err
	}
	if foundLocal {
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", localPath)
	}

	if !found && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadConfig but it walks up from the cwd until the filesystem root
// to find a configuration file matching the name, so tests and
// commands work from any package directory.
func ReadRecursively[T any](name string) (T, error) {
	var defaultOut T

	current, err := os.Getwd()
	if err != nil {
		return defaultOut, err
	}

	for {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if !os.IsNotExist(err) {
			return config, err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return defaultOut, os.ErrNotExist
		}
		current = parent
	}
}
