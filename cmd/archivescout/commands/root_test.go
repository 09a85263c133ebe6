package commands

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// with no telemetry.json5 anywhere above the cwd, setup must come
// back with a callable no-op cleanup rather than failing the command
func TestSetupTelemetryWithoutConfig(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)
	err = os.Chdir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	cleanup := setupTelemetry(context.Background())
	require.NotNil(t, cleanup)
	cleanup()
}
