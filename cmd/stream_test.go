// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	applog "audiosync/internal/log"
)

func TestShutdownMetricsLogsError(t *testing.T) {
	var buf bytes.Buffer
	applog.SetOutput(&buf)
	defer applog.SetOutput(os.Stderr)

	shutdownMetrics(func(context.Context) error { return errors.New("exporter flush failed") })

	out := buf.String()
	assert.Contains(t, out, "level=warning")
	assert.Contains(t, out, "Shutting down metrics provider")
	assert.Contains(t, out, "exporter flush failed")
}

func TestShutdownMetricsQuietOnSuccess(t *testing.T) {
	var buf bytes.Buffer
	applog.SetOutput(&buf)
	defer applog.SetOutput(os.Stderr)

	shutdownMetrics(func(context.Context) error { return nil })
	assert.Empty(t, buf.String())
}
