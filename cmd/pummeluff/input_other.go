//go:build !linux

package main

import (
	"context"
	"errors"
	"log/slog"
)

// runInputReader is only implemented on Linux (evdev).
func runInputReader(ctx context.Context, devices []string, d *Dispatcher, logger *slog.Logger) error {
	return errors.New("input devices are only supported on linux")
}
