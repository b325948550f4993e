package main

import (
	"log/slog"
	"os/exec"
	"path/filepath"
)

// CommandSound plays sound files with an external player (aplay by default).
// Playback is detached; failures are logged at debug level only.
type CommandSound struct {
	player string
	dir    string
	logger *slog.Logger

	// start is swapped in tests.
	start func(cmd *exec.Cmd) error
}

func NewCommandSound(player, dir string, logger *slog.Logger) *CommandSound {
	return &CommandSound{
		player: player,
		dir:    ExpandPath(dir),
		logger: logger,
		start:  startDetached,
	}
}

// Play implements AckSound.
func (s *CommandSound) Play(name string) {
	path := filepath.Join(s.dir, filepath.Base(name))
	cmd := exec.Command(s.player, "-q", path)
	if err := s.start(cmd); err != nil {
		s.logger.Debug("failed to play sound", "file", path, "error", err)
	}
}

func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap the child.
	go func() { _ = cmd.Wait() }()
	return nil
}
