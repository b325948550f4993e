package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// Player is the playback part of the Engine; MopidyClient implements it.
type Player interface {
	GetVolume() (int, bool, error)
	SetVolume(volume int) error
	PlayPause() error
	Stop() error
	Previous() error
	Next() error
	GetRandom() (bool, error)
	SetRandom(random bool) error
	LoadTracklist(uri string) error
}

// Appliance is the Engine of a pummeluff box: a Mopidy player plus the host
// power control.
type Appliance struct {
	Player
	power *PowerControl
}

func NewAppliance(player Player, power *PowerControl) *Appliance {
	return &Appliance{Player: player, power: power}
}

func (a *Appliance) PowerOff() error {
	return a.power.PowerOff()
}

// PowerControl runs the configured power-off command.
type PowerControl struct {
	command []string
	timeout time.Duration
	logger  *slog.Logger

	// run is swapped in tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewPowerControl(command []string, logger *slog.Logger) *PowerControl {
	return &PowerControl{
		command: append([]string(nil), command...),
		timeout: 10 * time.Second,
		logger:  logger,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

func (p *PowerControl) PowerOff() error {
	if len(p.command) == 0 {
		return errors.New("no power-off command configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	p.logger.Info("running power-off command", "command", p.command)
	out, err := p.run(ctx, p.command[0], p.command[1:]...)
	if err != nil {
		return fmt.Errorf("power-off command %q: %w (output: %s)", p.command[0], err, out)
	}
	return nil
}
