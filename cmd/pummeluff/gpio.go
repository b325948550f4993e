package main

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// ============================================================================
// GPIO pin ownership
// ============================================================================
// The handler only talks to these small interfaces; the periph.io backed
// driver below is the production implementation, tests use fakes.
// ============================================================================

// InputPin is a claimed button pin (pulled up, rising-edge detection armed).
type InputPin interface {
	Read() gpio.Level
	// WaitForEdge blocks until an edge is detected or timeout elapses.
	// Callers pass a positive timeout and must not rely on Release waking
	// a blocked wait.
	WaitForEdge(timeout time.Duration) bool
	Release() error
}

// OutputPin is a claimed indicator pin.
type OutputPin interface {
	Out(l gpio.Level) error
	Release() error
}

// PinDriver hands out exclusive claims on header pins.
type PinDriver interface {
	ClaimInput(pin int) (InputPin, error)
	ClaimOutput(pin int) (OutputPin, error)
}

var (
	ErrPinInUse   = errors.New("pin already in use")
	ErrInvalidPin = errors.New("invalid pin number")
)

// PinNumbering selects how configured pin numbers are interpreted.
type PinNumbering string

const (
	// NumberingBoard uses physical header positions (1-40).
	NumberingBoard PinNumbering = "board"
	// NumberingBCM uses Broadcom GPIO numbers.
	NumberingBCM PinNumbering = "bcm"
)

// boardToBCM maps physical header positions of the 40-pin Raspberry Pi
// header to BCM GPIO numbers. Power and ground positions are absent.
var boardToBCM = map[int]int{
	3: 2, 5: 3, 7: 4, 8: 14, 10: 15, 11: 17, 12: 18, 13: 27,
	15: 22, 16: 23, 18: 24, 19: 10, 21: 9, 22: 25, 23: 11, 24: 8,
	26: 7, 27: 0, 28: 1, 29: 5, 31: 6, 32: 12, 33: 13, 35: 19,
	36: 16, 37: 26, 38: 20, 40: 21,
}

// gpioName returns the periph registry name for a configured pin.
func gpioName(n PinNumbering, pin int) (string, error) {
	if pin < 0 || pin > maxPinNumber {
		return "", fmt.Errorf("%w: %d", ErrInvalidPin, pin)
	}
	switch n {
	case NumberingBCM:
		return fmt.Sprintf("GPIO%d", pin), nil
	case NumberingBoard, "":
		bcm, ok := boardToBCM[pin]
		if !ok {
			return "", fmt.Errorf("%w: board pin %d is not a GPIO", ErrInvalidPin, pin)
		}
		return fmt.Sprintf("GPIO%d", bcm), nil
	default:
		return "", fmt.Errorf("unknown pin numbering %q", n)
	}
}

// ============================================================================
// periph.io driver
// ============================================================================

type periphDriver struct {
	numbering PinNumbering

	initOnce sync.Once
	initErr  error

	mu      sync.Mutex
	claimed map[int]struct{}
}

func newPeriphDriver(numbering PinNumbering) *periphDriver {
	return &periphDriver{
		numbering: numbering,
		claimed:   make(map[int]struct{}),
	}
}

func (d *periphDriver) lookup(pin int) (gpio.PinIO, error) {
	d.initOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			d.initErr = fmt.Errorf("gpio host init: %w", err)
		}
	})
	if d.initErr != nil {
		return nil, d.initErr
	}

	name, err := gpioName(d.numbering, pin)
	if err != nil {
		return nil, err
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s not found", ErrInvalidPin, name)
	}
	return p, nil
}

func (d *periphDriver) claim(pin int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.claimed[pin]; ok {
		return fmt.Errorf("%w: %d", ErrPinInUse, pin)
	}
	d.claimed[pin] = struct{}{}
	return nil
}

func (d *periphDriver) unclaim(pin int) {
	d.mu.Lock()
	delete(d.claimed, pin)
	d.mu.Unlock()
}

func (d *periphDriver) ClaimInput(pin int) (InputPin, error) {
	p, err := d.lookup(pin)
	if err != nil {
		return nil, err
	}
	if err := d.claim(pin); err != nil {
		return nil, err
	}
	if err := p.In(gpio.PullUp, gpio.RisingEdge); err != nil {
		d.unclaim(pin)
		return nil, fmt.Errorf("configure input pin %d: %w", pin, err)
	}
	return &periphInput{driver: d, pin: pin, io: p}, nil
}

func (d *periphDriver) ClaimOutput(pin int) (OutputPin, error) {
	p, err := d.lookup(pin)
	if err != nil {
		return nil, err
	}
	if err := d.claim(pin); err != nil {
		return nil, err
	}
	if err := p.Out(gpio.Low); err != nil {
		d.unclaim(pin)
		return nil, fmt.Errorf("configure output pin %d: %w", pin, err)
	}
	return &periphOutput{driver: d, pin: pin, io: p}, nil
}

type periphInput struct {
	driver *periphDriver
	pin    int
	io     gpio.PinIO
	once   sync.Once
}

func (p *periphInput) Read() gpio.Level { return p.io.Read() }

func (p *periphInput) WaitForEdge(timeout time.Duration) bool { return p.io.WaitForEdge(timeout) }

// Release unblocks WaitForEdge, disarms edge detection and drops the claim.
func (p *periphInput) Release() error {
	var err error
	p.once.Do(func() {
		err = errors.Join(p.io.Halt(), p.io.In(gpio.PullNoChange, gpio.NoEdge))
		p.driver.unclaim(p.pin)
	})
	return err
}

type periphOutput struct {
	driver *periphDriver
	pin    int
	io     gpio.PinIO
	once   sync.Once
}

func (p *periphOutput) Out(l gpio.Level) error { return p.io.Out(l) }

// Release drives the pin low and returns it to a floating input.
func (p *periphOutput) Release() error {
	var err error
	p.once.Do(func() {
		err = errors.Join(p.io.Out(gpio.Low), p.io.In(gpio.Float, gpio.NoEdge))
		p.driver.unclaim(p.pin)
	})
	return err
}
