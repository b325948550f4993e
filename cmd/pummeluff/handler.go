package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// ============================================================================
// GPIO Handler
// ============================================================================
//
// Lifecycle of one run:
//
//	Idle --arm--> Armed --indicators staged--> Running --ctx canceled--> Released
//	Idle -------------------(no pins configured)-----------------------> Released
//
// Edge watchers (one goroutine per input pin) stand in for interrupt
// callbacks. They race each other and the Run goroutine; all shared state is
// guarded by h.mu (lifecycle) and the debounce table (timestamps).
//
// ============================================================================

type handlerState int

const (
	stateIdle handlerState = iota
	stateArmed
	stateRunning
	stateReleasing
	stateReleased
)

func (s handlerState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateArmed:
		return "armed"
	case stateRunning:
		return "running"
	case stateReleasing:
		return "releasing"
	case stateReleased:
		return "released"
	default:
		return fmt.Sprintf("handlerState(%d)", int(s))
	}
}

// PinBinding binds one input pin to an action.
type PinBinding struct {
	Pin    int
	Action Action
}

// HandlerConfig is the resolved pin binding table for one run.
type HandlerConfig struct {
	Buttons []PinBinding

	// Indicators holds the staged indicator groups, stage 1 first.
	Indicators [indicatorStages][]int
}

// AckSound plays a short confirmation sound. Play must not block and its
// failures are not observable.
type AckSound interface {
	Play(name string)
}

// GPIOHandler owns the button and indicator pins for one run.
type GPIOHandler struct {
	driver     PinDriver
	dispatcher *Dispatcher
	sound      AckSound
	logger     *slog.Logger

	buttons    map[int]Action
	indicators [indicatorStages][]int
	debounce   *debounceTable

	// Injected for tests.
	now      func() time.Time
	sleep    func(time.Duration)
	edgePoll time.Duration

	mu       sync.Mutex
	state    handlerState
	inputs   map[int]InputPin
	outputs  [indicatorStages][]OutputPin
	inflight sync.WaitGroup
	watchers sync.WaitGroup
}

// NewGPIOHandler validates the binding table and seeds the debounce table
// with the construction time.
func NewGPIOHandler(cfg HandlerConfig, driver PinDriver, dispatcher *Dispatcher, sound AckSound, logger *slog.Logger) (*GPIOHandler, error) {
	buttons := make(map[int]Action, len(cfg.Buttons))
	pins := make([]int, 0, len(cfg.Buttons))
	for _, b := range cfg.Buttons {
		if b.Pin < 0 || b.Pin > maxPinNumber {
			return nil, fmt.Errorf("%w: button pin %d out of range 0-%d", ErrInvalidPin, b.Pin, maxPinNumber)
		}
		if _, dup := buttons[b.Pin]; dup {
			return nil, fmt.Errorf("pin %d is bound to more than one button", b.Pin)
		}
		buttons[b.Pin] = b.Action
		pins = append(pins, b.Pin)
	}
	sort.Ints(pins)

	var indicators [indicatorStages][]int
	for i, group := range cfg.Indicators {
		for _, p := range group {
			if p < 0 || p > maxPinNumber {
				return nil, fmt.Errorf("%w: indicator pin %d out of range 0-%d", ErrInvalidPin, p, maxPinNumber)
			}
		}
		indicators[i] = append([]int(nil), group...)
	}

	if sound == nil {
		sound = silentSound{}
	}

	return &GPIOHandler{
		driver:     driver,
		dispatcher: dispatcher,
		sound:      sound,
		logger:     logger,
		buttons:    buttons,
		indicators: indicators,
		debounce:   newDebounceTable(pins, time.Now(), debounceWindow),
		now:        time.Now,
		sleep:      time.Sleep,
		edgePoll:   edgePollInterval,
		inputs:     make(map[int]InputPin),
	}, nil
}

func (h *GPIOHandler) hasPins() bool {
	if len(h.buttons) > 0 {
		return true
	}
	for _, g := range h.indicators {
		if len(g) > 0 {
			return true
		}
	}
	return false
}

// State returns the current lifecycle state.
func (h *GPIOHandler) State() handlerState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *GPIOHandler) setState(s handlerState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// Run arms the hardware, stages the indicators and services button presses
// until ctx is canceled. All claimed pins are released before Run returns,
// on every path. A claim failure while arming is returned.
func (h *GPIOHandler) Run(ctx context.Context) error {
	h.mu.Lock()
	if h.state != stateIdle {
		h.mu.Unlock()
		return errors.New("gpio handler already started")
	}
	h.mu.Unlock()

	if !h.hasPins() {
		h.logger.Debug("no gpio pin configured")
		h.setState(stateReleased)
		return nil
	}

	if err := h.arm(); err != nil {
		h.teardown()
		return err
	}

	h.setState(stateArmed)
	h.stageIndicators()
	h.setState(stateRunning)
	h.logger.Info("gpio handler running", "buttons", len(h.buttons))

	<-ctx.Done()

	h.teardown()
	h.logger.Info("gpio handler stopped")
	return nil
}

// arm claims every configured pin. Edge watchers are started as soon as
// each input is claimed; presses are serviced once the state leaves Idle.
func (h *GPIOHandler) arm() error {
	pins := make([]int, 0, len(h.buttons))
	for p := range h.buttons {
		pins = append(pins, p)
	}
	sort.Ints(pins)

	for _, p := range pins {
		h.logger.Debug("setup pin as button pin", "pin", p, "action", h.buttons[p].String())
		in, err := h.driver.ClaimInput(p)
		if err != nil {
			return fmt.Errorf("claim button pin %d: %w", p, err)
		}
		h.mu.Lock()
		h.inputs[p] = in
		h.mu.Unlock()

		h.watchers.Add(1)
		go h.watch(p, in)
	}

	for stage, group := range h.indicators {
		for _, p := range group {
			h.logger.Debug("setup pin as indicator pin", "pin", p, "stage", stage+1)
			out, err := h.driver.ClaimOutput(p)
			if err != nil {
				return fmt.Errorf("claim indicator pin %d: %w", p, err)
			}
			h.mu.Lock()
			h.outputs[stage] = append(h.outputs[stage], out)
			h.mu.Unlock()
		}
	}
	return nil
}

// stageIndicators drives stage 1 high immediately; every later non-empty
// stage follows after indicatorStageDelay. Empty stages add no delay.
func (h *GPIOHandler) stageIndicators() {
	h.mu.Lock()
	stages := h.outputs
	h.mu.Unlock()

	for i, group := range stages {
		if i > 0 {
			if len(group) == 0 {
				continue
			}
			h.sleep(indicatorStageDelay)
		}
		for j, out := range group {
			if err := out.Out(gpio.High); err != nil {
				h.logger.Error("failed to activate indicator", "stage", i+1, "pin", h.indicators[i][j], "error", err)
			}
		}
	}
}

// watch services edges of one input pin until teardown starts. Waits are
// bounded: periph backends neither honor an infinite timeout nor wake a
// blocked wait when the pin is halted.
func (h *GPIOHandler) watch(pin int, in InputPin) {
	defer h.watchers.Done()
	for !h.closing() {
		if in.WaitForEdge(h.edgePoll) {
			h.handleEdge(pin, in)
		}
	}
}

func (h *GPIOHandler) closing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state >= stateReleasing
}

// handleEdge is the button callback: re-sample the level (active LOW),
// apply the debounce window and dispatch the bound action.
func (h *GPIOHandler) handleEdge(pin int, in InputPin) {
	now := h.now()

	h.mu.Lock()
	if h.state == stateIdle || h.state >= stateReleasing {
		h.mu.Unlock()
		return
	}
	if in.Read() != gpio.Low || !h.debounce.accept(pin, now) {
		h.mu.Unlock()
		return
	}
	h.inflight.Add(1)
	h.mu.Unlock()
	defer h.inflight.Done()

	action := h.buttons[pin]
	h.logger.Debug("button pushed", "pin", pin, "action", action.String())
	h.sound.Play(ackSoundName)

	// Execution errors are already logged; a press never takes the handler down.
	_ = h.dispatcher.Dispatch(action, originGPIO)
}

// teardown stops servicing presses, waits for in-flight actions, then
// releases every claimed pin exactly once.
func (h *GPIOHandler) teardown() {
	h.mu.Lock()
	h.state = stateReleasing
	inputs := h.inputs
	outputs := h.outputs
	h.inputs = make(map[int]InputPin)
	h.outputs = [indicatorStages][]OutputPin{}
	h.mu.Unlock()

	h.inflight.Wait()

	for p, in := range inputs {
		if err := in.Release(); err != nil {
			h.logger.Warn("failed to release button pin", "pin", p, "error", err)
		}
	}
	for i, group := range outputs {
		for j, out := range group {
			if err := out.Release(); err != nil {
				h.logger.Warn("failed to release indicator pin", "pin", h.indicators[i][j], "error", err)
			}
		}
	}

	h.watchers.Wait()
	h.setState(stateReleased)
}

type silentSound struct{}

func (silentSound) Play(string) {}
