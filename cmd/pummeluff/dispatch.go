package main

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Action origins reported on the event feed.
const (
	originGPIO  = "gpio"
	originIPC   = "ipc"
	originHTTP  = "http"
	originInput = "input"
)

// DispatchEvent describes one executed action.
type DispatchEvent struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Parameter any       `json:"parameter,omitempty"`
	Origin    string    `json:"origin"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"-"`
}

// EventPublisher receives dispatch events. Publish must not block.
type EventPublisher interface {
	Publish(ev DispatchEvent)
}

// Dispatcher is the single path from every action source (buttons, input
// devices, IPC, HTTP) to the engine.
type Dispatcher struct {
	engine    Engine
	publisher EventPublisher
	logger    *slog.Logger

	now func() time.Time
}

// NewDispatcher returns a dispatcher. publisher may be nil.
func NewDispatcher(engine Engine, publisher EventPublisher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		engine:    engine,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Dispatch executes a without validating it. Execution failures have already
// been logged when the returned *ExecutionError reaches the caller.
func (d *Dispatcher) Dispatch(a Action, origin string) error {
	err := a.Execute(d.engine, d.logger.With("origin", origin))
	d.publish(a, origin, err)
	return err
}

// Submit validates a and then dispatches it. A *ValidationError is returned
// without touching the engine.
func (d *Dispatcher) Submit(a Action, origin string) error {
	if err := a.Validate(); err != nil {
		d.logger.Warn("rejected action", "origin", origin, "action", a.String(), "error", err)
		return err
	}
	return d.Dispatch(a, origin)
}

func (d *Dispatcher) publish(a Action, origin string, err error) {
	if d.publisher == nil {
		return
	}
	ev := DispatchEvent{
		ID:        uuid.NewString(),
		Action:    string(a.Kind),
		Parameter: a.Parameter,
		Origin:    origin,
		OK:        err == nil,
		At:        d.now().UTC(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	d.publisher.Publish(ev)
}
