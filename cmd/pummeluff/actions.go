package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// ============================================================================
// Action Types - closed taxonomy of playback operations
// ============================================================================
// Actions represent intent from the GPIO buttons, input devices, IPC clients
// (the tag reader) and the management API. Every variant is validated and
// executed through a single switch over ActionKind.
// ============================================================================

// ActionKind names one variant of the action taxonomy.
type ActionKind string

const (
	ActionPlayPause      ActionKind = "PlayPause"
	ActionStop           ActionKind = "Stop"
	ActionPreviousTrack  ActionKind = "PreviousTrack"
	ActionNextTrack      ActionKind = "NextTrack"
	ActionShutdown       ActionKind = "Shutdown"
	ActionTracklist      ActionKind = "Tracklist"
	ActionToggleShuffle  ActionKind = "ToggleShuffle"
	ActionVolume         ActionKind = "Volume"
	ActionIncreaseVolume ActionKind = "IncreaseVolume"
	ActionDecreaseVolume ActionKind = "DecreaseVolume"
)

// actionKinds lists every variant in registry order.
var actionKinds = []ActionKind{
	ActionPlayPause,
	ActionStop,
	ActionPreviousTrack,
	ActionNextTrack,
	ActionShutdown,
	ActionTracklist,
	ActionToggleShuffle,
	ActionVolume,
	ActionIncreaseVolume,
	ActionDecreaseVolume,
}

// actionDescriptions is the action registry served to the management UI.
var actionDescriptions = map[ActionKind]string{
	ActionPlayPause:      "Pauses or resumes the playback, based on the current state.",
	ActionStop:           "Stops the playback.",
	ActionPreviousTrack:  "Changes to the previous track.",
	ActionNextTrack:      "Changes to the next track.",
	ActionShutdown:       "Shutting down the system.",
	ActionTracklist:      "Replaces the current tracklist with the URI retrieved from the tag's parameter.",
	ActionToggleShuffle:  "Toggles shuffle (random) mode of the tracklist.",
	ActionVolume:         "Sets the volume to the percentage value retrieved from the tag's parameter.",
	ActionIncreaseVolume: "Increases the volume by the percentage value retrieved from the tag's parameter.",
	ActionDecreaseVolume: "Decreases the volume by the percentage value retrieved from the tag's parameter.",
}

// ActionRegistry returns a copy of the name -> description table.
func ActionRegistry() map[string]string {
	out := make(map[string]string, len(actionDescriptions))
	for k, v := range actionDescriptions {
		out[string(k)] = v
	}
	return out
}

// ParseActionKind resolves an action name (as listed by the registry).
func ParseActionKind(name string) (ActionKind, error) {
	k := ActionKind(name)
	if _, ok := actionDescriptions[k]; !ok {
		return "", fmt.Errorf("unknown action: %q", name)
	}
	return k, nil
}

// Action is one variant plus its raw, untyped parameter (string, number or nil).
type Action struct {
	Kind      ActionKind
	Parameter any
}

func (a Action) String() string {
	if a.Parameter == nil {
		return string(a.Kind) + "()"
	}
	return fmt.Sprintf("%s(%v)", a.Kind, a.Parameter)
}

// ============================================================================
// Errors
// ============================================================================

// ValidationError reports a parameter that failed type or range checks.
type ValidationError struct {
	Kind      ActionKind
	Parameter any
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid parameter %v: %s", e.Kind, e.Parameter, e.Reason)
}

// ExecutionError is returned (after being logged) when Execute could not
// apply an action. Callers on the button path discard it.
type ExecutionError struct {
	Kind ActionKind
	Err  error
}

func (e *ExecutionError) Error() string { return fmt.Sprintf("execute %s: %v", e.Kind, e.Err) }
func (e *ExecutionError) Unwrap() error { return e.Err }

var (
	errMissingParameter = errors.New("parameter is required")
	errVolumeUnknown    = errors.New("current volume is unknown (no mixer?)")
)

// ============================================================================
// Validation
// ============================================================================

// Validate checks the action's parameter. Parameterless actions always pass.
func (a Action) Validate() error {
	switch a.Kind {
	case ActionPlayPause, ActionStop, ActionPreviousTrack, ActionNextTrack,
		ActionShutdown, ActionToggleShuffle:
		return nil

	case ActionTracklist:
		if _, err := tracklistURI(a.Parameter); err != nil {
			return &ValidationError{Kind: a.Kind, Parameter: a.Parameter, Reason: err.Error()}
		}
		return nil

	case ActionVolume:
		if _, err := volumeParameter(a.Parameter, nil); err != nil {
			return &ValidationError{Kind: a.Kind, Parameter: a.Parameter, Reason: err.Error()}
		}
		return nil

	case ActionIncreaseVolume, ActionDecreaseVolume:
		def := defaultVolumeDelta
		if _, err := volumeParameter(a.Parameter, &def); err != nil {
			return &ValidationError{Kind: a.Kind, Parameter: a.Parameter, Reason: err.Error()}
		}
		return nil

	default:
		return &ValidationError{Kind: a.Kind, Parameter: a.Parameter, Reason: "unknown action"}
	}
}

// volumeParameter coerces p to an integer in [0,100]. If def is non-nil an
// absent parameter (nil or blank string) yields *def.
func volumeParameter(p any, def *int) (int, error) {
	if def != nil && isBlank(p) {
		return *def, nil
	}
	v, err := coerceInt(p)
	if err != nil {
		return 0, err
	}
	if v < minVolume || v > maxVolume {
		return 0, fmt.Errorf("volume parameter has to be a number between %d and %d", minVolume, maxVolume)
	}
	return v, nil
}

func tracklistURI(p any) (string, error) {
	s, ok := p.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", errMissingParameter
	}
	return strings.TrimSpace(s), nil
}

func isBlank(p any) bool {
	if p == nil {
		return true
	}
	s, ok := p.(string)
	return ok && strings.TrimSpace(s) == ""
}

// coerceInt converts the untyped parameter into an int. Strings are parsed
// as base-10 integers, floats must be integral.
func coerceInt(p any) (int, error) {
	switch v := p.(type) {
	case nil:
		return 0, errMissingParameter
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", v.String())
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported parameter type %T", p)
	}
}

// ============================================================================
// Execution
// ============================================================================

// Execute applies the action to the engine.
//
// Failures (an unconvertible parameter, an unknown current volume, a failing
// engine call) are logged at error level and returned as *ExecutionError.
// The engine is left untouched when the parameter cannot be converted.
func (a Action) Execute(e Engine, logger *slog.Logger) error {
	err := a.execute(e, logger)
	if err != nil {
		err = &ExecutionError{Kind: a.Kind, Err: err}
		logger.Error("action failed", "action", a.String(), "error", err)
	}
	return err
}

func (a Action) execute(e Engine, logger *slog.Logger) error {
	switch a.Kind {
	case ActionPlayPause:
		logger.Info("toggling play/pause")
		return e.PlayPause()

	case ActionStop:
		logger.Info("stopping playback")
		return e.Stop()

	case ActionPreviousTrack:
		logger.Info("changing to previous track")
		return e.Previous()

	case ActionNextTrack:
		logger.Info("changing to next track")
		return e.Next()

	case ActionShutdown:
		logger.Info("shutting down")
		return e.PowerOff()

	case ActionTracklist:
		uri, err := tracklistURI(a.Parameter)
		if err != nil {
			return err
		}
		logger.Info("replacing tracklist", "uri", uri)
		return e.LoadTracklist(uri)

	case ActionToggleShuffle:
		random, err := e.GetRandom()
		if err != nil {
			return err
		}
		logger.Info("toggling shuffle", "from", random, "to", !random)
		return e.SetRandom(!random)

	case ActionVolume:
		v, err := volumeParameter(a.Parameter, nil)
		if err != nil {
			return err
		}
		logger.Info("setting volume", "volume", v)
		return e.SetVolume(v)

	case ActionIncreaseVolume:
		return stepVolume(e, a.Parameter, +1, logger)

	case ActionDecreaseVolume:
		return stepVolume(e, a.Parameter, -1, logger)

	default:
		return fmt.Errorf("unknown action %q", a.Kind)
	}
}

// stepVolume reads the current volume, applies direction*delta and clamps
// the result to [0,100]. The read and the write are not atomic with respect
// to other engine clients.
func stepVolume(e Engine, p any, direction int, logger *slog.Logger) error {
	def := defaultVolumeDelta
	delta, err := volumeParameter(p, &def)
	if err != nil {
		return err
	}

	current, known, err := e.GetVolume()
	if err != nil {
		return err
	}
	if !known {
		return errVolumeUnknown
	}

	next := current + direction*delta
	if next > maxVolume {
		next = maxVolume
	}
	if next < minVolume {
		next = minVolume
	}

	if err := e.SetVolume(next); err != nil {
		return err
	}
	if direction > 0 {
		logger.Info("increased volume", "from", current, "to", next)
	} else {
		logger.Info("decreased volume", "from", current, "to", next)
	}
	return nil
}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================
// ActionEnvelope wraps actions for the IPC socket and the HTTP API.
// ============================================================================

// ActionEnvelope wraps an action with a type discriminator for JSON marshaling
type ActionEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type actionData struct {
	Parameter any `json:"parameter,omitempty"`
}

// UnmarshalAction deserializes a JSON action envelope into an Action.
// It does not validate the parameter.
func UnmarshalAction(data []byte) (Action, error) {
	var env ActionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Action{}, fmt.Errorf("unmarshal envelope: %w", err)
	}

	kind, err := ParseActionKind(env.Type)
	if err != nil {
		return Action{}, err
	}

	a := Action{Kind: kind}
	if len(env.Data) > 0 {
		var d actionData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return Action{}, fmt.Errorf("unmarshal %s: %w", kind, err)
		}
		a.Parameter = d.Parameter
	}
	return a, nil
}

// MarshalAction serializes an Action into a JSON action envelope
func MarshalAction(a Action) ([]byte, error) {
	if _, ok := actionDescriptions[a.Kind]; !ok {
		return nil, fmt.Errorf("unknown action type: %q", a.Kind)
	}

	env := ActionEnvelope{Type: string(a.Kind)}
	if a.Parameter != nil {
		data, err := json.Marshal(actionData{Parameter: a.Parameter})
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", a.Kind, err)
		}
		env.Data = data
	}

	return json.Marshal(env)
}
