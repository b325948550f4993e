package main

import (
	"encoding/binary"
	"log/slog"
	"strconv"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// wordSize is the size of a C long, which sets the width of the timeval
// fields (16-byte events on 32-bit Raspberry Pi OS, 24 bytes on arm64).
const wordSize = strconv.IntSize / 8

func inputEventSize(word int) int { return 2*word + 8 }

// decodeInputEvent parses one raw event. buf must hold inputEventSize(word)
// bytes.
func decodeInputEvent(buf []byte, word int) inputEvent {
	le := binary.LittleEndian
	var ev inputEvent
	if word == 8 {
		ev.Sec = int64(le.Uint64(buf[0:]))
		ev.Usec = int64(le.Uint64(buf[8:]))
	} else {
		ev.Sec = int64(int32(le.Uint32(buf[0:])))
		ev.Usec = int64(int32(le.Uint32(buf[4:])))
	}
	off := 2 * word
	ev.Type = le.Uint16(buf[off:])
	ev.Code = le.Uint16(buf[off+2:])
	ev.Value = int32(le.Uint32(buf[off+4:]))
	return ev
}

// mediaKeys maps evdev key codes of USB keypads and IR remotes to actions.
var mediaKeys = map[uint16]ActionKind{
	KEY_PLAYPAUSE:    ActionPlayPause,
	KEY_STOPCD:       ActionStop,
	KEY_PREVIOUSSONG: ActionPreviousTrack,
	KEY_NEXTSONG:     ActionNextTrack,
	KEY_VOLUMEUP:     ActionIncreaseVolume,
	KEY_VOLUMEDOWN:   ActionDecreaseVolume,
	KEY_SHUFFLE:      ActionToggleShuffle,
	KEY_POWER:        ActionShutdown,
}

// actionForEvent maps a key press to an action. Auto-repeat is honored for
// the volume keys only.
func actionForEvent(ev inputEvent) (Action, bool) {
	if ev.Type != EV_KEY {
		return Action{}, false
	}
	kind, ok := mediaKeys[ev.Code]
	if !ok {
		return Action{}, false
	}

	switch ev.Value {
	case evValuePress:
	case evValueRepeat:
		if kind != ActionIncreaseVolume && kind != ActionDecreaseVolume {
			return Action{}, false
		}
	default:
		return Action{}, false
	}
	return Action{Kind: kind}, true
}

// handleInputEvent dispatches the action bound to ev, if any.
func handleInputEvent(ev inputEvent, d *Dispatcher, logger *slog.Logger) {
	a, ok := actionForEvent(ev)
	if !ok {
		return
	}
	logger.Debug("media key", "code", ev.Code, "value", ev.Value, "action", a.String())
	_ = d.Dispatch(a, originInput)
}
