package main

import "time"

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY = 0x01

	KEY_VOLUMEDOWN   = 114
	KEY_VOLUMEUP     = 115
	KEY_POWER        = 116
	KEY_NEXTSONG     = 163
	KEY_PLAYPAUSE    = 164
	KEY_PREVIOUSSONG = 165
	KEY_STOPCD       = 166
	KEY_SHUFFLE      = 410
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Button handling
const (
	// A press is accepted only if strictly more than debounceWindow has
	// elapsed since the previous accepted press on the same pin.
	debounceWindow = 250 * time.Millisecond

	// Delay between two non-empty indicator stages.
	indicatorStageDelay = time.Second

	// Upper bound on one WaitForEdge call; also bounds how long teardown
	// waits for the edge watchers.
	edgePollInterval = 200 * time.Millisecond

	// Highest pin number accepted in the configuration (40-pin header).
	maxPinNumber = 40

	// Number of staged indicator groups.
	indicatorStages = 3

	// Sound played for every accepted button press.
	ackSoundName = "success.wav"
)

// Volume actions
const (
	minVolume          = 0
	maxVolume          = 100
	defaultVolumeDelta = 5
)

// Mopidy client defaults
const (
	defaultMopidyWsURL    = "ws://127.0.0.1:6680/mopidy/ws"
	defaultReadTimeoutMS  = 1000 // Timeout for reading a JSON-RPC response (ms)
	defaultConnectRetries = 10
)
