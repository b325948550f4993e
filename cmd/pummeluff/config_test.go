package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pummeluff.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func intp(v int) *int { return &v }

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	hc := cfg.ToHandlerConfig()
	assert.Empty(t, hc.Buttons, "no button is bound by default")
}

func TestLoadConfigFile_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
gpio:
  button_pin_play_pause: 29
  button_pin_next_track: 31
  button_pin_increase_volume: 33
  led_pins1: [8]
  led_pins3: [10, 12]
mopidy:
  ws_url: ws://music.local:6680/mopidy/ws
logging:
  level: debug
`)
	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "ws://music.local:6680/mopidy/ws", cfg.Mopidy.WsURL)
	assert.Equal(t, defaultReadTimeoutMS, cfg.Mopidy.TimeoutMS, "unset keys keep defaults")
	assert.Equal(t, "board", cfg.GPIO.Numbering)

	hc := cfg.ToHandlerConfig()
	assert.Equal(t, []PinBinding{
		{Pin: 29, Action: Action{Kind: ActionPlayPause}},
		{Pin: 31, Action: Action{Kind: ActionNextTrack}},
		{Pin: 33, Action: Action{Kind: ActionIncreaseVolume}},
	}, hc.Buttons)
	assert.Equal(t, [indicatorStages][]int{{8}, nil, {10, 12}}, hc.Indicators)
}

func TestLoadConfigFile_RejectsUnknownField(t *testing.T) {
	_, err := LoadConfigFile(writeConfig(t, "gpio:\n  button_pin_eject: 3\n"))
	assert.Error(t, err)
}

func TestLoadConfigFile_RejectsTrailingDocument(t *testing.T) {
	_, err := LoadConfigFile(writeConfig(t, "logging:\n  level: info\n---\nlogging:\n  level: debug\n"))
	assert.ErrorContains(t, err, "trailing document")
}

func TestLoadConfigFile_Missing(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = LoadConfigFile("")
	assert.Error(t, err)
}

func TestValidate_PinRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GPIO.ButtonPinDecreaseVolume = intp(41)
	assert.ErrorContains(t, cfg.Validate(), "button_pin_decrease_volume")

	cfg = DefaultConfig()
	cfg.GPIO.ButtonPinDecreaseVolume = intp(40)
	assert.NoError(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.GPIO.LEDPins2 = []int{-1}
	assert.ErrorContains(t, cfg.Validate(), "led_pins2")
}

func TestValidate_DuplicatePins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GPIO.ButtonPinStop = intp(11)
	cfg.GPIO.ButtonPinNextTrack = intp(11)
	assert.ErrorContains(t, cfg.Validate(), "already used")

	cfg = DefaultConfig()
	cfg.GPIO.ButtonPinStop = intp(11)
	cfg.GPIO.LEDPins1 = []int{11}
	assert.ErrorContains(t, cfg.Validate(), "already used")
}

func TestValidate_LegacyLEDPin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GPIO.LEDPin = intp(8)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, [indicatorStages][]int{{8}, nil, nil}, cfg.ToHandlerConfig().Indicators)

	cfg.GPIO.LEDPins3 = []int{10}
	assert.ErrorContains(t, cfg.Validate(), "led_pin")
}

func TestValidate_Other(t *testing.T) {
	cases := map[string]func(*Config){
		"numbering":    func(c *Config) { c.GPIO.Numbering = "wiringpi" },
		"ws_url":       func(c *Config) { c.Mopidy.WsURL = "" },
		"timeout":      func(c *Config) { c.Mopidy.TimeoutMS = 0 },
		"retries":      func(c *Config) { c.Mopidy.ConnectRetries = 0 },
		"socket":       func(c *Config) { c.IPC.SocketPath = "" },
		"port":         func(c *Config) { c.HTTP.Port = 70000 },
		"sound dir":    func(c *Config) { c.Sound.Dir = "" },
		"power":        func(c *Config) { c.Power.Command = nil },
		"input device": func(c *Config) { c.Input.Devices = []string{""} },
		"log level":    func(c *Config) { c.Logging.Level = "verbose" },
		"log size":     func(c *Config) { c.Logging.File = "/tmp/p.log"; c.Logging.MaxSizeMB = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := DefaultConfig()
	cfg.Sound.Enabled = false
	cfg.Sound.Dir = ""
	assert.NoError(t, cfg.Validate(), "sound dir is only required when enabled")
}

func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()
	port := 0
	dev := "/dev/input/event3"
	level := "debug"
	FlagOverrides{HTTPPort: &port, InputDevice: &dev, LogLevel: &level}.Apply(&cfg)

	assert.Equal(t, 0, cfg.HTTP.Port, "zero values are applied")
	assert.Equal(t, []string{dev}, cfg.Input.Devices)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, defaultMopidyWsURL, cfg.Mopidy.WsURL, "nil overrides are ignored")

	FlagOverrides{}.Apply(nil)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, "/etc/pummeluff.yaml", ExpandPath("/etc/pummeluff.yaml"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "sounds"), ExpandPath("~/sounds"))
	assert.Equal(t, "~other/x", ExpandPath("~other/x"))
}
