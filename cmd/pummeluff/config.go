package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the pummeluff daemon.
//
// Defaults and validation are centralized here so the rest of the code can
// assume a well-formed config.
type Config struct {
	// Button and indicator pins
	GPIO GPIOConfig `yaml:"gpio"`

	// Mopidy JSON-RPC connection
	Mopidy MopidyConfig `yaml:"mopidy"`

	// IPC socket (used by the tag reader and pummeluff-ctl)
	IPC IPCConfig `yaml:"ipc"`

	// Management HTTP API
	HTTP HTTPConfig `yaml:"http"`

	// Acknowledgement sound
	Sound SoundConfig `yaml:"sound"`

	// Shutdown action
	Power PowerConfig `yaml:"power"`

	// evdev media keys (USB keypads, IR receivers)
	Input InputConfig `yaml:"input"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// GPIOConfig mirrors the extension's button_pin_* / led_pins* settings.
// A nil pin leaves the button unbound.
type GPIOConfig struct {
	Numbering string `yaml:"numbering"` // "board" (physical header) or "bcm"

	ButtonPinShutdown       *int `yaml:"button_pin_shutdown,omitempty"`
	ButtonPinPlayPause      *int `yaml:"button_pin_play_pause,omitempty"`
	ButtonPinStop           *int `yaml:"button_pin_stop,omitempty"`
	ButtonPinPreviousTrack  *int `yaml:"button_pin_previous_track,omitempty"`
	ButtonPinNextTrack      *int `yaml:"button_pin_next_track,omitempty"`
	ButtonPinIncreaseVolume *int `yaml:"button_pin_increase_volume,omitempty"`
	ButtonPinDecreaseVolume *int `yaml:"button_pin_decrease_volume,omitempty"`

	LEDPin   *int  `yaml:"led_pin,omitempty"` // Deprecated: use led_pins1
	LEDPins1 []int `yaml:"led_pins1,omitempty"`
	LEDPins2 []int `yaml:"led_pins2,omitempty"`
	LEDPins3 []int `yaml:"led_pins3,omitempty"`
}

type MopidyConfig struct {
	WsURL          string `yaml:"ws_url"`
	TimeoutMS      int    `yaml:"timeout_ms"`
	ConnectRetries int    `yaml:"connect_retries"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	// Port 0 disables the management API.
	Port int `yaml:"port"`
}

type SoundConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	Player  string `yaml:"player"`
}

type PowerConfig struct {
	Command []string `yaml:"command"`
}

type InputConfig struct {
	Devices []string `yaml:"devices,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`

	// File enables rotated file logging instead of stdout.
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		GPIO: GPIOConfig{
			Numbering: string(NumberingBoard),
		},
		Mopidy: MopidyConfig{
			WsURL:          defaultMopidyWsURL,
			TimeoutMS:      defaultReadTimeoutMS,
			ConnectRetries: defaultConnectRetries,
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/pummeluff.sock",
		},
		HTTP: HTTPConfig{
			Port: 6681,
		},
		Sound: SoundConfig{
			Enabled: true,
			Dir:     "/usr/share/pummeluff/sounds",
			Player:  "aplay",
		},
		Power: PowerConfig{
			Command: []string{"sudo", "/sbin/shutdown", "-h", "now"},
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  5,
			MaxBackups: 3,
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
// Unknown fields are rejected.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries flag values on top of a loaded config. Each pointer
// is only applied when non-nil; main.go decides which flags exist.
type FlagOverrides struct {
	PinNumbering *string

	MopidyWsURL     *string
	MopidyTimeoutMS *int

	IPCSocketPath *string
	HTTPPort      *int

	SoundEnabled *bool
	SoundDir     *string

	InputDevice *string

	LogLevel *string
	LogFile  *string
}

// Apply merges the overrides into cfg. A non-nil pointer is applied even if
// it holds a zero value.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.PinNumbering != nil {
		cfg.GPIO.Numbering = *o.PinNumbering
	}

	if o.MopidyWsURL != nil {
		cfg.Mopidy.WsURL = *o.MopidyWsURL
	}
	if o.MopidyTimeoutMS != nil {
		cfg.Mopidy.TimeoutMS = *o.MopidyTimeoutMS
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}

	if o.SoundEnabled != nil {
		cfg.Sound.Enabled = *o.SoundEnabled
	}
	if o.SoundDir != nil {
		cfg.Sound.Dir = *o.SoundDir
	}

	if o.InputDevice != nil {
		cfg.Input.Devices = []string{*o.InputDevice}
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFile != nil {
		cfg.Logging.File = *o.LogFile
	}
}

// buttonBinding pairs a configured pin with the action it triggers.
type buttonBinding struct {
	key  string
	pin  *int
	kind ActionKind
}

func (g GPIOConfig) buttons() []buttonBinding {
	return []buttonBinding{
		{"button_pin_shutdown", g.ButtonPinShutdown, ActionShutdown},
		{"button_pin_play_pause", g.ButtonPinPlayPause, ActionPlayPause},
		{"button_pin_stop", g.ButtonPinStop, ActionStop},
		{"button_pin_previous_track", g.ButtonPinPreviousTrack, ActionPreviousTrack},
		{"button_pin_next_track", g.ButtonPinNextTrack, ActionNextTrack},
		{"button_pin_increase_volume", g.ButtonPinIncreaseVolume, ActionIncreaseVolume},
		{"button_pin_decrease_volume", g.ButtonPinDecreaseVolume, ActionDecreaseVolume},
	}
}

func (g GPIOConfig) stagedIndicators() [indicatorStages][]int {
	if g.LEDPin != nil {
		return [indicatorStages][]int{{*g.LEDPin}, nil, nil}
	}
	return [indicatorStages][]int{g.LEDPins1, g.LEDPins2, g.LEDPins3}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// GPIO
	switch PinNumbering(c.GPIO.Numbering) {
	case NumberingBoard, NumberingBCM:
	default:
		return fmt.Errorf("gpio.numbering must be %q or %q", NumberingBoard, NumberingBCM)
	}

	used := make(map[int]string)
	claim := func(key string, pin int) error {
		if pin < 0 || pin > maxPinNumber {
			return fmt.Errorf("gpio.%s must be between 0 and %d", key, maxPinNumber)
		}
		if prev, ok := used[pin]; ok {
			return fmt.Errorf("gpio.%s: pin %d is already used by gpio.%s", key, pin, prev)
		}
		used[pin] = key
		return nil
	}

	for _, b := range c.GPIO.buttons() {
		if b.pin == nil {
			continue
		}
		if err := claim(b.key, *b.pin); err != nil {
			return err
		}
	}

	if c.GPIO.LEDPin != nil && (len(c.GPIO.LEDPins1) > 0 || len(c.GPIO.LEDPins2) > 0 || len(c.GPIO.LEDPins3) > 0) {
		return errors.New("gpio.led_pin cannot be combined with gpio.led_pins1/2/3")
	}
	for i, group := range c.GPIO.stagedIndicators() {
		for _, p := range group {
			if err := claim(fmt.Sprintf("led_pins%d", i+1), p); err != nil {
				return err
			}
		}
	}

	// Mopidy
	if c.Mopidy.WsURL == "" {
		return errors.New("mopidy.ws_url must not be empty")
	}
	if c.Mopidy.TimeoutMS <= 0 {
		return errors.New("mopidy.timeout_ms must be > 0")
	}
	if c.Mopidy.ConnectRetries <= 0 {
		return errors.New("mopidy.connect_retries must be > 0")
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// HTTP
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port must be between 0 and 65535")
	}

	// Sound
	if c.Sound.Enabled {
		if c.Sound.Dir == "" {
			return errors.New("sound.enabled is true but sound.dir is empty")
		}
		if c.Sound.Player == "" {
			return errors.New("sound.enabled is true but sound.player is empty")
		}
	}

	// Power
	if len(c.Power.Command) == 0 || c.Power.Command[0] == "" {
		return errors.New("power.command must not be empty")
	}

	// Input
	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.File != "" && c.Logging.MaxSizeMB <= 0 {
		return errors.New("logging.max_size_mb must be > 0 when logging.file is set")
	}

	return nil
}

// ToHandlerConfig resolves the pin binding table. Volume buttons step by
// the default delta.
func (c *Config) ToHandlerConfig() HandlerConfig {
	var hc HandlerConfig
	for _, b := range c.GPIO.buttons() {
		if b.pin == nil {
			continue
		}
		hc.Buttons = append(hc.Buttons, PinBinding{Pin: *b.pin, Action: Action{Kind: b.kind}})
	}
	hc.Indicators = c.GPIO.stagedIndicators()
	return hc
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
