package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("Pummeluff v%s\n", version)
	fmt.Println("Button, media key and tag-reader control daemon for Mopidy")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  pummeluff [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Daemon that turns GPIO button presses, evdev media keys and actions")
	fmt.Println("  submitted over IPC or HTTP into Mopidy playback commands. Indicator")
	fmt.Println("  LEDs are switched on in stages once the buttons are armed.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        YAML config file (default: built-in defaults)")
	fmt.Println()
	fmt.Println("  -pin-numbering string")
	fmt.Println("        Pin numbering: board|bcm (default \"board\")")
	fmt.Println()
	fmt.Println("  -mopidy-ws-url string")
	fmt.Printf("        Mopidy websocket URL (default %q)\n", defaultMopidyWsURL)
	fmt.Println()
	fmt.Println("  -mopidy-timeout-ms int")
	fmt.Printf("        Timeout for JSON-RPC responses in ms (default %d)\n", defaultReadTimeoutMS)
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Println("        Unix domain socket path for IPC (default \"/tmp/pummeluff.sock\")")
	fmt.Println()
	fmt.Println("  -http-port int")
	fmt.Println("        Management API port, 0 disables (default 6681)")
	fmt.Println()
	fmt.Println("  -sound / -sound-dir string")
	fmt.Println("        Enable the acknowledgement sound / directory holding success.wav")
	fmt.Println()
	fmt.Println("  -input-device string")
	fmt.Println("        Linux input event device for media keys (e.g. /dev/input/event0)")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -log-file string")
	fmt.Println("        Write rotated logs to this file instead of stdout")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start with a config file")
	fmt.Println("  pummeluff -config /etc/pummeluff.yaml")
	fmt.Println()
	fmt.Println("  # Connect to a remote Mopidy and listen for a USB keypad")
	fmt.Println("  pummeluff -mopidy-ws-url ws://music.local:6680/mopidy/ws -input-device /dev/input/event0")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - GPIO access requires root or membership in the 'gpio' group")
	fmt.Println("  - Input devices require membership in the 'input' group")
	fmt.Println("  - Mopidy must have its HTTP frontend enabled")
	fmt.Println()
}

func main() {
	var (
		configPath   = flag.String("config", "", "YAML config file")
		pinNumbering = flag.String("pin-numbering", string(NumberingBoard), "Pin numbering: board|bcm")
		mopidyWsURL  = flag.String("mopidy-ws-url", defaultMopidyWsURL, "Mopidy websocket URL")
		mopidyTO     = flag.Int("mopidy-timeout-ms", defaultReadTimeoutMS, "Timeout in milliseconds for JSON-RPC responses")
		ipcSocket    = flag.String("ipc-socket", "/tmp/pummeluff.sock", "Unix domain socket path for IPC")
		httpPort     = flag.Int("http-port", 6681, "Management API port (0 disables)")
		soundOn      = flag.Bool("sound", true, "Play the acknowledgement sound on button presses")
		soundDir     = flag.String("sound-dir", "/usr/share/pummeluff/sounds", "Directory holding the sound files")
		inputDevice  = flag.String("input-device", "", "Linux input event device for media keys")
		logLevelStr  = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		logFile      = flag.String("log-file", "", "Write rotated logs to this file")
		showVersion  = flag.Bool("version", false, "Print version and exit")
		showHelp     = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags given on the command line override the config file.
	var o FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "pin-numbering":
			o.PinNumbering = pinNumbering
		case "mopidy-ws-url":
			o.MopidyWsURL = mopidyWsURL
		case "mopidy-timeout-ms":
			o.MopidyTimeoutMS = mopidyTO
		case "ipc-socket":
			o.IPCSocketPath = ipcSocket
		case "http-port":
			o.HTTPPort = httpPort
		case "sound":
			o.SoundEnabled = soundOn
		case "sound-dir":
			o.SoundDir = soundDir
		case "input-device":
			o.InputDevice = inputDevice
		case "log-level":
			o.LogLevel = logLevelStr
		case "log-file":
			o.LogFile = logFile
		}
	})
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid config: %v\n", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(logLevel, logOutput(cfg.Logging))

	logger.Info("pummeluff starting", "version", version)
	logger.Debug("configuration",
		"config_file", *configPath,
		"pin_numbering", cfg.GPIO.Numbering,
		"mopidy_ws_url", cfg.Mopidy.WsURL,
		"ipc_socket", cfg.IPC.SocketPath,
		"http_port", cfg.HTTP.Port,
		"input_devices", cfg.Input.Devices,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("pummeluff stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("pummeluff stopped")
}

// run wires every component and blocks until SIGINT/SIGTERM or a fatal
// component error.
func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mopidy, err := NewMopidyClient(cfg.Mopidy.WsURL, logger, cfg.Mopidy.TimeoutMS, cfg.Mopidy.ConnectRetries)
	if err != nil {
		return err
	}
	defer mopidy.Close()
	if err := mopidy.Connect(); err != nil {
		// Mopidy may still be starting; requests reconnect on demand.
		logger.Warn("mopidy not reachable yet", "error", err)
	}

	engine := NewAppliance(mopidy, NewPowerControl(cfg.Power.Command, logger))

	hub := NewHub(logger, HubConfig{})
	dispatcher := NewDispatcher(engine, hub, logger)

	var sound AckSound = silentSound{}
	if cfg.Sound.Enabled {
		sound = NewCommandSound(cfg.Sound.Player, cfg.Sound.Dir, logger)
	}

	handler, err := NewGPIOHandler(cfg.ToHandlerConfig(), newPeriphDriver(PinNumbering(cfg.GPIO.Numbering)), dispatcher, sound, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		if err := handler.Run(gctx); err != nil {
			return fmt.Errorf("gpio: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return runIPCServer(gctx, cfg.IPC.SocketPath, dispatcher, logger)
	})

	if cfg.HTTP.Port > 0 {
		gin.SetMode(gin.ReleaseMode)
		router := NewRouter(NewAPIHandler(dispatcher, logger), hub, logger)
		g.Go(func() error {
			return runAPIServer(gctx, cfg.HTTP.Port, router, logger)
		})
	}

	if len(cfg.Input.Devices) > 0 {
		g.Go(func() error {
			if err := runInputReader(gctx, cfg.Input.Devices, dispatcher, logger); err != nil {
				return fmt.Errorf("input: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
