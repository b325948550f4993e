package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"time"
)

// ============================================================================
// pummeluff-ctl - Command-line IPC Client
// ============================================================================
// This tool submits actions to the pummeluff daemon via IPC.
//
// Usage:
//   pummeluff-ctl play-pause
//   pummeluff-ctl volume 40
//   pummeluff-ctl up 10
//   pummeluff-ctl tracklist spotify:playlist:xyz
//   pummeluff-ctl list
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/pummeluff.sock)
// ============================================================================

// ActionEnvelope wraps actions for JSON (duplicated from the daemon for a
// standalone binary)
type ActionEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type actionData struct {
	Parameter any `json:"parameter"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status  string            `json:"status"`
	Error   string            `json:"error,omitempty"`
	Actions map[string]string `json:"actions,omitempty"`
}

const ioTimeout = 15 * time.Second

func main() {
	socketPath := "/tmp/pummeluff.sock"

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	env, err := parseCommand(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, errUsage) {
			printUsage()
		}
		os.Exit(1)
	}
	if env == nil {
		printUsage()
		os.Exit(0)
	}

	resp, err := send(socketPath, *env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if len(resp.Actions) > 0 {
		names := make([]string, 0, len(resp.Actions))
		for name := range resp.Actions {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%-16s %s\n", name, resp.Actions[name])
		}
		return
	}

	fmt.Println("ok")
}

var errUsage = errors.New("unknown command")

// parseCommand turns command-line arguments into an envelope. A nil
// envelope with a nil error means help was requested.
func parseCommand(args []string) (*ActionEnvelope, error) {
	switch args[0] {
	case "play-pause", "toggle":
		return &ActionEnvelope{Type: "PlayPause"}, nil
	case "stop":
		return &ActionEnvelope{Type: "Stop"}, nil
	case "prev", "previous":
		return &ActionEnvelope{Type: "PreviousTrack"}, nil
	case "next":
		return &ActionEnvelope{Type: "NextTrack"}, nil
	case "shutdown":
		return &ActionEnvelope{Type: "Shutdown"}, nil
	case "shuffle":
		return &ActionEnvelope{Type: "ToggleShuffle"}, nil
	case "list":
		return &ActionEnvelope{Type: "ActionClasses"}, nil

	case "volume", "set":
		if len(args) < 2 {
			return nil, fmt.Errorf("volume requires a value between 0 and 100")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("invalid volume: %v", err)
		}
		return withParameter("Volume", n)

	case "up", "down":
		kind := "IncreaseVolume"
		if args[0] == "down" {
			kind = "DecreaseVolume"
		}
		if len(args) < 2 {
			return &ActionEnvelope{Type: kind}, nil
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("invalid step: %v", err)
		}
		return withParameter(kind, n)

	case "tracklist", "load":
		if len(args) < 2 {
			return nil, fmt.Errorf("tracklist requires a URI")
		}
		return withParameter("Tracklist", args[1])

	case "help", "-h", "--help":
		return nil, nil
	}
	return nil, errUsage
}

func withParameter(kind string, parameter any) (*ActionEnvelope, error) {
	data, err := json.Marshal(actionData{Parameter: parameter})
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", kind, err)
	}
	return &ActionEnvelope{Type: kind, Data: data}, nil
}

func send(socketPath string, env ActionEnvelope) (IPCResponse, error) {
	var response IPCResponse

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return response, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ioTimeout))

	data, err := json.Marshal(env)
	if err != nil {
		return response, fmt.Errorf("marshal action: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return response, fmt.Errorf("send action: %w", err)
	}

	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return response, fmt.Errorf("decode response: %w", err)
	}
	if response.Status == "error" {
		return response, fmt.Errorf("daemon error: %s", response.Error)
	}
	return response, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `pummeluff-ctl - Control the pummeluff daemon via IPC

Usage:
  pummeluff-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/pummeluff.sock)

Commands:
  play-pause, toggle      Toggle playback
  stop                    Stop playback
  prev, previous          Previous track
  next                    Next track
  shuffle                 Toggle shuffle
  shutdown                Power off the appliance
  volume, set <0-100>     Set absolute volume
  up [N], down [N]        Change volume by N (default 5)
  tracklist, load <URI>   Replace the tracklist with URI and play
  list                    List available actions
  help, -h, --help        Show this help message

Examples:
  pummeluff-ctl next
  pummeluff-ctl volume 30
  pummeluff-ctl -socket /run/pummeluff.sock tracklist spotify:album:abc
`)
}
