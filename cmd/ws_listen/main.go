package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// envelope mirrors the daemon's event frames.
type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type helloData struct {
	Actions map[string]string `json:"actions"`
}

type dispatchData struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	Parameter any    `json:"parameter,omitempty"`
	Origin    string `json:"origin"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:6681/ws", "pummeluff events websocket URL")
		raw   = flag.Bool("raw", false, "Print frames as received")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// Protects concurrent writes (pings and the close frame)
	var writeMu sync.Mutex

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	go func() {
		for range pingTicker.C {
			writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				log.Printf("ping failed: %v", err)
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			// The server pings us too; any frame proves liveness.
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			if messageType != websocket.TextMessage {
				fmt.Printf("[BINARY] %d bytes\n", len(message))
				continue
			}
			if *raw {
				fmt.Printf("%s\n", message)
				continue
			}
			handleTextMessage(message)
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// handleTextMessage prints one event frame.
func handleTextMessage(message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		fmt.Printf("[TEXT] %s\n", string(message))
		return
	}

	switch env.Type {
	case "hello":
		var h helloData
		if err := json.Unmarshal(env.Data, &h); err != nil {
			fmt.Printf("[HELLO] %s\n", string(env.Data))
			return
		}
		names := make([]string, 0, len(h.Actions))
		for name := range h.Actions {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Printf("[HELLO] %d actions\n", len(names))
		for _, name := range names {
			fmt.Printf("  %-16s %s\n", name, h.Actions[name])
		}

	case "action_dispatched":
		var ev dispatchData
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			fmt.Printf("[DISPATCH] %s\n", string(env.Data))
			return
		}
		fmt.Println(formatDispatch(env.Ts, ev))

	default:
		prettyJSON, _ := json.MarshalIndent(env, "", "  ")
		fmt.Printf("[EVENT]\n%s\n\n", string(prettyJSON))
	}
}

func formatDispatch(ts *time.Time, ev dispatchData) string {
	at := "--:--:--"
	if ts != nil {
		at = ts.Local().Format("15:04:05")
	}
	action := ev.Action
	if ev.Parameter != nil {
		action = fmt.Sprintf("%s(%v)", ev.Action, ev.Parameter)
	}
	if ev.OK {
		return fmt.Sprintf("[%s] %-7s %s ok", at, ev.Origin, action)
	}
	return fmt.Sprintf("[%s] %-7s %s FAILED: %s", at, ev.Origin, action, ev.Error)
}
