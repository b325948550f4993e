package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// The tag reader and pummeluff-ctl submit actions through this socket.
//
// Protocol: Line-delimited JSON
//   - Client sends: {"type": "Volume", "data": {"parameter": 40}}
//   - Server responds: {"status": "ok"} or {"status": "error", "error": "msg"}
//   - {"type": "ActionClasses"} responds with the action registry.
// ============================================================================

const ipcListActions = "ActionClasses"

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status  string            `json:"status"`            // "ok" or "error"
	Error   string            `json:"error,omitempty"`   // error message if status == "error"
	Actions map[string]string `json:"actions,omitempty"` // registry, for ActionClasses
}

// runIPCServer serves the socket until ctx is canceled.
func runIPCServer(ctx context.Context, socketPath string, d *Dispatcher, logger *slog.Logger) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	// The tag reader may run as a different user.
	if err := os.Chmod(socketPath, 0666); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Closing the listener unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}
			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(conn, d, logger)
	}
}

// handleIPCConnection handles a single IPC connection
func handleIPCConnection(conn net.Conn, d *Dispatcher, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Debug("IPC received", "line", line)

		resp := handleIPCLine([]byte(line), d)
		if err := encoder.Encode(resp); err != nil {
			logger.Error("IPC failed to send response", "error", err)
			return
		}
	}

	logger.Debug("IPC connection closed")
}

func handleIPCLine(line []byte, d *Dispatcher) IPCResponse {
	var req struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(line, &req); err == nil && req.Type == ipcListActions {
		return IPCResponse{Status: "ok", Actions: ActionRegistry()}
	}

	a, err := UnmarshalAction(line)
	if err != nil {
		return IPCResponse{Status: "error", Error: fmt.Sprintf("parse action: %v", err)}
	}
	if err := d.Submit(a, originIPC); err != nil {
		return IPCResponse{Status: "error", Error: err.Error()}
	}
	return IPCResponse{Status: "ok"}
}

// SendIPCAction sends an action to the daemon and waits for the response.
func SendIPCAction(socketPath string, a Action) error {
	data, err := MarshalAction(a)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	resp, err := sendIPCLine(socketPath, data)
	if err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("ipc error: %s", resp.Error)
	}
	return nil
}

func sendIPCLine(socketPath string, data []byte) (IPCResponse, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "%s\n", strings.TrimSpace(string(data))); err != nil {
		return IPCResponse{}, fmt.Errorf("send action: %w", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return IPCResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}
