package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// Mopidy JSON-RPC client
// ============================================================================
// Mopidy serves JSON-RPC 2.0 over a WebSocket at /mopidy/ws. The same socket
// also carries unsolicited event frames ({"event": ...}); those are skipped
// while waiting for a response.
// ============================================================================

// MopidyClient manages WebSocket communication with Mopidy.
type MopidyClient struct {
	mu          sync.Mutex
	conn        *websocket.Conn
	url         string
	logger      *slog.Logger
	readTimeout time.Duration

	retries    int
	retryDelay time.Duration

	nextID int64
}

// RPCError is a JSON-RPC error object returned by Mopidy.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("mopidy rpc error %d: %s", e.Code, e.Message)
}

var errNotConnected = errors.New("no websocket connection")

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// NewMopidyClient validates the URL. It does not connect; call Connect, or
// let the first request connect lazily.
func NewMopidyClient(wsURL string, logger *slog.Logger, readTimeoutMS int, retries int) (*MopidyClient, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid websocket URL %q: scheme must be ws or wss", wsURL)
	}
	if retries <= 0 {
		retries = defaultConnectRetries
	}

	return &MopidyClient{
		url:         wsURL,
		logger:      logger,
		readTimeout: time.Duration(readTimeoutMS) * time.Millisecond,
		retries:     retries,
		retryDelay:  500 * time.Millisecond,
	}, nil
}

// Connect establishes the connection, retrying on failure.
func (c *MopidyClient) Connect() error {
	return c.connectWithRetry()
}

func (c *MopidyClient) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	d := websocket.Dialer{
		HandshakeTimeout: 2 * time.Second,
	}

	conn, _, err := d.Dial(c.url, nil)
	if err != nil {
		return err
	}

	c.conn = conn
	return nil
}

func (c *MopidyClient) connectWithRetry() error {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		err := c.connect()
		if err == nil {
			c.logger.Info("connected to Mopidy", "url", c.url)
			return nil
		}
		lastErr = err
		if attempt+1 < c.retries {
			c.logger.Warn("connection failed; retrying...", "error", err, "attempt", attempt+1)
			time.Sleep(c.retryDelay)
		}
	}
	return fmt.Errorf("failed to connect after %d attempts: %w", c.retries, lastErr)
}

// ensureConnected makes a single reconnect attempt, bounded by the
// handshake timeout. Only Connect retries.
func (c *MopidyClient) ensureConnected() error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.logger.Warn("connection lost; reconnecting...")
	if err := c.connect(); err != nil {
		return fmt.Errorf("reconnect to Mopidy: %w", err)
	}
	c.logger.Info("connected to Mopidy", "url", c.url)
	return nil
}

// call sends one request and waits for the response carrying its id.
// Requests are serialized on the connection.
func (c *MopidyClient) call(method string, params any) (json.RawMessage, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, errNotConnected
	}

	c.nextID++
	id := c.nextID

	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.dropLocked()
		return nil, err
	}

	_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	defer func() {
		if c.conn != nil {
			_ = c.conn.SetReadDeadline(time.Time{})
		}
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			c.dropLocked()
			return nil, err
		}

		var resp rpcResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			c.logger.Debug("skipping unparsable frame", "error", err)
			continue
		}
		if resp.ID == nil || *resp.ID != id {
			// Event frame or a stale response.
			continue
		}
		if resp.Error != nil {
			return nil, resp.Error
		}

		c.logger.Debug("mopidy rpc", "method", method, "result", string(resp.Result))
		return resp.Result, nil
	}
}

// dropLocked marks the connection as broken. c.mu must be held.
func (c *MopidyClient) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close closes the WebSocket connection.
func (c *MopidyClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked()
	return nil
}

// ============================================================================
// Core API
// ============================================================================

// GetVolume returns the mixer volume. A null result means no mixer.
func (c *MopidyClient) GetVolume() (int, bool, error) {
	res, err := c.call("core.mixer.get_volume", nil)
	if err != nil {
		return 0, false, fmt.Errorf("get volume: %w", err)
	}
	var v *int
	if err := json.Unmarshal(res, &v); err != nil {
		return 0, false, fmt.Errorf("get volume: %w", err)
	}
	if v == nil {
		return 0, false, nil
	}
	return *v, true, nil
}

func (c *MopidyClient) SetVolume(volume int) error {
	if _, err := c.call("core.mixer.set_volume", map[string]any{"volume": volume}); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}
	return nil
}

// PlaybackState returns "playing", "paused" or "stopped".
func (c *MopidyClient) PlaybackState() (string, error) {
	res, err := c.call("core.playback.get_state", nil)
	if err != nil {
		return "", fmt.Errorf("get state: %w", err)
	}
	var state string
	if err := json.Unmarshal(res, &state); err != nil {
		return "", fmt.Errorf("get state: %w", err)
	}
	return state, nil
}

// PlayPause pauses when playing, resumes when paused and starts playback
// otherwise.
func (c *MopidyClient) PlayPause() error {
	state, err := c.PlaybackState()
	if err != nil {
		return err
	}

	method := "core.playback.play"
	switch state {
	case "playing":
		method = "core.playback.pause"
	case "paused":
		method = "core.playback.resume"
	}
	if _, err := c.call(method, nil); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func (c *MopidyClient) simple(method string) error {
	if _, err := c.call(method, nil); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func (c *MopidyClient) Stop() error     { return c.simple("core.playback.stop") }
func (c *MopidyClient) Previous() error { return c.simple("core.playback.previous") }
func (c *MopidyClient) Next() error     { return c.simple("core.playback.next") }

func (c *MopidyClient) GetRandom() (bool, error) {
	res, err := c.call("core.tracklist.get_random", nil)
	if err != nil {
		return false, fmt.Errorf("get random: %w", err)
	}
	var random bool
	if err := json.Unmarshal(res, &random); err != nil {
		return false, fmt.Errorf("get random: %w", err)
	}
	return random, nil
}

func (c *MopidyClient) SetRandom(random bool) error {
	if _, err := c.call("core.tracklist.set_random", map[string]any{"value": random}); err != nil {
		return fmt.Errorf("set random: %w", err)
	}
	return nil
}

// LoadTracklist replaces the tracklist with uri and starts playback.
func (c *MopidyClient) LoadTracklist(uri string) error {
	if err := c.simple("core.tracklist.clear"); err != nil {
		return err
	}
	if _, err := c.call("core.tracklist.add", map[string]any{"uris": []string{uri}}); err != nil {
		return fmt.Errorf("add %s: %w", uri, err)
	}
	return c.simple("core.playback.play")
}
