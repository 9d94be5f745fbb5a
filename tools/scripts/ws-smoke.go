// Package main provides a CI-friendly smoke test for Beacon realtime fan-out.
//
// It validates:
//   - handshake + subprotocol selection
//   - joinSession against an existing session delivers a snapshot
//   - HTTP device upsert fans deviceUpdates out to every observer
//   - HTTP message append fans messageUpdates out to every observer
//   - a late joiner receives the snapshot before any later broadcast
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	v1 "beacon/contracts/session/v1"

	"github.com/coder/websocket"
)

const (
	defaultSubprotocol = "beacon.session.v1"
	maxReadBytes       = 1 << 20 // 1MiB
)

type smokeClient struct {
	name string
	conn *websocket.Conn

	inbox chan v1.Envelope
	errCh chan error
}

func main() {
	var (
		wsURL   = flag.String("url", "ws://127.0.0.1:2000/ws", "WebSocket URL")
		apiURL  = flag.String("api", "http://127.0.0.1:2000", "HTTP API base URL")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		sessID  = flag.String("session", "", "Session ID (default: generated)")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}

	sessionID := strings.TrimSpace(*sessID)
	if sessionID == "" {
		sessionID = fmt.Sprintf("smoke-%d", time.Now().UnixNano())
	}

	root := context.Background()

	mustHTTP(root, *apiURL, http.MethodPost, "/session",
		map[string]any{"sessionId": sessionID}, http.StatusCreated, *timeout)
	defer func() {
		mustHTTP(root, *apiURL, http.MethodDelete, "/session/"+sessionID, nil, http.StatusOK, *timeout)
	}()

	a := mustConnect(root, "A", *wsURL, *origin, *timeout)
	defer closeWS(a.conn)

	mustJoin(root, a, sessionID, *timeout)

	// Fresh session: the join snapshot carries empty lists.
	mustAssertDevices(root, a, sessionID, 0, *timeout)
	mustAssertMessages(root, a, sessionID, 0, *timeout)

	deviceID := fmt.Sprintf("dev-%d", time.Now().UnixNano())
	mustHTTP(root, *apiURL, http.MethodPost, "/session/"+sessionID+"/device",
		map[string]any{"id": deviceID, "name": "smoke device"}, http.StatusOK, *timeout)

	devsA := mustAssertDevices(root, a, sessionID, 1, *timeout)
	if devsA[0].ID != deviceID {
		fatalf("deviceUpdates device id mismatch (A): got=%q want=%q", devsA[0].ID, deviceID)
	}

	// Late joiner: must see the device in its snapshot before any broadcast.
	b := mustConnect(root, "B", *wsURL, *origin, *timeout)
	defer closeWS(b.conn)

	mustJoin(root, b, sessionID, *timeout)
	devsB := mustAssertDevices(root, b, sessionID, 1, *timeout)
	if devsB[0].ID != deviceID {
		fatalf("snapshot device id mismatch (B): got=%q want=%q", devsB[0].ID, deviceID)
	}
	mustAssertMessages(root, b, sessionID, 0, *timeout)

	text := "hello beacon"
	mustHTTP(root, *apiURL, http.MethodPost, "/session/"+sessionID+"/message",
		map[string]any{"type": "text", "sender": deviceID, "text": text}, http.StatusOK, *timeout)

	msgsA := mustAssertMessages(root, a, sessionID, 1, *timeout)
	msgsB := mustAssertMessages(root, b, sessionID, 1, *timeout)
	if msgsA[0].Text != text || msgsB[0].Text != text {
		fatalf("messageUpdates text mismatch: A=%q B=%q want=%q", msgsA[0].Text, msgsB[0].Text, text)
	}
	if msgsA[0].ID == "" || msgsA[0].ID != msgsB[0].ID {
		fatalf("messageUpdates id mismatch: A=%q B=%q", msgsA[0].ID, msgsB[0].ID)
	}

	if *verbose {
		fmt.Printf("fanout verified: session=%s device=%s message=%s\n", sessionID, deviceID, msgsA[0].ID)
	}

	fmt.Printf("OK: session=%s device=%s message=%s\n", sessionID, deviceID, msgsA[0].ID)
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(u.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustHTTP(parent context.Context, base, method, path string, body any, wantStatus int, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fatalf("marshal %s %s body: %v", method, path, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, rd)
	if err != nil {
		fatalf("build %s %s: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != wantStatus {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		fatalf("%s %s: status=%d want=%d body=%s", method, path, resp.StatusCode, wantStatus, string(b))
	}
}

func mustConnect(parent context.Context, name, wsURL, origin string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{defaultSubprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		fatalf("connect %s: %v", name, err)
	}

	assertSubprotocol(resp, defaultSubprotocol)

	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		name:  name,
		conn:  conn,
		inbox: make(chan v1.Envelope, 512),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()

	return c
}

func assertSubprotocol(resp *http.Response, want string) {
	if resp == nil {
		return
	}
	got := strings.TrimSpace(resp.Header.Get("Sec-WebSocket-Protocol"))
	if got == "" {
		return
	}
	if got != want {
		fatalf("subprotocol mismatch: got=%q want=%q", got, want)
	}
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			mt, data, err := c.conn.Read(context.Background())
			if err != nil {
				select {
				case c.errCh <- err:
				default:
				}
				return
			}

			if mt != websocket.MessageText && mt != websocket.MessageBinary {
				select {
				case c.errCh <- fmt.Errorf("unsupported message type: %v", mt):
				default:
				}
				return
			}

			var env v1.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad json: %w", err):
				default:
				}
				return
			}
			if err := env.Validate(); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad envelope: %w", err):
				default:
				}
				return
			}

			select {
			case c.inbox <- env:
			default:
				select {
				case c.errCh <- errors.New("inbox overflow: consumer too slow"):
				default:
				}
				return
			}
		}
	}()
}

func mustJoin(parent context.Context, c *smokeClient, sessionID string, stepTimeout time.Duration) {
	env := v1.Envelope{
		V:       v1.Version,
		Type:    v1.TypeSessionJoin,
		ID:      fmt.Sprintf("%s-join", c.name),
		TS:      time.Now().UTC(),
		Payload: mustJSON(v1.SessionJoinPayload{SessionID: sessionID}),
	}
	mustWriteWithTimeout(parent, c.conn, env, stepTimeout)
}

func mustAssertDevices(parent context.Context, c *smokeClient, sessionID string, wantLen int, stepTimeout time.Duration) []v1.Device {
	env := c.mustReadUntilType(parent, v1.TypeDeviceUpdates, stepTimeout)

	var p v1.DeviceUpdatesPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		fatalf("unmarshal deviceUpdates payload (%s): %v", c.name, err)
	}
	if p.SessionID != sessionID {
		fatalf("deviceUpdates sessionId mismatch (%s): got=%q want=%q", c.name, p.SessionID, sessionID)
	}
	if len(p.Devices) != wantLen {
		fatalf("deviceUpdates length mismatch (%s): got=%d want=%d", c.name, len(p.Devices), wantLen)
	}
	return p.Devices
}

func mustAssertMessages(parent context.Context, c *smokeClient, sessionID string, wantLen int, stepTimeout time.Duration) []v1.Message {
	env := c.mustReadUntilType(parent, v1.TypeMessageUpdates, stepTimeout)

	var p v1.MessageUpdatesPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		fatalf("unmarshal messageUpdates payload (%s): %v", c.name, err)
	}
	if p.SessionID != sessionID {
		fatalf("messageUpdates sessionId mismatch (%s): got=%q want=%q", c.name, p.SessionID, sessionID)
	}
	if len(p.Messages) != wantLen {
		fatalf("messageUpdates length mismatch (%s): got=%d want=%d", c.name, len(p.Messages), wantLen)
	}
	return p.Messages
}

func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration) v1.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q (%s): %v", wantType, c.name, ctx.Err())
		case err := <-c.errCh:
			if err == nil {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			fatalf("connection error while waiting for %q (%s): %v", wantType, c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			if env.Type == wantType {
				return env
			}
			if env.Type == v1.TypeError {
				var ep v1.ErrorPayload
				_ = json.Unmarshal(env.Payload, &ep)
				fatalf("server error (%s): code=%q msg=%q", c.name, ep.Code, ep.Message)
			}
			// Other update kinds can interleave between HTTP writes;
			// keep scanning until the wanted type arrives.
		}
	}
}

func mustWriteWithTimeout(parent context.Context, conn *websocket.Conn, env v1.Envelope, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		fatalf("marshal envelope: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
