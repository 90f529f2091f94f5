package ctl

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-eva/pkg/protocol"
)

// EStop triggers an emergency stop over the REST endpoint. REST rather
// than the control socket so it works even when the daemon is refusing
// websocket traffic.
func EStop(baseURL string, jsonOut bool) error {
	var resp map[string]any
	if err := postJSON(baseURL, "/api/estop", nil, &resp); err != nil {
		return err
	}
	if jsonOut {
		return printJSON(resp)
	}
	fmt.Println(colorize(red, "emergency stop triggered"))
	return nil
}

// Reset asks the daemon to clear an emergency stop.
func Reset(baseURL string, jsonOut bool) error {
	var resp map[string]any
	if err := postJSON(baseURL, "/api/estop/reset", nil, &resp); err != nil {
		return err
	}
	if jsonOut {
		return printJSON(resp)
	}
	fmt.Println(colorize(green, "emergency stop cleared"))
	return nil
}

// CameraMode pins camera selection to nav or head, or hands it back to
// head-motion auto switching.
func CameraMode(baseURL, mode string, jsonOut bool) error {
	var resp map[string]any
	if err := postJSON(baseURL, "/api/camera/mode", map[string]string{"mode": mode}, &resp); err != nil {
		return err
	}
	if jsonOut {
		return printJSON(resp)
	}
	fmt.Printf("camera mode %v, active %v\n", resp["mode"], resp["active"])
	return nil
}

// Stop sends a stop command over the control socket.
func Stop(baseURL string) error {
	return sendCommand(baseURL, protocol.CmdStop, nil, nil, 0)
}

// Drive sends one drive command. Velocities are in [-1, 1]; ttl bounds
// how long the daemon may act on it.
func Drive(baseURL string, vx, vy, vz float64, ttl time.Duration) error {
	return sendCommand(baseURL, protocol.CmdDrive,
		map[string]float64{"vx": vx, "vy": vy, "vz": vz}, nil, ttl)
}

// Head sends one absolute head command.
func Head(baseURL string, yaw, pitch float64, smooth bool) error {
	return sendCommand(baseURL, protocol.CmdHead, nil,
		map[string]any{"yaw": yaw, "pitch": pitch, "smooth": smooth}, 0)
}

// Behavior triggers a named behavior.
func Behavior(baseURL, name string) error {
	return sendCommand(baseURL, protocol.CmdBehavior, nil,
		map[string]any{"name": name}, 0)
}

// sendCommand opens the control socket, sends one envelope, and closes.
// The wire shape matches what the daemon's parser accepts.
func sendCommand(baseURL string, cmd protocol.CmdType, fparams map[string]float64, aparams map[string]any, ttl time.Duration) error {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(wsURL(baseURL, "/ws/control"), nil)
	if err != nil {
		return fmt.Errorf("control socket: %w", err)
	}
	defer conn.Close()

	msg := map[string]any{
		"type":    "command",
		"source":  "script",
		"cmd":     string(cmd),
		"sent_ts": float64(time.Now().UnixNano()) / 1e9,
	}
	if ttl > 0 {
		msg["ttl_ms"] = ttl.Milliseconds()
	}
	if fparams != nil {
		msg["params"] = fparams
	}
	if aparams != nil {
		msg["params"] = aparams
	}

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", cmd, err)
	}

	fmt.Printf("sent %s\n", cmd)
	return nil
}
