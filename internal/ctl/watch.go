package ctl

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-eva/pkg/protocol"
)

// Watch streams state snapshots from the telemetry socket until
// interrupted, one line per update.
func Watch(baseURL string, jsonOut bool) error {
	endpoint := wsURL(baseURL, "/ws/state")
	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if !jsonOut {
		fmt.Println()
		fmt.Printf("  %s %s\n", colorize(green, "connected"), colorize(dim, endpoint))
		fmt.Println(colorize(dim, "  "+strings.Repeat("─", 50)))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if jsonOut {
				fmt.Println(string(msg))
				continue
			}
			s, err := protocol.ParseState(msg)
			if err != nil {
				continue
			}
			renderState(s)
		}
	}()

	// Wait for interrupt or server-side close.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
		// Politely close so the daemon logs a clean disconnect.
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
	case <-done:
	}
	return nil
}

func renderState(s *protocol.StateMessage) {
	ts := time.UnixMilli(s.Timestamp).Format("15:04:05.000")
	line := fmt.Sprintf("  %s  %s  motors[%d %d %d %d]  %.1fcm  %.2fV  cam=%s",
		colorize(dim, ts),
		colorize(safetyColor(s.Safety), fmt.Sprintf("%-7s", s.Safety)),
		s.Motor[0], s.Motor[1], s.Motor[2], s.Motor[3],
		s.Sensors.UltrasonicCM, s.Sensors.BatteryV, s.ActiveCamera)
	if s.LastCommand != "" {
		line += "  " + colorize(dim, s.LastCommand)
	}
	fmt.Println(line)
}
