package ctl

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teslashibe/go-eva/pkg/protocol"
)

// Status fetches the robot's state snapshot and prints a summary.
func Status(baseURL string, jsonOut bool) error {
	var s protocol.StateMessage
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}
	if jsonOut {
		return printJSON(s)
	}

	age := time.Since(time.UnixMilli(s.Timestamp)).Round(time.Millisecond)

	fmt.Println()
	fmt.Println(header("  EVA STATUS"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 38)))
	fmt.Printf("  %-14s %s\n", colorize(dim, "Safety:"), colorize(safetyColor(s.Safety), s.Safety))
	if s.SafetyReason != "" {
		fmt.Printf("  %-14s %s\n", colorize(dim, "Reason:"), s.SafetyReason)
	}
	fmt.Printf("  %-14s fl=%d bl=%d fr=%d br=%d\n", colorize(dim, "Motors:"),
		s.Motor[0], s.Motor[1], s.Motor[2], s.Motor[3])
	fmt.Printf("  %-14s %s\n", colorize(dim, "Servos:"), formatServos(s.Servos))
	fmt.Printf("  %-14s %.1f cm\n", colorize(dim, "Distance:"), s.Sensors.UltrasonicCM)
	fmt.Printf("  %-14s %.2f V\n", colorize(dim, "Battery:"), s.Sensors.BatteryV)
	fmt.Printf("  %-14s %s\n", colorize(dim, "Camera:"), s.ActiveCamera)
	if s.LastCommand != "" {
		fmt.Printf("  %-14s %s\n", colorize(dim, "Last command:"), s.LastCommand)
	}
	fmt.Printf("  %-14s %s ago\n", colorize(dim, "Snapshot:"), age)
	fmt.Println()
	return nil
}

// Diagnostics fetches and prints the daemon's internal counters.
func Diagnostics(baseURL string, jsonOut bool) error {
	var d map[string]any
	if err := getJSON(baseURL, "/api/diagnostics", &d); err != nil {
		return err
	}
	if jsonOut {
		return printJSON(d)
	}

	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println()
	fmt.Println(header("  EVA DIAGNOSTICS"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 38)))
	for _, k := range keys {
		fmt.Printf("  %-20s %v\n", colorize(dim, k+":"), d[k])
	}
	fmt.Println()
	return nil
}

func formatServos(servos map[int]float64) string {
	if len(servos) == 0 {
		return "none"
	}
	ids := make([]int, 0, len(servos))
	for id := range servos {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("ch%d=%.1f°", id, servos[id]))
	}
	return strings.Join(parts, " ")
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
