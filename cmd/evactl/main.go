// Evactl is the command-line client for a running evad instance. It
// talks to the daemon over HTTP for queries and the control websocket
// for commands.
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/teslashibe/go-eva/internal/ctl"
)

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8765", "Eva daemon URL (e.g. http://192.168.8.1:8765)")
		jsonOut = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
	)

	// Stop parsing global flags at the first non-flag argument (the command
	// name), so subcommand-specific flags like --ttl are not rejected.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	var err error
	switch cmd {
	case "status":
		err = ctl.Status(*host, *jsonOut)

	case "diagnostics":
		err = ctl.Diagnostics(*host, *jsonOut)

	case "stop":
		err = ctl.Stop(*host)

	case "estop":
		err = ctl.EStop(*host, *jsonOut)

	case "reset":
		err = ctl.Reset(*host, *jsonOut)

	case "drive":
		var ttl time.Duration
		driveFlags := pflag.NewFlagSet("drive", pflag.ContinueOnError)
		driveFlags.DurationVar(&ttl, "ttl", 500*time.Millisecond, "Command time-to-live")
		_ = driveFlags.Parse(subArgs)
		if driveFlags.NArg() != 3 {
			err = fmt.Errorf("usage: evactl drive [--ttl 500ms] <vx> <vy> <vz>")
			break
		}
		var vx, vy, vz float64
		if vx, vy, vz, err = parseVec3(driveFlags.Args()); err == nil {
			err = ctl.Drive(*host, vx, vy, vz, ttl)
		}

	case "head":
		var smooth bool
		headFlags := pflag.NewFlagSet("head", pflag.ContinueOnError)
		headFlags.BoolVar(&smooth, "smooth", true, "Step toward the target instead of jumping")
		_ = headFlags.Parse(subArgs)
		if headFlags.NArg() != 2 {
			err = fmt.Errorf("usage: evactl head [--smooth] <yaw> <pitch>")
			break
		}
		var yaw, pitch float64
		if yaw, err = strconv.ParseFloat(headFlags.Arg(0), 64); err != nil {
			break
		}
		if pitch, err = strconv.ParseFloat(headFlags.Arg(1), 64); err != nil {
			break
		}
		err = ctl.Head(*host, yaw, pitch, smooth)

	case "behavior":
		if len(subArgs) != 1 {
			err = fmt.Errorf("usage: evactl behavior <name>")
			break
		}
		err = ctl.Behavior(*host, subArgs[0])

	case "camera":
		if len(subArgs) != 1 || (subArgs[0] != "auto" && subArgs[0] != "nav" && subArgs[0] != "head") {
			err = fmt.Errorf("usage: evactl camera <auto|nav|head>")
			break
		}
		err = ctl.CameraMode(*host, subArgs[0], *jsonOut)

	case "watch":
		err = ctl.Watch(*host, *jsonOut)

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func parseVec3(args []string) (float64, float64, float64, error) {
	v := [3]float64{}
	for i, a := range args[:3] {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("bad velocity %q: %w", a, err)
		}
		v[i] = f
	}
	return v[0], v[1], v[2], nil
}

func usage() {
	fmt.Print(`
  evactl — Eva robot control CLI

  USAGE
    evactl [flags] <command> [command-flags]

  COMMANDS (query)
    status          Show safety state, motors, servos, and sensors
    diagnostics     Show the daemon's internal counters
    watch           Stream live state snapshots

  COMMANDS (control)
    drive           Send one drive command: evactl drive 0.5 0 0
    head            Point the head: evactl head 120 80
    behavior        Trigger a named behavior: evactl behavior look_left
    camera          Pin camera selection: evactl camera <auto|nav|head>
    stop            Stop all motion
    estop           Trigger an emergency stop
    reset           Clear an emergency stop

  FLAGS
    -H, --host      Daemon URL (default http://127.0.0.1:8765)
        --json      Raw JSON output

`)
}
