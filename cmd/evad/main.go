// Evad is the robot-side daemon. It owns the actuation core and every
// hardware write: commands arrive over the control websocket, survive
// arbitration and the safety gate, and leave as motor and servo writes.
// Telemetry and camera frames fan out to whoever is watching. Shutdown
// is graceful on SIGINT or SIGTERM and always ends with motors at zero.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/teslashibe/go-eva/internal/config"
	"github.com/teslashibe/go-eva/internal/log"
	"github.com/teslashibe/go-eva/pkg/camera"
	"github.com/teslashibe/go-eva/pkg/drive"
	"github.com/teslashibe/go-eva/pkg/gamepad"
	"github.com/teslashibe/go-eva/pkg/hw"
	"github.com/teslashibe/go-eva/pkg/protocol"
	"github.com/teslashibe/go-eva/pkg/remote"
	"github.com/teslashibe/go-eva/pkg/robot"
	"github.com/teslashibe/go-eva/pkg/safety"
	"github.com/teslashibe/go-eva/pkg/servo"
	"github.com/teslashibe/go-eva/pkg/web"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "/etc/eva/eva.toml", "Path to config TOML")
		bind       = pflag.String("bind", "", "Listen address (overrides config)")
		logLevel   = pflag.String("log-level", "", "Log level: debug, info, warn, error")
		mock       = pflag.Bool("mock", false, "Run against mock hardware (no robot needed)")
		boardURL   = pflag.String("board", "http://127.0.0.1:8000", "Chassis controller daemon URL")
		remoteURL  = pflag.String("remote", "", "Decision source websocket URL (optional)")
		joystickDv = pflag.String("joystick", "", "Local controller device, e.g. /dev/input/js0 (optional)")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	if *bind != "" {
		cfg.Server.Bind = *bind
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	log.Init(cfg.Logging.Level)

	if err := run(cfg, *mock, *boardURL, *remoteURL, *joystickDv); err != nil {
		log.Error("evad failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, mock bool, boardURL, remoteURL, joystickDev string) error {
	now := time.Now()

	// Hardware backends. The mock board keeps the whole daemon usable
	// on a machine with no robot attached.
	var (
		motors  robot.MotorDriver
		servoHW servo.Driver
		sensors robot.SensorReader
		frames  camera.Capture
	)
	if mock {
		board := hw.NewMockBoard()
		motors, servoHW, sensors = board, board, board
		frames = hw.MockCapture{}
		log.Warn("running with mock hardware")
	} else {
		board := hw.NewBoard(boardURL)
		motors, servoHW, sensors = board, board, board
		frames = camera.NewDevice(cfg.Camera.NavDevice, cfg.Camera.HeadDevice, cfg.Camera.JPEGQuality)
	}
	defer frames.Close()

	servoConfigs := make([]servo.Config, 0, len(cfg.Servos))
	for _, sc := range cfg.Servos {
		servoConfigs = append(servoConfigs, servo.Config{
			ID: sc.ID, Min: sc.Min, Max: sc.Max, Home: sc.Home, Step: sc.Step,
		})
	}
	servos := servo.NewController(servoHW, servoConfigs)

	mixer := drive.Mixer{
		MaxPWM:      cfg.Drive.MaxPWM,
		InvertLeft:  cfg.Drive.InvertLeft,
		InvertRight: cfg.Drive.InvertRight,
	}

	guard := safety.NewController(safety.Thresholds{
		MinDistanceCM:    cfg.Safety.MinDistanceCM,
		EStopDistanceCM:  cfg.Safety.EStopDistanceCM,
		LowBatteryV:      cfg.Safety.LowBatteryV,
		CriticalBatteryV: cfg.Safety.CriticalBatteryV,
		HeartbeatTimeout: cfg.Safety.HeartbeatTimeout(),
	}, now, nil)

	var dev *camera.Device
	switchFn := func(to camera.ID) error {
		if dev != nil {
			return dev.Switch(to)
		}
		return nil
	}
	if d, ok := frames.(*camera.Device); ok {
		dev = d
	}
	cameras := camera.NewSelector(switchFn)
	cameras.SetThresholds(cfg.Camera.MovementThreshold, cfg.Camera.IdleTimeout())
	if dev != nil {
		// The selector starts on the navigation camera; open its device
		// now so the stream has frames before any head motion.
		if err := dev.Switch(cameras.Active()); err != nil {
			log.Warn("initial camera open failed", "camera", cameras.Active(), "error", err)
		}
	}

	core := robot.New(robot.Config{
		Mixer:        mixer,
		Motors:       motors,
		Servos:       servos,
		Cameras:      cameras,
		Safety:       guard,
		Sensors:      sensors,
		TickRate:     cfg.TickRate(),
		WatchdogRate: cfg.WatchdogRate(),
	})

	server := web.NewServer(cfg.Server.Bind, core)
	broadcaster := robot.NewBroadcaster(core, server.StateHub(), cfg.TelemetryRate())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	start := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
			log.Debug("goroutine exited", "name", name)
		}()
	}

	start("core", core.Run)
	start("watchdog", core.RunWatchdog)
	start("broadcaster", broadcaster.Run)
	start("camera", func(ctx context.Context) {
		camera.Loop(ctx, cameras, frames, cfg.Camera.FPS, func(jpeg []byte) {
			server.SendVideoFrame(protocol.EncodeFrame(jpeg))
		})
	})

	if joystickDev != "" {
		js, err := hw.OpenJoystick(joystickDev)
		if err != nil {
			return fmt.Errorf("joystick: %w", err)
		}
		defer js.Close()
		pad := gamepad.NewReader(js, core.Commands(), gamepad.DefaultConfig())
		pad.SetHeartbeater(guard)
		start("gamepad", pad.Run)
	}

	if remoteURL != "" {
		client := remote.NewClient(remote.DefaultConfig(remoteURL), core.Commands(), guard)
		start("remote", func(ctx context.Context) {
			if err := client.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("decision link gave up", "error", err)
			}
		})
	}

	server.StartAsync()

	<-ctx.Done()
	log.Info("shutting down")

	if err := server.Shutdown(); err != nil {
		log.Warn("web server shutdown", "error", err)
	}
	wg.Wait()

	// Everything is stopped; leave the chassis in a known state.
	core.ForceStop()
	return nil
}
