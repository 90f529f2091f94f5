// Package web exposes the robot over HTTP and websockets: a control
// channel for inbound commands, a state channel for telemetry fan-out,
// and a video channel for length-prefixed JPEG frames.
package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-eva/internal/log"
	"github.com/teslashibe/go-eva/pkg/hub"
	"github.com/teslashibe/go-eva/pkg/robot"
)

// Server is the robot's network front door.
type Server struct {
	app  *fiber.App
	bind string

	core *robot.Core

	// Hubs for websocket broadcast (thread-safe!)
	stateHub *hub.Hub
	videoHub *hub.Hub
}

// NewServer creates the server and wires its routes. bind is a
// host:port address, e.g. "0.0.0.0:8765".
func NewServer(bind string, core *robot.Core) *Server {
	s := &Server{
		bind:     bind,
		core:     core,
		stateHub: hub.New("state"),
		videoHub: hub.New("video"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-eva",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/diagnostics", s.handleDiagnostics)
	api.Post("/estop", s.handleEstop)
	api.Post("/estop/reset", s.handleEstopReset)
	api.Post("/camera/mode", s.handleCameraMode)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/control", websocket.New(s.handleControlWS))
	app.Get("/ws/state", websocket.New(s.handleStateWS))
	app.Get("/ws/video", websocket.New(s.handleVideoWS))

	s.app = app
	return s
}

// Start starts the hubs and blocks serving HTTP.
func (s *Server) Start() error {
	go s.stateHub.Run()
	go s.videoHub.Run()

	log.Info("web server listening", "bind", s.bind)
	return s.app.Listen(s.bind)
}

// StartAsync starts the web server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("web server error", "error", err)
		}
	}()
}

// StateHub returns the telemetry hub. The broadcaster publishes
// snapshots through it.
func (s *Server) StateHub() *hub.Hub {
	return s.stateHub
}

// SendVideoFrame fans a framed JPEG out to all video clients.
func (s *Server) SendVideoFrame(framed []byte) {
	s.videoHub.BroadcastBinary(framed)
}

// Shutdown gracefully stops the web server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
