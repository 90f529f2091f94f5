package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-eva/internal/log"
	"github.com/teslashibe/go-eva/pkg/camera"
	"github.com/teslashibe/go-eva/pkg/hub"
	"github.com/teslashibe/go-eva/pkg/protocol"
)

// controlAck is sent back on the control socket for commands that
// could not be accepted, so operators see rejections immediately.
type controlAck struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// handleStatus returns the current state snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.core.Snapshot(time.Now()))
}

// handleDiagnostics returns internal counters for debugging.
func (s *Server) handleDiagnostics(c *fiber.Ctx) error {
	offered, dropped := s.core.Commands().Stats()
	diag := s.core.Diagnostics()
	return c.JSON(fiber.Map{
		"ticks":            diag.Ticks,
		"expired":          diag.Expired,
		"malformed":        diag.Malformed,
		"blocked":          diag.Blocked,
		"faults":           diag.Faults,
		"commands_offered": offered,
		"commands_dropped": dropped,
		"state_clients":    s.stateHub.ClientCount(),
		"video_clients":    s.videoHub.ClientCount(),
		"safety_state":     s.core.Safety().State(),
		"recent_warnings":  s.core.Safety().RecentWarnings(20),
	})
}

// handleEstop triggers an emergency stop over REST.
func (s *Server) handleEstop(c *fiber.Ctx) error {
	s.core.Safety().TriggerEmergencyStop("operator estop via api")
	return c.JSON(fiber.Map{"status": "estopped"})
}

// handleEstopReset attempts to clear an emergency stop. The reset is
// refused while the triggering condition still holds.
func (s *Server) handleEstopReset(c *fiber.Ctx) error {
	ok, reason := s.core.Safety().ResetEmergency(time.Now())
	if !ok {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"status": "refused",
			"reason": reason,
		})
	}
	return c.JSON(fiber.Map{"status": "reset"})
}

// handleCameraMode pins or releases camera selection. Body:
// {"mode": "auto" | "nav" | "head"}.
func (s *Server) handleCameraMode(c *fiber.Ctx) error {
	sel := s.core.Cameras()
	if sel == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no camera selector configured",
		})
	}

	var body struct {
		Mode string `json:"mode"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	switch body.Mode {
	case "auto":
		sel.ForceMode(camera.Auto)
	case "nav":
		sel.ForceMode(camera.ForcedNav)
	case "head":
		sel.ForceMode(camera.ForcedHead)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "mode must be auto, nav, or head",
		})
	}
	return c.JSON(fiber.Map{
		"mode":   sel.Mode(),
		"active": sel.Active(),
	})
}

// handleControlWS is the command ingress. Each text message is one
// command envelope; malformed input is answered with an error ack and
// the connection stays open. Only this channel feeds the watchdog.
func (s *Server) handleControlWS(c *websocket.Conn) {
	connID := uuid.NewString()
	log.Info("control client connected", "client", connID)
	defer log.Info("control client disconnected", "client", connID)

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			return
		}
		now := time.Now()

		env, err := protocol.Parse(raw, now)
		if err != nil {
			log.Warn("malformed command", "client", connID, "error", err)
			c.WriteJSON(controlAck{Type: "ack", Status: "malformed", Error: err.Error()})
			continue
		}

		// Any well-formed traffic proves the operator link is alive.
		s.core.Safety().Heartbeat(now)

		switch env.Cmd {
		case protocol.CmdHeartbeat:
			// Already fed the watchdog, nothing to enqueue.
		case protocol.CmdGetState:
			// Answered inline so the reply is not subject to the
			// telemetry cadence.
			if err := c.WriteJSON(s.core.Snapshot(now)); err != nil {
				return
			}
		default:
			s.core.Commands().Offer(env)
		}
	}
}

// handleStateWS attaches a telemetry subscriber to the state hub.
func (s *Server) handleStateWS(c *websocket.Conn) {
	// Send the current snapshot immediately so new clients don't wait
	// for the next broadcast tick.
	if err := c.WriteJSON(s.core.Snapshot(time.Now())); err != nil {
		c.Close()
		return
	}
	client := hub.NewClient(s.stateHub, c)
	client.Run() // Blocks until connection closes
}

// handleVideoWS attaches a subscriber to the video hub.
func (s *Server) handleVideoWS(c *websocket.Conn) {
	client := hub.NewClient(s.videoHub, c)
	client.Run() // Blocks until connection closes
}
