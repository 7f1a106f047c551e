package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/chinkilabs/go-chinki/pkg/hub"
)

// handleStatus returns the current session snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return c.JSON(s.state)
}

// handleGetLogs returns recent dashboard log lines.
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return c.JSON(s.logs)
}

func (s *Server) handleSessionStart(c *fiber.Ctx) error {
	if s.controls.SessionStart == nil {
		return unavailable(c)
	}
	if err := s.controls.SessionStart(); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleSessionStop(c *fiber.Ctx) error {
	if s.controls.SessionStop == nil {
		return unavailable(c)
	}
	s.controls.SessionStop()
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleReconnect(c *fiber.Ctx) error {
	if s.controls.Reconnect == nil {
		return unavailable(c)
	}
	s.controls.Reconnect()
	s.AddLog("info", "manual reconnect requested")
	return c.JSON(fiber.Map{"ok": true})
}

// handleCameraApprove is the user granting the camera permission prompt.
func (s *Server) handleCameraApprove(c *fiber.Ctx) error {
	if s.controls.CameraApprove == nil {
		return unavailable(c)
	}
	if err := s.controls.CameraApprove(); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleCameraStop(c *fiber.Ctx) error {
	if s.controls.CameraStop == nil {
		return unavailable(c)
	}
	s.controls.CameraStop()
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleRecordStart(c *fiber.Ctx) error {
	if s.controls.RecordStart == nil {
		return unavailable(c)
	}
	s.controls.RecordStart()
	return c.JSON(fiber.Map{"ok": true})
}

// handleRecordStop finalizes the recording and returns it as a WAV
// download.
func (s *Server) handleRecordStop(c *fiber.Ctx) error {
	if s.controls.RecordStop == nil {
		return unavailable(c)
	}
	id, wav, err := s.controls.RecordStop()
	if err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	c.Set(fiber.HeaderContentType, "audio/wav")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="DrChinki_Session_`+id+`.wav"`)
	return c.Send(wav)
}

// handleStatusWS streams state snapshots to a dashboard client.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	s.stateMu.RLock()
	c.WriteJSON(s.state)
	s.stateMu.RUnlock()

	client := hub.NewClient(s.statusHub, c)
	client.Run()
}

func unavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": "not configured",
	})
}
