// Package web provides the local dashboard for a Chinki session: current
// status over REST and websocket, plus controls for the camera, the
// recorder and manual reconnects.
package web

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/chinkilabs/go-chinki/internal/log"
	"github.com/chinkilabs/go-chinki/pkg/hub"
)

// State is the session snapshot pushed to dashboard clients.
type State struct {
	Status              string `json:"status"`
	Speaking            bool   `json:"speaking"`
	CameraActive        bool   `json:"camera_active"`
	CameraPrompt        bool   `json:"camera_prompt"`
	Recording           bool   `json:"recording"`
	UserTranscript      string `json:"user_transcript"`
	AssistantTranscript string `json:"assistant_transcript"`
}

// LogEntry is one dashboard log line.
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // info, tool, speech, error
	Message string `json:"message"`
}

// Controls are the callbacks the dashboard drives. Unset callbacks make
// the matching endpoint answer 503.
type Controls struct {
	SessionStart func() error
	SessionStop  func()
	Reconnect    func()

	CameraApprove func() error
	CameraStop    func()

	RecordStart func()
	RecordStop  func() (id string, wav []byte, err error)
}

// Server is the dashboard server.
type Server struct {
	app      *fiber.App
	port     string
	controls Controls

	state   State
	stateMu sync.RWMutex

	logs   []LogEntry
	logsMu sync.RWMutex

	statusHub *hub.Hub
}

// NewServer creates a dashboard server on the given port.
func NewServer(port string, controls Controls) *Server {
	s := &Server{
		port:      port,
		controls:  controls,
		logs:      make([]LogEntry, 0, 500),
		statusHub: hub.New("status"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Chinki Dashboard",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())
	app.Static("/", "./web")

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/logs", s.handleGetLogs)
	api.Post("/session/start", s.handleSessionStart)
	api.Post("/session/stop", s.handleSessionStop)
	api.Post("/session/reconnect", s.handleReconnect)
	api.Post("/camera/approve", s.handleCameraApprove)
	api.Post("/camera/stop", s.handleCameraStop)
	api.Post("/record/start", s.handleRecordStart)
	api.Post("/record/stop", s.handleRecordStop)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Start runs the server. It blocks.
func (s *Server) Start() error {
	log.Info("dashboard listening", "url", "http://localhost:"+s.port)
	go s.statusHub.Run()
	return s.app.Listen(":" + s.port)
}

// StartAsync runs the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("dashboard server failed", "err", err)
		}
	}()
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// UpdateState applies a mutation to the state and broadcasts the new
// snapshot to all websocket clients.
func (s *Server) UpdateState(update func(*State)) {
	s.stateMu.Lock()
	update(&s.state)
	state := s.state
	s.stateMu.Unlock()

	s.statusHub.BroadcastJSON(state)
}

// AddLog appends a dashboard log line.
func (s *Server) AddLog(logType, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    logType,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > 500 {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()
}
