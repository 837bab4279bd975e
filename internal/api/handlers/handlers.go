package handlers

import (
	"beacon/internal/config"
	"beacon/internal/domain/services"
	"beacon/internal/streaming"
	"beacon/pkg/logger"
)

// Handlers holds all API handlers
type Handlers struct {
	Health     *HealthHandler
	Complaints *ComplaintsHandler
	Chat       *ChatHandler
	Salary     *SalaryHandler
	SOS        *SOSHandler
	Hotspots   *HotspotsHandler
	Session    *SessionHandler
	Streaming  *StreamingHandler
	Admin      *AdminHandler
}

// Dependencies holds dependencies for handlers
type Dependencies struct {
	Version    string
	Checks     map[string]Checker
	Complaints ComplaintService
	Submission config.SubmissionConfig
	Relay      ChatRelay
	Salary     *services.SalaryTracker
	SOS        SOSService
	Hotspots   HotspotService
	Sessions   SessionIssuer
	WSHub      *streaming.WebSocketHub
	EventBus   *streaming.EventBus
	Jobs       JobRunner
	Logger     *logger.Logger
}

// NewHandlers creates all handlers
func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		Health:     NewHealthHandler(deps.Version, deps.Checks, deps.Logger),
		Complaints: NewComplaintsHandler(deps.Complaints, deps.Submission, deps.Logger),
		Chat:       NewChatHandler(deps.Relay, deps.Logger),
		Salary:     NewSalaryHandler(deps.Salary, deps.Logger),
		SOS:        NewSOSHandler(deps.SOS, deps.Logger),
		Hotspots:   NewHotspotsHandler(deps.Hotspots, deps.Logger),
		Session:    NewSessionHandler(deps.Sessions, deps.Logger),
		Streaming:  NewStreamingHandler(deps.WSHub, deps.EventBus, deps.Logger),
		Admin:      NewAdminHandler(deps.Jobs, deps.Logger),
	}
}
