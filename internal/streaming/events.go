package streaming

import (
	"time"

	"github.com/google/uuid"

	"beacon/internal/domain/models"
)

// EventType represents the type of realtime event
type EventType string

const (
	EventTypeComplaintSubmitted EventType = "complaint.submitted"
	EventTypeSOSTriggered       EventType = "sos.triggered"
)

// Event is pushed to NATS and WebSocket subscribers. It never carries the
// complaint text or reporter identity.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	// Origin is the instance that published the event
	Origin string `json:"origin,omitempty"`

	// Complaint details
	CaseID    string                `json:"case_id,omitempty"`
	Category  models.Category       `json:"category,omitempty"`
	Group     models.ComplaintGroup `json:"group,omitempty"`
	RiskLabel models.RiskLabel      `json:"risk_label,omitempty"`
	Priority  models.Priority       `json:"priority,omitempty"`

	// Position, when known
	Latitude  *float64 `json:"lat,omitempty"`
	Longitude *float64 `json:"lng,omitempty"`

	// SOS details
	AlertID  string `json:"alert_id,omitempty"`
	MapsLink string `json:"maps_link,omitempty"`
}

// NewComplaintEvent creates an event for a stored complaint
func NewComplaintEvent(c *models.Complaint) *Event {
	event := &Event{
		ID:        uuid.New().String(),
		Type:      EventTypeComplaintSubmitted,
		Timestamp: c.CreatedAt,
		CaseID:    c.CaseID,
		Category:  c.Category,
		RiskLabel: c.RiskLabel,
		Priority:  c.Priority,
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
	}
	if group, ok := models.GroupOf(c.Category); ok {
		event.Group = group
	}
	return event
}

// NewSOSEvent creates an event for a triggered SOS alert
func NewSOSEvent(a *models.SOSAlert) *Event {
	lat, lng := a.Latitude, a.Longitude
	return &Event{
		ID:        uuid.New().String(),
		Type:      EventTypeSOSTriggered,
		Timestamp: a.TriggeredAt,
		AlertID:   a.ID,
		MapsLink:  a.MapsLink,
		Latitude:  &lat,
		Longitude: &lng,
	}
}

// Subscription represents a client's subscription preferences
type Subscription struct {
	// Filter by event type (empty = all)
	Types []EventType `json:"types,omitempty"`

	// Filter complaint events by category group (empty = all)
	Groups []models.ComplaintGroup `json:"groups,omitempty"`

	// Only complaints assessed as High Risk priority
	HighPriorityOnly bool `json:"high_priority_only,omitempty"`
}

// Matches checks if an event matches the subscription filters
func (s *Subscription) Matches(event *Event) bool {
	if len(s.Types) > 0 && !contains(s.Types, event.Type) {
		return false
	}

	if event.Type != EventTypeComplaintSubmitted {
		return true
	}

	if len(s.Groups) > 0 && !contains(s.Groups, event.Group) {
		return false
	}

	if s.HighPriorityOnly && event.Priority != models.PriorityHigh {
		return false
	}

	return true
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
