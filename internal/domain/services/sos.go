package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"beacon/internal/domain/models"
	"beacon/pkg/logger"
)

// SOSPublisher fans an alert out to listeners
type SOSPublisher interface {
	PublishSOS(ctx context.Context, alert *models.SOSAlert) error
}

// SOSService prepares emergency alerts
type SOSService struct {
	contacts  []models.EmergencyContact
	appName   string
	location  *time.Location
	publisher SOSPublisher
	logger    *logger.Logger
	now       func() time.Time
}

// NewSOSService creates a new SOSService. publisher may be nil.
func NewSOSService(contacts []models.EmergencyContact, appName string, loc *time.Location, publisher SOSPublisher, log *logger.Logger) *SOSService {
	if loc == nil {
		loc = time.UTC
	}
	return &SOSService{
		contacts:  contacts,
		appName:   appName,
		location:  loc,
		publisher: publisher,
		logger:    log.WithComponent("sos"),
		now:       time.Now,
	}
}

// Contacts returns the emergency directory with share links filled in
func (s *SOSService) Contacts() []models.EmergencyContact {
	out := make([]models.EmergencyContact, len(s.contacts))
	for i, c := range s.contacts {
		out[i] = withLinks(c, "")
	}
	return out
}

// Trigger builds the alert for a position and publishes it
func (s *SOSService) Trigger(ctx context.Context, sess models.Session, req models.SOSRequest) (*models.SOSAlert, error) {
	verr := &ValidationError{}
	if !ValidCoordinates(req.Latitude, req.Longitude) {
		verr.Add("lat", "coordinates must be valid WGS84 latitude and longitude")
	}
	trusted := strings.TrimSpace(req.TrustedContact)
	if trusted != "" && !isPhoneNumber(trusted) {
		verr.Add("trusted_contact", "trusted contact must be a phone number")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	now := s.now()
	mapsLink := fmt.Sprintf("https://maps.google.com/?q=%s,%s", formatCoord(req.Latitude), formatCoord(req.Longitude))
	message := s.message(mapsLink, now)

	alert := &models.SOSAlert{
		ID:          uuid.NewString(),
		Message:     message,
		MapsLink:    mapsLink,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		TriggeredAt: now.UTC(),
	}
	for _, c := range s.contacts {
		alert.Contacts = append(alert.Contacts, withLinks(c, message))
	}
	if trusted != "" {
		number := strings.TrimPrefix(strings.ReplaceAll(trusted, " ", ""), "+")
		c := withLinks(models.EmergencyContact{
			Name:     "Trusted Emergency Contact",
			Number:   number,
			WhatsApp: number,
		}, message)
		alert.Trusted = &c
	}

	s.logger.Warn().
		Str("alert_id", alert.ID).
		Str("anon_id", sess.AnonID).
		Msg("sos triggered")

	if s.publisher != nil {
		if err := s.publisher.PublishSOS(ctx, alert); err != nil {
			s.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish sos alert")
		}
	}

	return alert, nil
}

func (s *SOSService) message(mapsLink string, at time.Time) string {
	return fmt.Sprintf(`🚨 SOS EMERGENCY ALERT 🚨

I need IMMEDIATE HELP!

📍 LIVE LOCATION:
%s

⏰ Time: %s

Sent from %s`, mapsLink, at.In(s.location).Format("2/1/2006, 3:04:05 pm"), s.appName)
}

func withLinks(c models.EmergencyContact, message string) models.EmergencyContact {
	c.TelLink = "tel:" + c.Number
	if c.WhatsApp != "" {
		c.WaLink = "https://wa.me/" + c.WhatsApp
		if message != "" {
			c.WaLink += "?text=" + encodeURIComponent(message)
		}
	}
	return c
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func isPhoneNumber(s string) bool {
	s = strings.TrimPrefix(strings.ReplaceAll(s, " ", ""), "+")
	if len(s) < 3 || len(s) > 15 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// encodeURIComponent escapes like the browser function of the same name,
// which is what WhatsApp share links are built with on the client.
func encodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	return uriComponentReplacer.Replace(escaped)
}

var uriComponentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)
