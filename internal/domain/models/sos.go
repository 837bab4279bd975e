package models

import "time"

// EmergencyContact is a helpline the worker can call or message
type EmergencyContact struct {
	Name     string `json:"name" yaml:"name"`
	Number   string `json:"number" yaml:"number"`
	WhatsApp string `json:"whatsapp,omitempty" yaml:"whatsapp"`
	TelLink  string `json:"tel_link,omitempty" yaml:"-"`
	WaLink   string `json:"wa_link,omitempty" yaml:"-"`
}

// SOSRequest carries the worker's live position
type SOSRequest struct {
	Latitude       float64 `json:"lat"`
	Longitude      float64 `json:"lng"`
	TrustedContact string  `json:"trusted_contact,omitempty"`
}

// SOSAlert is the prepared emergency broadcast
type SOSAlert struct {
	ID          string             `json:"id"`
	Message     string             `json:"message"`
	MapsLink    string             `json:"maps_link"`
	Latitude    float64            `json:"lat"`
	Longitude   float64            `json:"lng"`
	Contacts    []EmergencyContact `json:"contacts"`
	Trusted     *EmergencyContact  `json:"trusted_contact,omitempty"`
	TriggeredAt time.Time          `json:"triggered_at"`
}
