package handlers

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"beacon/internal/domain/models"
	"beacon/internal/domain/services"
	"beacon/pkg/logger"
)

// HotspotService builds heatmap zones
type HotspotService interface {
	Map(ctx context.Context, q models.HotspotQuery) (*models.HotspotMap, error)
}

// HotspotsHandler handles the heatmap endpoint
type HotspotsHandler struct {
	service HotspotService
	logger  *logger.Logger
}

// NewHotspotsHandler creates a new HotspotsHandler
func NewHotspotsHandler(svc HotspotService, log *logger.Logger) *HotspotsHandler {
	return &HotspotsHandler{
		service: svc,
		logger:  log.WithComponent("hotspots-handler"),
	}
}

// Map handles GET /api/v1/hotspots?lat=&lng=&radius_km=&city=&group=
func (h *HotspotsHandler) Map(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		respondError(w, http.StatusServiceUnavailable, "hotspots not available")
		return
	}

	params := r.URL.Query()
	q := models.HotspotQuery{
		City:  params.Get("city"),
		Group: models.ComplaintGroup(params.Get("group")),
	}

	verr := &services.ValidationError{}
	if q.City == "" {
		q.Latitude = parseFloatParam(params.Get("lat"), "lat", verr)
		q.Longitude = parseFloatParam(params.Get("lng"), "lng", verr)
	}
	if radius := params.Get("radius_km"); radius != "" {
		q.RadiusKm = parseFloatParam(radius, "radius_km", verr)
	}
	if err := verr.OrNil(); err != nil {
		respondServiceError(w, h.logger, err, "failed to build hotspots")
		return
	}

	m, err := h.service.Map(r.Context(), q)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to build hotspots")
		return
	}

	respondJSON(w, http.StatusOK, m)
}

func parseFloatParam(s, field string, verr *services.ValidationError) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		verr.Add(field, "must be a number")
		return 0
	}
	return v
}
