package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"beacon/internal/domain/models"
	"beacon/pkg/logger"
)

const kmPerDegree = 111.32

// GeoIndex stores complaint positions per group
type GeoIndex interface {
	AddPoints(ctx context.Context, points []models.GeoPoint) error
	ReplacePoints(ctx context.Context, points []models.GeoPoint) error
	Nearby(ctx context.Context, group models.ComplaintGroup, lat, lng, radiusKm float64) ([]models.GeoPoint, error)
}

// Geocoder resolves a place name to coordinates
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*models.Coordinates, error)
}

// HotspotOptions tunes zone building
type HotspotOptions struct {
	DefaultRadiusKm float64
	MaxRadiusKm     float64
	ZoneCellKm      float64
	Lookback        time.Duration
}

// HotspotService turns located complaints into heatmap zones
type HotspotService struct {
	index    GeoIndex
	repo     ComplaintRepository
	geocoder Geocoder
	opts     HotspotOptions
	logger   *logger.Logger
	now      func() time.Time
}

// NewHotspotService creates a new HotspotService. geocoder may be nil, in
// which case city lookups are rejected.
func NewHotspotService(index GeoIndex, repo ComplaintRepository, geocoder Geocoder, opts HotspotOptions, log *logger.Logger) *HotspotService {
	if opts.DefaultRadiusKm <= 0 {
		opts.DefaultRadiusKm = 25
	}
	if opts.MaxRadiusKm <= 0 {
		opts.MaxRadiusKm = 200
	}
	if opts.ZoneCellKm <= 0 {
		opts.ZoneCellKm = 2
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 90 * 24 * time.Hour
	}
	return &HotspotService{
		index:    index,
		repo:     repo,
		geocoder: geocoder,
		opts:     opts,
		logger:   log.WithComponent("hotspots"),
		now:      time.Now,
	}
}

// IndexComplaint adds one located complaint to the index
func (s *HotspotService) IndexComplaint(ctx context.Context, c *models.Complaint) error {
	point, ok := geoPointOf(c)
	if !ok {
		return nil
	}
	return s.index.AddPoints(ctx, []models.GeoPoint{point})
}

// Rebuild reloads the whole index from the complaint store
func (s *HotspotService) Rebuild(ctx context.Context) (int, error) {
	complaints, err := s.repo.ListLocated(ctx, s.now().Add(-s.opts.Lookback))
	if err != nil {
		return 0, fmt.Errorf("%w: list located complaints", ErrStorage)
	}

	points := make([]models.GeoPoint, 0, len(complaints))
	for i := range complaints {
		if p, ok := geoPointOf(&complaints[i]); ok {
			points = append(points, p)
		}
	}

	if err := s.index.ReplacePoints(ctx, points); err != nil {
		return 0, fmt.Errorf("failed to replace hotspot index: %w", err)
	}

	s.logger.Info().Int("points", len(points)).Msg("hotspot index rebuilt")
	return len(points), nil
}

// Map builds the zones around a position or a geocoded city
func (s *HotspotService) Map(ctx context.Context, q models.HotspotQuery) (*models.HotspotMap, error) {
	if math.IsNaN(q.RadiusKm) || math.IsInf(q.RadiusKm, 0) {
		verr := &ValidationError{}
		verr.Add("radius_km", "must be a finite number")
		return nil, verr
	}

	center, err := s.center(ctx, q)
	if err != nil {
		return nil, err
	}

	radius := q.RadiusKm
	if radius <= 0 {
		radius = s.opts.DefaultRadiusKm
	}
	if radius > s.opts.MaxRadiusKm {
		radius = s.opts.MaxRadiusKm
	}

	if q.Group != "" && !knownGroup(q.Group) {
		verr := &ValidationError{}
		verr.Add("group", fmt.Sprintf("unknown group %q", q.Group))
		return nil, verr
	}

	var points []models.GeoPoint
	for _, g := range models.ComplaintGroups {
		found, err := s.index.Nearby(ctx, g, center.Latitude, center.Longitude, radius)
		if err != nil {
			return nil, fmt.Errorf("%w: hotspot index", ErrStorage)
		}
		points = append(points, found...)
	}

	zones := BuildZones(points, center.Latitude, s.opts.ZoneCellKm)
	if q.Group != "" {
		zones = filterZones(zones, q.Group)
	}

	return &models.HotspotMap{
		Center:   *center,
		RadiusKm: radius,
		Hotspots: zones,
	}, nil
}

func (s *HotspotService) center(ctx context.Context, q models.HotspotQuery) (*models.Coordinates, error) {
	if city := strings.TrimSpace(q.City); city != "" {
		if s.geocoder == nil {
			return nil, fmt.Errorf("%w: geocoding disabled", ErrUpstream)
		}
		c, err := s.geocoder.Geocode(ctx, city)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: geocode %q: %v", ErrUpstream, city, err)
		}
		return c, nil
	}

	if !ValidCoordinates(q.Latitude, q.Longitude) {
		verr := &ValidationError{}
		verr.Add("lat", "a valid lat/lng pair or a city is required")
		return nil, verr
	}
	return &models.Coordinates{Latitude: q.Latitude, Longitude: q.Longitude}, nil
}

// BuildZones groups points into square cells of cellKm and scores each cell
func BuildZones(points []models.GeoPoint, refLat, cellKm float64) []models.Hotspot {
	dLat := cellKm / kmPerDegree
	dLng := cellKm / (kmPerDegree * math.Max(math.Cos(refLat*math.Pi/180), 0.01))

	type cell struct {
		row, col int
	}
	type acc struct {
		zone   models.Hotspot
		sumLat float64
		sumLng float64
	}

	cells := make(map[cell]*acc)
	for _, p := range points {
		key := cell{row: int(math.Floor(p.Latitude / dLat)), col: int(math.Floor(p.Longitude / dLng))}
		a, ok := cells[key]
		if !ok {
			a = &acc{zone: models.Hotspot{ID: fmt.Sprintf("zone-%d-%d", key.row, key.col)}}
			cells[key] = a
		}
		a.sumLat += p.Latitude
		a.sumLng += p.Longitude
		a.zone.Complaints++
		switch p.Group {
		case models.GroupSalary:
			a.zone.Salary++
		case models.GroupAbuse:
			a.zone.Abuse++
		case models.GroupOverwork:
			a.zone.Overwork++
		case models.GroupGender:
			a.zone.Gender++
		}
	}

	zones := make([]models.Hotspot, 0, len(cells))
	for _, a := range cells {
		z := a.zone
		z.Latitude = roundTo(a.sumLat/float64(z.Complaints), 6)
		z.Longitude = roundTo(a.sumLng/float64(z.Complaints), 6)
		z.Score = ZoneScore(z.Salary, z.Abuse, z.Overwork, z.Gender)
		z.Level = ZoneLevel(z.Score)
		zones = append(zones, z)
	}

	sort.Slice(zones, func(i, j int) bool {
		if zones[i].Score != zones[j].Score {
			return zones[i].Score > zones[j].Score
		}
		return zones[i].ID < zones[j].ID
	})
	return zones
}

// ZoneScore weights complaint counts into a 0..100 score
func ZoneScore(salary, abuse, overwork, gender int) int {
	weighted := float64(salary)*2 + float64(abuse)*3 + float64(overwork)*1.5 + float64(gender)*2.5
	score := int(math.Floor(weighted/40*100 + 0.5))
	if score > 100 {
		return 100
	}
	return score
}

// ZoneLevel buckets a zone score
func ZoneLevel(score int) models.HotspotLevel {
	switch {
	case score >= 70:
		return models.HotspotHigh
	case score >= 40:
		return models.HotspotMedium
	default:
		return models.HotspotLow
	}
}

func filterZones(zones []models.Hotspot, group models.ComplaintGroup) []models.Hotspot {
	out := zones[:0]
	for _, z := range zones {
		var n int
		switch group {
		case models.GroupSalary:
			n = z.Salary
		case models.GroupAbuse:
			n = z.Abuse
		case models.GroupOverwork:
			n = z.Overwork
		case models.GroupGender:
			n = z.Gender
		}
		if n > 0 {
			out = append(out, z)
		}
	}
	return out
}

func knownGroup(g models.ComplaintGroup) bool {
	for _, known := range models.ComplaintGroups {
		if g == known {
			return true
		}
	}
	return false
}

func geoPointOf(c *models.Complaint) (models.GeoPoint, bool) {
	if !c.HasCoordinates() {
		return models.GeoPoint{}, false
	}
	group, ok := models.GroupOf(c.Category)
	if !ok {
		return models.GeoPoint{}, false
	}
	return models.GeoPoint{
		CaseID:    c.CaseID,
		Group:     group,
		Latitude:  *c.Latitude,
		Longitude: *c.Longitude,
	}, true
}
