package models

// ComplaintGroup buckets categories for the heatmap
type ComplaintGroup string

const (
	GroupSalary   ComplaintGroup = "salary"
	GroupAbuse    ComplaintGroup = "abuse"
	GroupOverwork ComplaintGroup = "overwork"
	GroupGender   ComplaintGroup = "gender"
)

// ComplaintGroups is the fixed group order
var ComplaintGroups = []ComplaintGroup{GroupSalary, GroupAbuse, GroupOverwork, GroupGender}

// GroupOf maps a category to its heatmap group. Categories outside the
// four groups are not plotted.
func GroupOf(c Category) (ComplaintGroup, bool) {
	switch c {
	case CategorySalaryDelay:
		return GroupSalary, true
	case CategoryWorkplaceAbuse, CategoryThreatOrViolence, CategoryChildLabour:
		return GroupAbuse, true
	case CategoryOvertimeExploitation, CategoryUnsafeConditions, CategoryHealthHazard:
		return GroupOverwork, true
	case CategoryHarassment, CategoryDiscrimination:
		return GroupGender, true
	}
	return "", false
}

// HotspotLevel is the heatmap color bucket
type HotspotLevel string

const (
	HotspotHigh   HotspotLevel = "high"
	HotspotMedium HotspotLevel = "medium"
	HotspotLow    HotspotLevel = "low"
)

// GeoPoint is one indexed complaint position
type GeoPoint struct {
	CaseID    string         `json:"case_id"`
	Group     ComplaintGroup `json:"group"`
	Latitude  float64        `json:"lat"`
	Longitude float64        `json:"lng"`
}

// Hotspot is a zone of nearby complaints
type Hotspot struct {
	ID         string       `json:"id"`
	Latitude   float64      `json:"lat"`
	Longitude  float64      `json:"lng"`
	Complaints int          `json:"complaints"`
	Salary     int          `json:"salaryDelays"`
	Abuse      int          `json:"abuse"`
	Overwork   int          `json:"overwork"`
	Gender     int          `json:"gender"`
	Score      int          `json:"score"`
	Level      HotspotLevel `json:"level"`
}

// HotspotQuery selects the area and optional group filter
type HotspotQuery struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
	City      string
	Group     ComplaintGroup
}

// Coordinates is a map center, optionally named after a geocoded place
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Label     string  `json:"label,omitempty"`
}

// HotspotMap is the heatmap response
type HotspotMap struct {
	Center   Coordinates `json:"center"`
	RadiusKm float64     `json:"radius_km"`
	Hotspots []Hotspot   `json:"hotspots"`
}
