package models

import (
	"strings"

	"github.com/paulmach/orb"
)

// Level identifies a tier of the administrative tree or the PLN overlay.
type Level string

const (
	LevelProvince  Level = "province"
	LevelKabupaten Level = "kabupaten"
	LevelKecamatan Level = "kecamatan"
	LevelDesa      Level = "desa"
	LevelDusun     Level = "dusun"
	LevelUP3       Level = "up3"
	LevelULP       Level = "ulp"
)

// AdminLevels lists administrative levels from the root down.
var AdminLevels = []Level{LevelProvince, LevelKabupaten, LevelKecamatan, LevelDesa, LevelDusun}

// ParseLevel accepts the canonical names plus the spellings used by the
// front-end ("kabupaten_kota", "kab_kota", "provinsi").
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "province", "provinsi":
		return LevelProvince, true
	case "kabupaten", "kabupaten_kota", "kab_kota", "kota":
		return LevelKabupaten, true
	case "kecamatan":
		return LevelKecamatan, true
	case "desa":
		return LevelDesa, true
	case "dusun":
		return LevelDusun, true
	case "up3":
		return LevelUP3, true
	case "ulp":
		return LevelULP, true
	}
	return "", false
}

// IsOrg reports whether the level belongs to the UP3/ULP overlay.
func (l Level) IsOrg() bool {
	return l == LevelUP3 || l == LevelULP
}

// Parent returns the enclosing administrative or organizational level.
func (l Level) Parent() (Level, bool) {
	switch l {
	case LevelKabupaten:
		return LevelProvince, true
	case LevelKecamatan:
		return LevelKabupaten, true
	case LevelDesa:
		return LevelKecamatan, true
	case LevelDusun:
		return LevelDesa, true
	case LevelULP:
		return LevelUP3, true
	}
	return "", false
}

type Status string

const (
	StatusStable  Status = "stable"
	StatusWarning Status = "warning"
	StatusUnknown Status = "unknown"
)

// ParseStatus maps source strings onto Status. Anything unrecognized is unknown.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stable", "stabil", "aman", "normal":
		return StatusStable
	case "warning", "peringatan", "waspada", "tidak stabil":
		return StatusWarning
	}
	return StatusUnknown
}

// RegionNode is one administrative unit. Nil counts mean "no data".
type RegionNode struct {
	ID            string `json:"id"`
	Level         Level  `json:"level"`
	Name          string `json:"name"`
	Key           string `json:"key"`
	ParentID      string `json:"parentId,omitempty"`
	Population    *int64 `json:"population"`
	CustomerCount *int64 `json:"customerCount"`
	Status        Status `json:"status"`
}

// OrgUnit is a UP3 or ULP record.
type OrgUnit struct {
	ID            string `json:"id"`
	Level         Level  `json:"level"`
	Name          string `json:"name"`
	Key           string `json:"key"`
	ParentID      string `json:"parentId,omitempty"`
	CustomerCount *int64 `json:"customerCount"`
	Status        Status `json:"status"`
}

// Counts is an aggregate over a subtree.
type Counts struct {
	Population    *int64 `json:"population"`
	CustomerCount *int64 `json:"customerCount"`
}

// GeoFeature is one boundary keyed to a region at the same level.
type GeoFeature struct {
	RegionKey  string         `json:"regionKey"`
	Level      Level          `json:"level"`
	Name       string         `json:"name"`
	ParentKey  string         `json:"parentKey,omitempty"`
	Geometry   orb.Geometry   `json:"-"`
	Properties map[string]any `json:"properties,omitempty"`
}

// DusunSlotNames are the six sub-village columns of a desa record.
var DusunSlotNames = [6]string{"A", "B", "C", "D", "E", "F"}

// DusunRecord holds the raw dusun slots of one desa. Slot values are kept
// as decoded (string or number) so sentinel detection sees the source form.
type DusunRecord struct {
	Province  string
	Kabupaten string
	Kecamatan string
	Desa      string
	Slots     [6]any
}

// IsDusunSentinel reports whether a slot value marks an unpopulated slot:
// nil, blank, "0" or numeric zero.
func IsDusunSentinel(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(x)
		return s == "" || s == "0"
	case int:
		return x == 0
	case int32:
		return x == 0
	case int64:
		return x == 0
	case float32:
		return x == 0
	case float64:
		return x == 0
	}
	return false
}

// Diagnostic is the JSON form of a non-fatal load or composition issue.
type Diagnostic struct {
	Code    string `json:"code"`
	Level   Level  `json:"level,omitempty"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

const (
	DiagMalformedFeature = "malformed_feature"
	DiagUnresolvedJoin   = "unresolved_join"
	DiagUnknownMarker    = "unknown_marker_level"
	DiagOrphanNode       = "orphan_node"
	DiagDuplicateSibling = "duplicate_sibling"
)
