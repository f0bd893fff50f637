package composer

import (
	"fmt"
	"sort"
	"strings"

	"sipeta-bknd/internal/models"
	"sipeta-bknd/internal/names"
)

// DefaultMarkerLevel is used when a filter does not name one.
const DefaultMarkerLevel = models.LevelKabupaten

// FilterState mirrors the map renderer's filter panel.
type FilterState struct {
	Stable         bool         `json:"stable"`
	Warning        bool         `json:"warning"`
	Locations      []string     `json:"locations"`
	MarkerLevel    models.Level `json:"markerLevel,omitempty"`
	ShowMarkers    bool         `json:"showMarkers,omitempty"`
	DisableWarning bool         `json:"disableWarning,omitempty"`
}

// Level returns the marker level in canonical form. Unrecognized values are
// passed through untouched so composition can report them.
func (fs FilterState) Level() models.Level {
	if strings.TrimSpace(string(fs.MarkerLevel)) == "" {
		return DefaultMarkerLevel
	}
	if l, ok := models.ParseLevel(string(fs.MarkerLevel)); ok {
		return l
	}
	return fs.MarkerLevel
}

// Admits reports whether a region with status passes the status flags.
func (fs FilterState) Admits(status models.Status) bool {
	if fs.Stable && fs.Warning {
		return true
	}
	switch status {
	case models.StatusStable:
		return fs.Stable
	case models.StatusWarning:
		return fs.Warning || fs.DisableWarning
	}
	return false
}

// CacheKey is a stable string form of the filter: location order and
// spelling do not change it.
func (fs FilterState) CacheKey() string {
	locs := make([]string, 0, len(fs.Locations))
	seen := make(map[string]bool)
	for _, l := range fs.Locations {
		k := names.Normalize(l)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		locs = append(locs, k)
	}
	sort.Strings(locs)
	return fmt.Sprintf("s=%t;w=%t;d=%t;m=%t;l=%s;loc=%s",
		fs.Stable, fs.Warning, fs.DisableWarning, fs.ShowMarkers, fs.Level(), strings.Join(locs, "|"))
}

// locationSet holds the allow-list under every level's canonical key, so
// an alias entered for any level still matches.
type locationSet map[string]bool

func newLocationSet(locs []string, canon *names.Canon) locationSet {
	if len(locs) == 0 {
		return nil
	}
	set := make(locationSet)
	levels := append(append([]models.Level{}, models.AdminLevels...), models.LevelUP3, models.LevelULP)
	for _, l := range locs {
		k := names.Normalize(l)
		if k == "" {
			continue
		}
		set[k] = true
		for _, lvl := range levels {
			set[canon.Key(lvl, l)] = true
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

func (s locationSet) has(key string) bool {
	return s == nil || s[key]
}
