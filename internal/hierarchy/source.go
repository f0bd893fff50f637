package hierarchy

import (
	"context"
	"fmt"

	"sipeta-bknd/internal/models"
)

// Source fetches the raw administrative and organizational records.
type Source interface {
	Fetch(ctx context.Context) (*RawDataset, error)
}

// RawDataset is what a Source returns before normalization. Records keep
// source order; Build relies on it for ChildrenOf ordering.
type RawDataset struct {
	Regions []RegionRecord
	Orgs    []OrgRecord
	Dusun   []models.DusunRecord
}

// RegionRecord carries the full name lineage of one administrative unit.
// Only the fields down to Level are meaningful.
type RegionRecord struct {
	Level         models.Level
	Province      string
	Kabupaten     string
	Kecamatan     string
	Desa          string
	Population    *int64
	CustomerCount *int64
	Status        string
}

// Name returns the record's own name at its level.
func (r RegionRecord) Name() string {
	switch r.Level {
	case models.LevelProvince:
		return r.Province
	case models.LevelKabupaten:
		return r.Kabupaten
	case models.LevelKecamatan:
		return r.Kecamatan
	case models.LevelDesa:
		return r.Desa
	}
	return ""
}

func (r RegionRecord) lineage() []string {
	all := []string{r.Province, r.Kabupaten, r.Kecamatan, r.Desa}
	return all[:depth(r.Level)+1]
}

// OrgRecord is a UP3 or ULP row. UP3 is the parent name for an ULP.
type OrgRecord struct {
	Level         models.Level
	Name          string
	UP3           string
	CustomerCount *int64
	Status        string
}

// DataSourceError reports that the backing store could not be read. It is
// fatal to a load.
type DataSourceError struct {
	Source string
	Err    error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source %s unavailable: %v", e.Source, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

func depth(l models.Level) int {
	for i, lv := range models.AdminLevels {
		if lv == l {
			return i
		}
	}
	return -1
}
