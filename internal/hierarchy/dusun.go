package hierarchy

import "sipeta-bknd/internal/models"

// DusunCount is the slot tally of one desa record.
type DusunCount struct {
	Kabupaten string `json:"kabupaten"`
	Kecamatan string `json:"kecamatan"`
	Desa      string `json:"desa"`
	Raw       int    `json:"totalDusunRaw"`
	Clean     int    `json:"totalDusunClean"`
}

// DusunSummary aggregates DusunCount over a load.
type DusunSummary struct {
	Desa            []DusunCount `json:"desa"`
	TotalDusunRaw   int          `json:"totalDusunRaw"`
	TotalDusunClean int          `json:"totalDusunClean"`
}

// CountDusun tallies dusun slots. Every present slot counts as raw; only
// slots that are not the "0"/0 sentinel (or blank) count as clean.
func CountDusun(records []models.DusunRecord) DusunSummary {
	s := DusunSummary{Desa: make([]DusunCount, 0, len(records))}
	for _, rec := range records {
		c := DusunCount{Kabupaten: rec.Kabupaten, Kecamatan: rec.Kecamatan, Desa: rec.Desa}
		for _, slot := range rec.Slots {
			if slot == nil {
				continue
			}
			c.Raw++
			if !models.IsDusunSentinel(slot) {
				c.Clean++
			}
		}
		s.Desa = append(s.Desa, c)
		s.TotalDusunRaw += c.Raw
		s.TotalDusunClean += c.Clean
	}
	return s
}
