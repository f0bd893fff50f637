package inspect

import (
	"fmt"

	"sipeta-bknd/internal/hierarchy"

	"github.com/xuri/excelize/v2"
)

const (
	dusunSheet   = "Dusun"
	summarySheet = "Ringkasan"
)

// sheetWriter writes into one sheet and keeps the first error; later calls
// are no-ops once one failed.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) set(col, row int, v interface{}) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetCellValue(w.sheet, cell, v); err != nil {
		w.err = fmt.Errorf("%s!%s: %w", w.sheet, cell, err)
	}
}

func (w *sheetWriter) width(from, to string, width float64) {
	if w.err != nil {
		return
	}
	if err := w.f.SetColWidth(w.sheet, from, to, width); err != nil {
		w.err = fmt.Errorf("%s column width: %w", w.sheet, err)
	}
}

// WriteDusunXLSX exports per-desa dusun counts and the totals to path.
func WriteDusunXLSX(path string, s hierarchy.DusunSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", dusunSheet); err != nil {
		return err
	}

	dw := &sheetWriter{f: f, sheet: dusunSheet}
	headers := []string{"Kabupaten/Kota", "Kecamatan", "Desa", "Total Dusun (raw)", "Total Dusun (clean)"}
	for i, h := range headers {
		dw.set(i+1, 1, h)
	}
	dw.width("A", "C", 24)
	dw.width("D", "E", 18)

	for i, d := range s.Desa {
		row := i + 2
		dw.set(1, row, d.Kabupaten)
		dw.set(2, row, d.Kecamatan)
		dw.set(3, row, d.Desa)
		dw.set(4, row, d.Raw)
		dw.set(5, row, d.Clean)
	}
	if dw.err != nil {
		return dw.err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	sw := &sheetWriter{f: f, sheet: summarySheet}
	sw.set(1, 1, "Jumlah desa")
	sw.set(2, 1, len(s.Desa))
	sw.set(1, 2, "Total dusun (raw)")
	sw.set(2, 2, s.TotalDusunRaw)
	sw.set(1, 3, "Total dusun (clean)")
	sw.set(2, 3, s.TotalDusunClean)
	sw.width("A", "A", 22)
	if sw.err != nil {
		return sw.err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
