// Package export renders extracted tables into XLSX workbooks.
package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/doculab/extract/internal/document"
)

// Service produces XLSX bytes from extraction results.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// TablesXLSX returns a workbook with one sheet per extracted table. An empty
// table list yields a workbook with a single empty "Table1" sheet so the
// download is always a valid file.
func (s *Service) TablesXLSX(name string, tables []document.Table) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const first = "Table1"
	idx, err := f.NewSheet(first)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	for ti, table := range tables {
		sheet := fmt.Sprintf("Table%d", ti+1)
		if ti > 0 {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, err
			}
		}
		maxCols := 0
		for ri, row := range table {
			if len(row) > maxCols {
				maxCols = len(row)
			}
			for ci, val := range row {
				cell, _ := excelize.CoordinatesToCellName(ci+1, ri+1)
				_ = f.SetCellValue(sheet, cell, val)
			}
		}
		if maxCols > 0 {
			last, _ := excelize.ColumnNumberToName(maxCols)
			_ = f.SetColWidth(sheet, "A", last, 18)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"file", name,
		"tables", len(tables),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
