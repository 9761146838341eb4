package xlsxwriter

import (
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// sheet appends rows to one worksheet and tracks column widths.
type sheet struct {
	f      *excelize.File
	name   string
	next   int
	widths []float64
}

// newSheet adds a worksheet. The first sheet of a workbook reuses the
// default sheet excelize creates.
func newSheet(f *excelize.File, name string, first bool) (*sheet, error) {
	if first {
		if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
			return nil, err
		}
	} else if _, err := f.NewSheet(name); err != nil {
		return nil, err
	}

	rtl := true
	if err := f.SetSheetView(name, 0, &excelize.ViewOptions{RightToLeft: &rtl}); err != nil {
		return nil, err
	}
	return &sheet{f: f, name: name, next: 1}, nil
}

func (s *sheet) row(values []any) error {
	if len(values) > 0 {
		cell, err := excelize.CoordinatesToCellName(1, s.next)
		if err != nil {
			return err
		}
		if err := s.f.SetSheetRow(s.name, cell, &values); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", s.name, s.next, err)
		}
		s.measure(values)
	}
	s.next++
	return nil
}

func (s *sheet) header(columns []string) error {
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	line := s.next
	if err := s.row(values); err != nil {
		return err
	}
	if len(columns) == 0 {
		return nil
	}

	style, err := s.f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, line)
	last, _ := excelize.CoordinatesToCellName(len(columns), line)
	return s.f.SetCellStyle(s.name, first, last, style)
}

// note writes a single explanatory line on an otherwise empty sheet.
func (s *sheet) note(text string) error {
	if err := s.row([]any{text}); err != nil {
		return err
	}
	return s.finish()
}

func (s *sheet) boldCell(col, line int) error {
	style, err := s.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	return s.styleCell(col, line, style)
}

func (s *sheet) noteCell(col, line int) error {
	style, err := s.f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{noteFill}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	return s.styleCell(col, line, style)
}

func (s *sheet) styleCell(col, line, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, line)
	if err != nil {
		return err
	}
	return s.f.SetCellStyle(s.name, cell, cell, style)
}

func (s *sheet) measure(values []any) {
	for i, v := range values {
		for len(s.widths) <= i {
			s.widths = append(s.widths, 0)
		}
		width := float64(utf8.RuneCountInString(fmt.Sprint(v)) + 2)
		if width > s.widths[i] {
			s.widths[i] = width
		}
	}
}

// finish sets column widths from the longest value seen.
func (s *sheet) finish() error {
	for i, w := range s.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		w = min(max(w, minColWidth), maxColWidth)
		if err := s.f.SetColWidth(s.name, col, col, w); err != nil {
			return err
		}
	}
	return nil
}
