package store

import (
	"fmt"
	"strings"
)

// column identifies a logical field of a measurement row.
type column int

const (
	colImageName column = iota
	colSelection
	colVersion
	colScalePxPerUm
	colScaleUm
	colBarX1
	colBarY1
	colBarX2
	colBarY2
	colAreaUm2
	colAreaPx2
	colPoints
	colNotes
	colOverlayFile
	numColumns
)

// columnNames are the header cells, in the order a new workbook lays them
// out.
var columnNames = [numColumns]string{
	"image_name",
	"selection_number",
	"version",
	"scale_px_per_um",
	"scale_um",
	"scale_bar_x1",
	"scale_bar_y1",
	"scale_bar_x2",
	"scale_bar_y2",
	"area_um2",
	"area_px2",
	"points",
	"notes",
	"overlay_file",
}

func (c column) String() string {
	if c < 0 || c >= numColumns {
		return fmt.Sprintf("column(%d)", int(c))
	}
	return columnNames[c]
}

// required columns identify a row; without them no row can be attributed
// to an ROI and the header cannot be repaired.
func (c column) required() bool {
	return c == colImageName || c == colSelection
}

// schema maps every logical column to its 0-based position in the sheet.
// Columns absent from the header have index -1 and are listed in missing
// until migrate assigns them a position.
type schema struct {
	index   [numColumns]int
	width   int
	missing []column
}

// emptySchema is the schema of a sheet with no header row yet. Migrating it
// lays out every column in the default order.
func emptySchema() schema {
	var s schema
	for c := column(0); c < numColumns; c++ {
		s.index[c] = -1
		s.missing = append(s.missing, c)
	}
	return s
}

// normalizeHeader folds header spellings such as "Image Name" and
// " image_name" to the canonical column name.
func normalizeHeader(cell string) string {
	cell = strings.ToLower(strings.TrimSpace(cell))
	return strings.Join(strings.Fields(cell), "_")
}

// resolveSchema maps a header row to a schema. Unknown header cells are
// kept in place and ignored. A header without the required identity
// columns cannot be used and is reported as an error; an empty header is a
// sheet that has never been written.
func resolveSchema(header []string) (schema, error) {
	width := len(header)
	for width > 0 && strings.TrimSpace(header[width-1]) == "" {
		width--
	}
	if width == 0 {
		return emptySchema(), nil
	}

	positions := make(map[string]int, width)
	for i := 0; i < width; i++ {
		name := normalizeHeader(header[i])
		if _, dup := positions[name]; !dup && name != "" {
			positions[name] = i
		}
	}

	s := schema{width: width}
	var absentRequired []string
	for c := column(0); c < numColumns; c++ {
		pos, ok := positions[columnNames[c]]
		if !ok {
			s.index[c] = -1
			if c.required() {
				absentRequired = append(absentRequired, columnNames[c])
			} else {
				s.missing = append(s.missing, c)
			}
			continue
		}
		s.index[c] = pos
	}

	if len(absentRequired) > 0 {
		return s, fmt.Errorf("header is missing required column(s) %s", strings.Join(absentRequired, ", "))
	}
	return s, nil
}

// has reports whether c is present in the sheet.
func (s *schema) has(c column) bool {
	return s.index[c] >= 0
}

// pending reports whether the header needs new columns before a write.
func (s *schema) pending() bool {
	return len(s.missing) > 0
}

// migrate assigns every missing column a position after the last header
// cell and returns the columns it added. Existing rows read the new columns
// as empty.
func (s *schema) migrate() []column {
	added := s.missing
	for _, c := range added {
		s.index[c] = s.width
		s.width++
	}
	s.missing = nil
	return added
}

// get returns the cell for c in row, or "" when the column is absent or the
// row is short.
func (s *schema) get(row []string, c column) string {
	i := s.index[c]
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// missingNames lists the pending columns by header name.
func (s *schema) missingNames() []string {
	names := make([]string, len(s.missing))
	for i, c := range s.missing {
		names[i] = columnNames[c]
	}
	return names
}
