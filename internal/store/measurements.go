package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/ironsheep/roi-analyzer-mcp/internal/faults"
	"github.com/ironsheep/roi-analyzer-mcp/internal/geom"
)

// Record is one saved version of one ROI.
type Record struct {
	ImageName       string
	SelectionNumber int
	Version         int
	ScalePxPerUm    float64
	ScaleUm         float64
	ScaleBar        *geom.Segment
	AreaUm2         float64
	AreaPx2         float64
	// Points is the serialized vertex list exactly as stored.
	Points      string
	Notes       string
	OverlayFile string

	// row is the 1-based sheet row the record was read from.
	row int
}

// MeasurementStore is the versioned ROI measurement table of one folder.
type MeasurementStore struct {
	path           string
	policy         OnCorrupt
	defaultScaleUm float64
	opened         schema
}

// OpenMeasurements opens the workbook at path, which need not exist yet,
// and resolves its schema. Optional columns missing from an existing
// workbook are recorded as a pending migration that the first mutation
// applies.
//
// Under ReturnEmpty a corrupt workbook is logged and the store still opens;
// under ReturnError the corruption is returned together with the store.
func OpenMeasurements(path string, policy OnCorrupt, defaultScaleUm float64) (*MeasurementStore, error) {
	s := &MeasurementStore{
		path:           path,
		policy:         policy,
		defaultScaleUm: defaultScaleUm,
		opened:         emptySchema(),
	}

	t, err := s.load()
	if err != nil {
		return s, s.readFailure(err)
	}
	defer t.close()

	s.opened = t.schema
	if t.exists && t.schema.pending() {
		log.Printf("%s: columns %s will be added on the next write",
			path, strings.Join(t.schema.missingNames(), ", "))
	}
	return s, nil
}

// Path returns the workbook location.
func (s *MeasurementStore) Path() string {
	return s.path
}

// PendingColumns lists the columns that were missing when the store was
// opened.
func (s *MeasurementStore) PendingColumns() []string {
	return s.opened.missingNames()
}

// Append writes rec as a new row. The caller supplies a coherent version
// (one more than the highest existing version for the ROI); the store does
// not renumber. ScaleUm is clamped before it is written.
func (s *MeasurementStore) Append(rec Record) error {
	if strings.TrimSpace(rec.ImageName) == "" {
		return faults.Input("image_name", "must not be empty")
	}
	if rec.Version < 1 {
		return faults.Input("version", "must be at least 1, got %d", rec.Version)
	}
	if utf8.RuneCountInString(rec.Points) > excelize.TotalCellChars {
		return faults.Input("points", "vertex list too long to store (%d characters)", len(rec.Points))
	}
	rec.ScaleUm = ClampScaleUm(rec.ScaleUm, s.defaultScaleUm)

	t, err := s.loadForWrite()
	if err != nil {
		return err
	}
	defer t.close()

	if err := t.writeRecord(t.nextRow, rec); err != nil {
		return err
	}
	return s.save(t)
}

// PatchNotes overwrites the notes of the highest version of an ROI in
// place. No other field changes and no version is created. It is a no-op
// when the ROI has no rows.
func (s *MeasurementStore) PatchNotes(imageName string, selection int, notes string) error {
	t, err := s.loadForWrite()
	if err != nil {
		return err
	}
	defer t.close()

	target, ok := latest(t.records, imageName, selection)
	if !ok {
		return nil
	}
	if err := t.setCell(target.row, colNotes, notes); err != nil {
		return err
	}
	return s.save(t)
}

// LatestPerSelection returns the highest version of every ROI of an image,
// ordered by where each ROI first appears in the table. Equal versions
// resolve to the row appended last.
func (s *MeasurementStore) LatestPerSelection(imageName string) ([]Record, error) {
	records, err := s.read()
	if err != nil {
		return nil, err
	}

	var order []int
	best := make(map[int]Record)
	for _, r := range records {
		if r.ImageName != imageName {
			continue
		}
		cur, seen := best[r.SelectionNumber]
		if !seen {
			order = append(order, r.SelectionNumber)
		}
		if !seen || r.Version >= cur.Version {
			best[r.SelectionNumber] = r
		}
	}

	out := make([]Record, 0, len(order))
	for _, sel := range order {
		out = append(out, best[sel])
	}
	return out, nil
}

// History returns every version of one ROI in version order.
func (s *MeasurementStore) History(imageName string, selection int) ([]Record, error) {
	records, err := s.read()
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, r := range records {
		if r.ImageName == imageName && r.SelectionNumber == selection {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Version < out[j].Version
	})
	return out, nil
}

// NextVersion returns one more than the highest stored version of an ROI,
// or 1 when it has none. It is part of the save path, so read failures are
// returned rather than degraded.
func (s *MeasurementStore) NextVersion(imageName string, selection int) (int, error) {
	t, err := s.load()
	if err != nil {
		return 0, err
	}
	defer t.close()

	if r, ok := latest(t.records, imageName, selection); ok {
		return r.Version + 1, nil
	}
	return 1, nil
}

// AnalyzedImages returns the set of image names with at least one row.
func (s *MeasurementStore) AnalyzedImages() (map[string]bool, error) {
	records, err := s.read()
	if err != nil {
		return nil, err
	}
	images := make(map[string]bool)
	for _, r := range records {
		images[r.ImageName] = true
	}
	return images, nil
}

// DeleteAllForImage removes every row of an image, across all ROIs and
// versions, and returns the removed records so their overlays can be
// cleaned up. Nothing is written when the image has no rows.
func (s *MeasurementStore) DeleteAllForImage(imageName string) ([]Record, error) {
	t, err := s.loadForWrite()
	if err != nil {
		return nil, err
	}
	defer t.close()

	var removed []Record
	for _, r := range t.records {
		if r.ImageName == imageName {
			removed = append(removed, r)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}

	// Bottom-up so earlier row numbers stay valid.
	for i := len(removed) - 1; i >= 0; i-- {
		if err := t.f.RemoveRow(t.sheet, removed[i].row); err != nil {
			return nil, fmt.Errorf("failed to remove row %d: %w", removed[i].row, err)
		}
	}
	if err := s.save(t); err != nil {
		return nil, err
	}
	return removed, nil
}

// latest picks the highest version of an ROI, the last row on ties.
func latest(records []Record, imageName string, selection int) (Record, bool) {
	var best Record
	found := false
	for _, r := range records {
		if r.ImageName != imageName || r.SelectionNumber != selection {
			continue
		}
		if !found || r.Version >= best.Version {
			best = r
			found = true
		}
	}
	return best, found
}

// read loads all records for a query, degrading per the policy.
func (s *MeasurementStore) read() ([]Record, error) {
	t, err := s.load()
	if err != nil {
		return nil, s.readFailure(err)
	}
	defer t.close()
	return t.records, nil
}

// readFailure applies the corruption policy to a failed read. Busy or
// unreadable workbooks degrade the same way as corrupt ones.
func (s *MeasurementStore) readFailure(err error) error {
	var ce *faults.CorruptDataError
	if errors.As(err, &ce) {
		return s.policy.apply(ce)
	}
	if s.policy == ReturnError {
		return err
	}
	log.Printf("Warning: could not read %s: %v; treating as empty", s.path, err)
	return nil
}

// table is one loaded copy of the workbook.
type table struct {
	f       *excelize.File
	sheet   string
	schema  schema
	records []Record
	nextRow int
	exists  bool
}

func (t *table) close() {
	if err := t.f.Close(); err != nil {
		log.Printf("Warning: failed to close workbook: %v", err)
	}
}

// load opens the workbook, or starts an empty one when the file does not
// exist, and decodes every row.
func (s *MeasurementStore) load() (*table, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		f := excelize.NewFile()
		return &table{
			f:       f,
			sheet:   f.GetSheetName(f.GetActiveSheetIndex()),
			schema:  emptySchema(),
			nextRow: 2,
		}, nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		if faults.IsLockError(err) {
			return nil, &faults.StoreBusyError{Path: s.path, Err: err}
		}
		return nil, &faults.CorruptDataError{Path: s.path, Reason: "not a readable workbook", Err: err}
	}

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		if list := f.GetSheetList(); len(list) > 0 {
			sheet = list[0]
		}
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		f.Close()
		return nil, &faults.CorruptDataError{Path: s.path, Reason: "unreadable sheet " + sheet, Err: err}
	}

	var header []string
	if len(rows) > 0 {
		header = rows[0]
	}
	sch, err := resolveSchema(header)
	if err != nil {
		f.Close()
		return nil, &faults.CorruptDataError{Path: s.path, Reason: "header cannot be established", Err: err}
	}

	t := &table{
		f:       f,
		sheet:   sheet,
		schema:  sch,
		nextRow: len(rows) + 1,
		exists:  true,
	}
	if len(rows) == 0 {
		t.nextRow = 2
	}
	for i := 1; i < len(rows); i++ {
		rec, ok := decodeRecord(&sch, rows[i])
		if !ok {
			continue
		}
		rec.row = i + 1
		t.records = append(t.records, rec)
	}
	return t, nil
}

// loadForWrite loads the workbook for a mutation and applies any pending
// schema migration to the header.
func (s *MeasurementStore) loadForWrite() (*table, error) {
	t, err := s.load()
	if err != nil {
		return nil, err
	}
	if !t.schema.pending() {
		return t, nil
	}

	added := t.schema.migrate()
	for _, c := range added {
		if err := t.setCell(1, c, columnNames[c]); err != nil {
			t.close()
			return nil, err
		}
	}
	if t.exists {
		log.Printf("%s: added columns %v", s.path, added)
	}
	return t, nil
}

// save writes the workbook back in place.
func (s *MeasurementStore) save(t *table) error {
	if err := t.f.SaveAs(s.path); err != nil {
		return faults.ClassifyWrite(s.path, err)
	}
	return nil
}

// setCell writes one logical field of one sheet row.
func (t *table) setCell(row int, c column, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(t.schema.index[c]+1, row)
	if err != nil {
		return fmt.Errorf("failed to address %s at row %d: %w", c, row, err)
	}
	if err := t.f.SetCellValue(t.sheet, cell, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", cell, err)
	}
	return nil
}

// writeRecord lays rec out across one sheet row according to the schema.
func (t *table) writeRecord(row int, rec Record) error {
	cells := make([]interface{}, t.schema.width)
	put := func(c column, v interface{}) {
		if t.schema.has(c) {
			cells[t.schema.index[c]] = v
		}
	}

	put(colImageName, rec.ImageName)
	put(colSelection, rec.SelectionNumber)
	put(colVersion, rec.Version)
	put(colScalePxPerUm, rec.ScalePxPerUm)
	put(colScaleUm, rec.ScaleUm)
	if rec.ScaleBar != nil {
		put(colBarX1, rec.ScaleBar.X1)
		put(colBarY1, rec.ScaleBar.Y1)
		put(colBarX2, rec.ScaleBar.X2)
		put(colBarY2, rec.ScaleBar.Y2)
	}
	put(colAreaUm2, rec.AreaUm2)
	put(colAreaPx2, rec.AreaPx2)
	put(colPoints, rec.Points)
	put(colNotes, rec.Notes)
	put(colOverlayFile, rec.OverlayFile)

	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to address row %d: %w", row, err)
	}
	if err := t.f.SetSheetRow(t.sheet, start, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

// decodeRecord reads one data row. Rows without an image name or with an
// unreadable selection number are skipped; a missing version reads as 1 and
// other unreadable numbers as 0.
func decodeRecord(s *schema, row []string) (Record, bool) {
	name := strings.TrimSpace(s.get(row, colImageName))
	if name == "" {
		return Record{}, false
	}
	sel, ok := parseInt(s.get(row, colSelection))
	if !ok {
		log.Printf("Warning: skipping row for %s with selection %q", name, s.get(row, colSelection))
		return Record{}, false
	}

	rec := Record{
		ImageName:       name,
		SelectionNumber: sel,
		Version:         1,
		ScalePxPerUm:    parseFloat(s.get(row, colScalePxPerUm)),
		ScaleUm:         parseFloat(s.get(row, colScaleUm)),
		AreaUm2:         parseFloat(s.get(row, colAreaUm2)),
		AreaPx2:         parseFloat(s.get(row, colAreaPx2)),
		Points:          s.get(row, colPoints),
		Notes:           s.get(row, colNotes),
		OverlayFile:     strings.TrimSpace(s.get(row, colOverlayFile)),
	}
	if v, ok := parseInt(s.get(row, colVersion)); ok && v >= 1 {
		rec.Version = v
	}

	x1, ok1 := parseInt(s.get(row, colBarX1))
	y1, ok2 := parseInt(s.get(row, colBarY1))
	x2, ok3 := parseInt(s.get(row, colBarX2))
	y2, ok4 := parseInt(s.get(row, colBarY2))
	if ok1 && ok2 && ok3 && ok4 {
		rec.ScaleBar = &geom.Segment{X1: x1, Y1: y1, X2: x2, Y2: y2}
	}
	return rec, true
}

// parseInt accepts integers written as "3" or "3.0".
func parseInt(cell string) (int, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false
	}
	if v, err := strconv.Atoi(cell); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

func parseFloat(cell string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return 0
	}
	return f
}
