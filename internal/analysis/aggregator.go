package analysis

import (
	"log"

	"github.com/ironsheep/roi-analyzer-mcp/internal/geom"
	"github.com/ironsheep/roi-analyzer-mcp/internal/store"
)

// ResolvedRoi is the latest version of one ROI.
type ResolvedRoi struct {
	SelectionNumber int           `json:"selection_number"`
	Version         int           `json:"version"`
	Points          []geom.Point  `json:"points"`
	ScalePxPerUm    float64       `json:"scale_px_per_um"`
	ScaleUm         float64       `json:"scale_um"`
	ScaleBar        *geom.Segment `json:"scale_bar"`
	AreaUm2         float64       `json:"area_um2"`
	AreaPx2         float64       `json:"area_px2"`
	Notes           string        `json:"notes"`
	OverlayFile     string        `json:"overlay_file"`
}

// Snapshot is everything saved for one image.
type Snapshot struct {
	Rois     []ResolvedRoi `json:"rois"`
	ScaleBar *geom.Segment `json:"scale_bar"`
	ScaleUm  float64       `json:"scale_um"`
	Notes    string        `json:"notes"`
}

// Aggregator assembles snapshots from the three stores.
type Aggregator struct {
	measurements *store.MeasurementStore
	calibration  *store.CalibrationStore
	notes        *store.NotesStore
}

// NewAggregator creates an aggregator over the given stores.
func NewAggregator(m *store.MeasurementStore, c *store.CalibrationStore, n *store.NotesStore) *Aggregator {
	return &Aggregator{measurements: m, calibration: c, notes: n}
}

// LoadAnalysis returns the snapshot for an image. It never fails: store
// errors are logged and the affected part of the snapshot is left empty.
//
// The image calibration comes from the first ROI (in table order) when that
// ROI carries a scale bar, and from the calibration store otherwise.
func (a *Aggregator) LoadAnalysis(imageName string) Snapshot {
	snap := Snapshot{Rois: []ResolvedRoi{}}

	records, err := a.measurements.LatestPerSelection(imageName)
	if err != nil {
		log.Printf("Warning: could not load ROIs for %s: %v", imageName, err)
	}
	for _, r := range records {
		snap.Rois = append(snap.Rois, resolve(r))
	}

	if len(snap.Rois) > 0 && snap.Rois[0].ScaleBar != nil {
		snap.ScaleBar = snap.Rois[0].ScaleBar
		snap.ScaleUm = snap.Rois[0].ScaleUm
	} else if c, ok, err := a.calibration.Get(imageName); err != nil {
		log.Printf("Warning: could not load calibration for %s: %v", imageName, err)
	} else if ok {
		snap.ScaleBar = c.ScaleBar
		snap.ScaleUm = c.ScaleUm
	}

	notes, err := a.notes.Get(imageName)
	if err != nil {
		log.Printf("Warning: could not load notes for %s: %v", imageName, err)
	}
	snap.Notes = notes

	return snap
}

// resolve converts a stored record, decoding its vertex list. Unreadable
// geometry becomes an empty polygon rather than failing the load.
func resolve(r store.Record) ResolvedRoi {
	points := []geom.Point{}
	if r.Points != "" {
		if decoded, err := geom.DecodePoints(r.Points); err != nil {
			log.Printf("Warning: %s ROI %d v%d: %v", r.ImageName, r.SelectionNumber, r.Version, err)
		} else if decoded != nil {
			points = decoded
		}
	}

	return ResolvedRoi{
		SelectionNumber: r.SelectionNumber,
		Version:         r.Version,
		Points:          points,
		ScalePxPerUm:    r.ScalePxPerUm,
		ScaleUm:         r.ScaleUm,
		ScaleBar:        r.ScaleBar,
		AreaUm2:         r.AreaUm2,
		AreaPx2:         r.AreaPx2,
		Notes:           r.Notes,
		OverlayFile:     r.OverlayFile,
	}
}
