package analysis

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ironsheep/roi-analyzer-mcp/internal/config"
	"github.com/ironsheep/roi-analyzer-mcp/internal/detection"
	"github.com/ironsheep/roi-analyzer-mcp/internal/faults"
	"github.com/ironsheep/roi-analyzer-mcp/internal/geom"
	"github.com/ironsheep/roi-analyzer-mcp/internal/imaging"
	"github.com/ironsheep/roi-analyzer-mcp/internal/ocr"
	"github.com/ironsheep/roi-analyzer-mcp/internal/overlay"
	"github.com/ironsheep/roi-analyzer-mcp/internal/store"
)

// imageExtensions are the file types listed as micrographs.
var imageExtensions = map[string]bool{
	".tif":  true,
	".tiff": true,
}

// ImageEntry is one micrograph in the folder.
type ImageEntry struct {
	Filename string `json:"filename"`
	HasData  bool   `json:"has_data"`
}

// RoiRequest carries one ROI save. Version <= 0 asks for the next version.
type RoiRequest struct {
	ImageName       string
	SelectionNumber int
	Version         int
	Points          []geom.Point
	ScalePxPerUm    float64
	ScaleUm         float64
	ScaleBar        *geom.Segment
	AreaUm2         float64
	AreaPx2         float64
	Notes           string

	// IsNotesOnly updates the notes of the latest version and nothing else.
	IsNotesOnly bool
}

// SaveResult describes what a save wrote.
type SaveResult struct {
	OverlayFile string `json:"overlay_file"`
	Version     int    `json:"version"`
}

// Workspace is the analysis session for one folder of micrographs.
type Workspace struct {
	folder string
	cfg    *config.Config

	mu           sync.Mutex
	measurements *store.MeasurementStore
	calibration  *store.CalibrationStore
	notes        *store.NotesStore
	renderer     *overlay.Renderer
	detector     *detection.Detector
	aggregator   *Aggregator
	cache        *imaging.ImageCache
}

// Open creates a workspace for folder. The folder must exist; the store
// files inside it are created on first write.
func Open(folder string, cfg *config.Config) (*Workspace, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if strings.TrimSpace(folder) == "" {
		return nil, faults.Input("folder", "must not be empty")
	}

	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve folder %s: %w", folder, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, faults.Input("folder", "%s does not exist", folder)
		}
		return nil, fmt.Errorf("failed to access folder %s: %w", folder, err)
	}
	if !info.IsDir() {
		return nil, faults.Input("folder", "%s is not a directory", folder)
	}

	sc := cfg.Store
	measurements, err := store.OpenMeasurements(
		filepath.Join(abs, sc.MeasurementsFile), store.ReturnEmpty, sc.DefaultScaleUm)
	if err != nil {
		return nil, err
	}
	calibration := store.NewCalibrationStore(
		filepath.Join(abs, sc.CalibrationFile), store.ReturnEmpty, sc.DefaultScaleUm)
	notes := store.NewNotesStore(filepath.Join(abs, sc.NotesFile), store.ReturnEmpty)

	w := &Workspace{
		folder:       abs,
		cfg:          cfg,
		measurements: measurements,
		calibration:  calibration,
		notes:        notes,
		renderer:     overlay.NewRenderer(filepath.Join(abs, sc.OverlayDir), cfg.Overlay),
		detector:     detection.NewDetector(cfg.Detection, cfg.Logging.Debug),
		aggregator:   NewAggregator(measurements, calibration, notes),
		cache:        imaging.NewImageCache(),
	}

	if cfg.Logging.Debug {
		log.Printf("Opened workspace %s", abs)
	}
	return w, nil
}

// Folder returns the absolute path of the workspace folder.
func (w *Workspace) Folder() string {
	return w.folder
}

// OverlayDir returns the directory overlays are written to.
func (w *Workspace) OverlayDir() string {
	return w.renderer.Dir()
}

// checkName validates an image name: a plain file name inside the folder.
func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return faults.Input("image_name", "must not be empty")
	}
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return faults.Input("image_name", "%q must be a file name inside the folder", name)
	}
	return nil
}

// imagePath validates name and requires the image to exist.
func (w *Workspace) imagePath(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	path := filepath.Join(w.folder, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", faults.Input("image_name", "%s not found in %s", name, w.folder)
	}
	return path, nil
}

// ListImages returns the TIFF images in the folder, sorted by name, each
// flagged with whether it has saved ROI rows. Files may have changed since
// the last listing, so the decode cache is dropped. It holds the workspace
// lock so the flags never reflect a half-finished save or delete.
func (w *Workspace) ListImages() ([]ImageEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries, err := os.ReadDir(w.folder)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder %s: %w", w.folder, err)
	}
	w.cache.Clear()

	analyzed, err := w.measurements.AnalyzedImages()
	if err != nil {
		log.Printf("Warning: could not read %s: %v", filepath.Base(w.measurements.Path()), err)
		analyzed = map[string]bool{}
	}

	images := []ImageEntry{}
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		images = append(images, ImageEntry{Filename: e.Name(), HasData: analyzed[e.Name()]})
	}
	sort.Slice(images, func(i, j int) bool {
		return images[i].Filename < images[j].Filename
	})
	return images, nil
}

// DetectScaleBar locates the scale bar of an image. An image that cannot be
// decoded is a miss, not an error; only an invalid name is.
func (w *Workspace) DetectScaleBar(imageName string) (geom.Segment, bool, error) {
	path, err := w.imagePath(imageName)
	if err != nil {
		return geom.Segment{}, false, err
	}

	img, err := w.cache.Load(path)
	if err != nil {
		log.Printf("Warning: scale bar detection skipped for %s: %v", imageName, err)
		return geom.Segment{}, false, nil
	}
	seg, ok := w.detector.Detect(img)
	return seg, ok, nil
}

// ReadScaleLabel reads the caption printed next to bar.
func (w *Workspace) ReadScaleLabel(imageName string, bar geom.Segment) (*ocr.ScaleLabel, error) {
	path, err := w.imagePath(imageName)
	if err != nil {
		return nil, err
	}
	img, err := w.cache.Load(path)
	if err != nil {
		return nil, err
	}
	return ocr.ReadScaleLabel(img, bar, w.cfg.OCR.Language)
}

// Thumbnail returns a PNG preview of an image fitting in a size x size box.
func (w *Workspace) Thumbnail(imageName string, size int) (*imaging.EncodedImage, error) {
	path, err := w.imagePath(imageName)
	if err != nil {
		return nil, err
	}
	img, err := w.cache.Load(path)
	if err != nil {
		return nil, err
	}
	return imaging.Thumbnail(img, size)
}

// SaveRoi renders the overlay for one ROI version and appends its row.
// Requests flagged notes-only are routed to SaveNotesOnly and write no
// overlay and no row.
//
// The overlay is written first. If appending the row then fails, the
// overlay file stays behind until the next save of the same version
// overwrites it or DeleteAnalysis sweeps it.
func (w *Workspace) SaveRoi(req RoiRequest) (SaveResult, error) {
	if req.IsNotesOnly {
		if err := w.SaveNotesOnly(req.ImageName, req.SelectionNumber, req.Notes); err != nil {
			return SaveResult{}, err
		}
		return SaveResult{}, nil
	}

	path, err := w.imagePath(req.ImageName)
	if err != nil {
		return SaveResult{}, err
	}
	if len(req.Points) < 3 {
		return SaveResult{}, faults.Input("points", "a polygon needs at least 3 vertices, got %d", len(req.Points))
	}
	encoded, err := geom.EncodePoints(req.Points)
	if err != nil {
		return SaveResult{}, faults.Input("points", "%v", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	version := req.Version
	if version <= 0 {
		version, err = w.measurements.NextVersion(req.ImageName, req.SelectionNumber)
		if err != nil {
			return SaveResult{}, err
		}
	}

	overlayFile, err := w.renderer.Render(path, req.ImageName, req.SelectionNumber, version, req.Points)
	if err != nil {
		return SaveResult{}, err
	}

	rec := store.Record{
		ImageName:       req.ImageName,
		SelectionNumber: req.SelectionNumber,
		Version:         version,
		ScalePxPerUm:    req.ScalePxPerUm,
		ScaleUm:         req.ScaleUm,
		ScaleBar:        req.ScaleBar,
		AreaUm2:         req.AreaUm2,
		AreaPx2:         req.AreaPx2,
		Points:          encoded,
		Notes:           req.Notes,
		OverlayFile:     overlayFile,
	}
	if err := w.measurements.Append(rec); err != nil {
		return SaveResult{}, err
	}

	if w.cfg.Logging.Debug {
		log.Printf("Saved %s ROI %d v%d -> %s", req.ImageName, req.SelectionNumber, version, overlayFile)
	}
	return SaveResult{OverlayFile: overlayFile, Version: version}, nil
}

// SaveNotesOnly overwrites the notes of the latest version of an ROI. It is
// a no-op when the ROI has never been saved.
func (w *Workspace) SaveNotesOnly(imageName string, selection int, notes string) error {
	if err := checkName(imageName); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.measurements.PatchNotes(imageName, selection, notes)
}

// SaveCalibration stores the standalone scale bar of an image. ScaleUm is
// clamped to the supported range.
func (w *Workspace) SaveCalibration(imageName string, bar *geom.Segment, scaleUm float64) error {
	if err := checkName(imageName); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calibration.Put(imageName, store.Calibration{ScaleBar: bar, ScaleUm: scaleUm})
}

// SaveNotes replaces the image-level note.
func (w *Workspace) SaveNotes(imageName, text string) error {
	if err := checkName(imageName); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.notes.Put(imageName, text)
}

// LoadAnalysis returns everything saved for an image. It never fails; an
// invalid name simply has nothing saved. Reads are serialized with writes
// so a snapshot never mixes state from before and after a save.
func (w *Workspace) LoadAnalysis(imageName string) Snapshot {
	if err := checkName(imageName); err != nil {
		return Snapshot{Rois: []ResolvedRoi{}}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.aggregator.LoadAnalysis(imageName)
}

// DeleteAnalysis removes every ROI row of an image, their overlay files and
// its calibration. The image-level note is kept. Overlays left behind by
// earlier failed saves are swept too. Every step runs even when an earlier
// one failed; the failures are returned together.
func (w *Workspace) DeleteAnalysis(imageName string) error {
	if err := checkName(imageName); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	removed, err := w.measurements.DeleteAllForImage(imageName)
	if err != nil {
		return err
	}

	var errs []error
	swept, err := w.renderer.RemoveAll(imageName)
	if err != nil {
		errs = append(errs, err)
	}
	// Rows may name overlays outside the current naming scheme.
	for _, r := range removed {
		if err := w.renderer.Remove(r.OverlayFile); err != nil {
			errs = append(errs, err)
		}
	}

	if err := w.calibration.Delete(imageName); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		log.Printf("Warning: delete of %s incomplete: %v", imageName, err)
		return err
	}
	if w.cfg.Logging.Debug {
		log.Printf("Deleted analysis of %s (%d rows, %d overlays)", imageName, len(removed), len(swept))
	}
	return nil
}
