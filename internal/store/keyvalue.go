package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/roi-analyzer-mcp/internal/faults"
	"github.com/ironsheep/roi-analyzer-mcp/internal/geom"
)

// jsonFile is a JSON object file mapping image names to values of type V.
// Every write rewrites the whole file through a temporary file and a
// rename, so readers never see a half-written object.
type jsonFile[V any] struct {
	path   string
	policy OnCorrupt
}

// read returns the stored map. A missing file is an empty map.
func (j *jsonFile[V]) read() (map[string]V, error) {
	m, err := j.load()
	if err != nil {
		var ce *faults.CorruptDataError
		if errors.As(err, &ce) {
			return map[string]V{}, j.policy.apply(ce)
		}
		if j.policy == ReturnError {
			return nil, err
		}
		log.Printf("Warning: could not read %s: %v; treating as empty", j.path, err)
		return map[string]V{}, nil
	}
	return m, nil
}

func (j *jsonFile[V]) load() (map[string]V, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]V{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", j.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]V{}, nil
	}

	m := map[string]V{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &faults.CorruptDataError{Path: j.path, Reason: "not a JSON object", Err: err}
	}
	if m == nil {
		m = map[string]V{}
	}
	return m, nil
}

// update applies fn to the stored map and writes it back when fn reports a
// change. A corrupt file is moved aside to <name>.corrupt and replaced by a
// fresh map; other read failures abort the update.
func (j *jsonFile[V]) update(fn func(m map[string]V) bool) error {
	m, err := j.load()
	if err != nil {
		var ce *faults.CorruptDataError
		if !errors.As(err, &ce) {
			return err
		}
		aside := j.path + ".corrupt"
		if err := os.Rename(j.path, aside); err != nil {
			return faults.ClassifyWrite(j.path, err)
		}
		log.Printf("Warning: %v; moved to %s and starting fresh", ce, filepath.Base(aside))
		m = map[string]V{}
	}

	if !fn(m) {
		return nil
	}
	return j.write(m)
}

func (j *jsonFile[V]) write(m map[string]V) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(j.path), err)
	}

	dir := filepath.Dir(j.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(j.path)+".tmp-*")
	if err != nil {
		return faults.ClassifyWrite(j.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return faults.ClassifyWrite(j.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return faults.ClassifyWrite(j.path, err)
	}
	if err := os.Rename(tmpName, j.path); err != nil {
		os.Remove(tmpName)
		return faults.ClassifyWrite(j.path, err)
	}
	return nil
}

// Calibration is the scale bar saved for an image independently of any
// ROI.
type Calibration struct {
	ScaleBar *geom.Segment `json:"scaleBar"`
	ScaleUm  float64       `json:"scaleUm"`
}

// CalibrationStore keeps one Calibration per image.
type CalibrationStore struct {
	file           jsonFile[Calibration]
	defaultScaleUm float64
}

// NewCalibrationStore creates a store backed by the JSON file at path.
func NewCalibrationStore(path string, policy OnCorrupt, defaultScaleUm float64) *CalibrationStore {
	return &CalibrationStore{
		file:           jsonFile[Calibration]{path: path, policy: policy},
		defaultScaleUm: defaultScaleUm,
	}
}

// Get returns the calibration of an image, if any.
func (s *CalibrationStore) Get(imageName string) (Calibration, bool, error) {
	m, err := s.file.read()
	if err != nil {
		return Calibration{}, false, err
	}
	c, ok := m[imageName]
	return c, ok, nil
}

// Put creates or replaces the calibration of an image. ScaleUm is clamped
// before it is written.
func (s *CalibrationStore) Put(imageName string, c Calibration) error {
	c.ScaleUm = ClampScaleUm(c.ScaleUm, s.defaultScaleUm)
	return s.file.update(func(m map[string]Calibration) bool {
		m[imageName] = c
		return true
	})
}

// Delete removes the calibration of an image. Deleting an absent entry
// writes nothing.
func (s *CalibrationStore) Delete(imageName string) error {
	return s.file.update(func(m map[string]Calibration) bool {
		if _, ok := m[imageName]; !ok {
			return false
		}
		delete(m, imageName)
		return true
	})
}

// NotesStore keeps one free-text note per image. Notes outlive the image's
// ROI analysis.
type NotesStore struct {
	file jsonFile[string]
}

// NewNotesStore creates a store backed by the JSON file at path.
func NewNotesStore(path string, policy OnCorrupt) *NotesStore {
	return &NotesStore{file: jsonFile[string]{path: path, policy: policy}}
}

// Get returns the note of an image, or "" when there is none.
func (s *NotesStore) Get(imageName string) (string, error) {
	m, err := s.file.read()
	if err != nil {
		return "", err
	}
	return m[imageName], nil
}

// Put creates or replaces the note of an image.
func (s *NotesStore) Put(imageName, text string) error {
	return s.file.update(func(m map[string]string) bool {
		m[imageName] = text
		return true
	})
}
