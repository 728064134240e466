// Package store persists per-folder analysis data.
//
// Three independent stores live side by side in the selected folder:
//
//   - MeasurementStore: an append-only, versioned table of ROI measurements
//     kept in an .xlsx workbook so users can open it in a spreadsheet.
//   - CalibrationStore: image name → scale bar and physical bar length,
//     a small JSON object file.
//   - NotesStore: image name → free text, a small JSON object file.
//
// # Failure Policy
//
// Reads never block the application. A table or file that cannot be parsed
// is handled according to an OnCorrupt policy: ReturnEmpty (the default)
// logs the problem and behaves as if there were no data, ReturnError
// surfaces a *faults.CorruptDataError. Writes always return errors, with
// lock and permission failures reported as *faults.StoreBusyError.
//
// # Concurrency
//
// Every mutation is a whole-file read-modify-write. The stores do no
// locking of their own; callers must serialize writers on one folder.
package store
