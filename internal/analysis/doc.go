// Package analysis ties detection, rendering and the three per-folder
// stores together behind one session object.
//
// A Workspace is opened for a single folder of micrographs and owns every
// store, cache and renderer for that folder. Nothing is global: selecting a
// different folder means opening a different Workspace. Mutations on a
// Workspace are serialized by its own mutex, which is the serialization the
// stores require of their callers.
//
// The Aggregator answers "what do we know about this image" by combining
// the latest ROI versions, the standalone calibration and the notes into a
// Snapshot. Loading never fails; unreadable data reads as absent.
package analysis
