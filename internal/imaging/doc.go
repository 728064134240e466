// Package imaging provides the low-level raster operations behind scale-bar
// detection and the thumbnail tool.
//
// It covers image decoding (TIFF, PNG, JPEG, GIF) with a small cache,
// grayscale conversion, contrast limited adaptive histogram equalization,
// Canny edge detection, morphological closing of edge maps and PNG
// thumbnails. Everything here works on standard Go image types and uses a
// coordinate system where (0,0) is the top-left corner, X increases
// rightward and Y increases downward.
//
// # Edge Maps
//
// Edge maps are [][]bool indexed as edges[y][x]. They are produced by
// CannyEdges, optionally cleaned up with CloseEdges, and consumed by the
// Hough transform in the detection package.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. All other functions are
// stateless and never modify their inputs.
//
// # Performance Considerations
//
// Large micrographs consume significant memory when cached. Entries whose
// file changed on disk are evicted on the next Load; the workspace calls
// Clear() whenever it re-lists its folder.
package imaging
