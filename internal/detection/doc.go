// Package detection locates the calibration scale bar in a micrograph.
//
// Detection is a best-effort heuristic in two stages:
//
//   - Extractor turns pixels into raw straight-segment candidates:
//     CLAHE contrast equalization (8×8 tiles, clip limit 2.0), Canny edges
//     (50/150, 3×3 Sobel), an optional 3×3 morphological closing, and the
//     progressive probabilistic Hough transform (1px, 1°).
//   - Selector filters candidates to near-horizontal segments of at least
//     a fraction of the image width and ranks them by length, vertical
//     position (scale bars usually sit near the bottom) and straightness.
//
// Detector composes the two. A miss is reported as (Segment{}, false) and is
// never an error: undecodable images, images without edges and images
// without a qualifying segment all look the same to the caller.
//
// # Determinism
//
// Every stage is a pure function of the pixels and the parameters. The Hough
// transform visits edge pixels in row-major order instead of random order,
// and the selector keeps the first candidate on ties, so repeated calls on
// the same image always return the same segment.
//
// # Coordinate System
//
// Segment endpoints are pixel coordinates with the origin at the top-left
// corner, X increasing rightward and Y increasing downward.
//
// # Limitations
//
// The detector assumes a solid bar with good contrast against its
// surroundings. Bars drawn as bracket shapes, bars inside busy annotation
// panels, or images with strong horizontal structure near the bottom edge
// (stage edges, film borders) may yield the wrong segment; callers are
// expected to let the user adjust or draw the bar manually.
package detection
