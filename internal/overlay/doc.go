// Package overlay renders ROI polygons onto copies of their source
// micrographs.
//
// Each saved ROI version produces one PNG under the folder's overlay
// directory, named {image}_roi{selection}_v{version}.png where {image} is
// the full file name including its extension. Saving the same version
// again overwrites that file; different versions never collide, so the
// overlay directory doubles as a visual history of every edit.
//
// The source image is never modified.
package overlay
