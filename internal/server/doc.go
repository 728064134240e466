// Package server implements the MCP (Model Context Protocol) server for ROI
// annotation of microscopy images.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Folder:
//   - roi_select_folder: Open a folder of micrographs as the workspace
//   - roi_list_images: TIFF images with their has_data flag
//   - roi_thumbnail: PNG preview of an image
//
// Calibration:
//   - roi_detect_scale_bar: Locate the scale bar
//   - roi_read_scale_label: OCR the bar's printed length
//   - roi_save_calibration: Store a scale bar independently of ROIs
//
// ROIs:
//   - roi_save: Save a new ROI version (or patch the latest version's notes)
//   - roi_save_notes: Store the image-level note
//   - roi_load_analysis: Latest ROI versions, calibration and note
//   - roi_delete_analysis: Remove ROI rows, overlays and calibration
//
// # Workspace
//
// Every tool except roi_select_folder works on the folder selected last.
// The server holds that folder as an explicit *analysis.Workspace; calling
// a folder-scoped tool before selecting a folder is an input error.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32602 for invalid input (bad image name, malformed polygon,
//     no folder selected), -32000 for any other failure
//   - message: "Invalid params" or "Tool execution failed"
//   - data: the Go error string, e.g. the "close the file and try again"
//     hint when the measurement workbook is locked by another program
//
// # Usage
//
//	srv := server.New(cfg)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
