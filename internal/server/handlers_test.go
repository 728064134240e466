package server

import (
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/tiff"

	"github.com/ironsheep/roi-analyzer-mcp/internal/analysis"
)

// createTestFolder creates a folder holding dark TIFF micrographs with a
// bright bar near the bottom.
func createTestFolder(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()

	img := image.NewGray(image.Rect(0, 0, 400, 300))
	for i := range img.Pix {
		img.Pix[i] = 40
	}
	for y := 260; y < 268; y++ {
		for x := 100; x < 300; x++ {
			img.SetGray(x, y, color.Gray{Y: 250})
		}
	}

	for _, name := range names {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
		if err := tiff.Encode(f, img, nil); err != nil {
			f.Close()
			t.Fatalf("failed to encode %s: %v", name, err)
		}
		f.Close()
	}
	return dir
}

func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()
	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}

	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// decodeResult unmarshals the text content of a successful tool response.
func decodeResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("unexpected content: %#v", result["content"])
	}
	text, _ := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("failed to decode result %q: %v", text, err)
	}
}

func newServerWithFolder(t *testing.T, names ...string) (*Server, string) {
	t.Helper()
	s := New(nil)
	dir := createTestFolder(t, names...)
	resp := callTool(t, s, "roi_select_folder", map[string]interface{}{"folder": dir})
	if resp.Error != nil {
		t.Fatalf("roi_select_folder failed: %+v", resp.Error)
	}
	return s, dir
}

var squarePoints = []map[string]float64{
	{"x": 10, "y": 10}, {"x": 60, "y": 10}, {"x": 60, "y": 60}, {"x": 10, "y": 60},
}

func TestHandleToolsCall_SelectFolder(t *testing.T) {
	s := New(nil)
	dir := createTestFolder(t, "b.tif", "a.tif")

	var result struct {
		Folder string                `json:"folder"`
		Images []analysis.ImageEntry `json:"images"`
	}
	decodeResult(t, callTool(t, s, "roi_select_folder", map[string]interface{}{"folder": dir}), &result)

	if len(result.Images) != 2 || result.Images[0].Filename != "a.tif" {
		t.Errorf("unexpected images %+v", result.Images)
	}
	if s.Workspace() == nil {
		t.Error("workspace not set")
	}
}

func TestHandleToolsCall_SelectFolder_Missing(t *testing.T) {
	s := New(nil)
	resp := callTool(t, s, "roi_select_folder", map[string]interface{}{"folder": "/nonexistent/folder"})

	if resp.Error == nil {
		t.Fatal("Expected error for missing folder")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}

func TestHandleToolsCall_NoFolderSelected(t *testing.T) {
	s := New(nil)

	for _, name := range []string{"roi_list_images", "roi_load_analysis", "roi_save", "roi_detect_scale_bar"} {
		t.Run(name, func(t *testing.T) {
			resp := callTool(t, s, name, map[string]interface{}{"image_name": "a.tif"})
			if resp.Error == nil {
				t.Fatal("Expected error before a folder is selected")
			}
			if resp.Error.Code != -32602 {
				t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
			}
			if data, _ := resp.Error.Data.(string); !strings.Contains(data, "roi_select_folder") {
				t.Errorf("error data should point at roi_select_folder: %v", resp.Error.Data)
			}
		})
	}
}

func TestHandleToolsCall_SaveAndLoad(t *testing.T) {
	s, dir := newServerWithFolder(t, "a.tif")

	var saved analysis.SaveResult
	decodeResult(t, callTool(t, s, "roi_save", map[string]interface{}{
		"image_name":       "a.tif",
		"selection_number": 1,
		"points":           squarePoints,
		"scale_um":         50,
		"area_px2":         2500,
	}), &saved)
	if saved.Version != 1 || saved.OverlayFile != "a.tif_roi1_v1.png" {
		t.Errorf("unexpected save result %+v", saved)
	}
	if _, err := os.Stat(filepath.Join(dir, "_roi_overlays", saved.OverlayFile)); err != nil {
		t.Errorf("overlay not written: %v", err)
	}

	decodeResult(t, callTool(t, s, "roi_save", map[string]interface{}{
		"image_name":       "a.tif",
		"selection_number": 1,
		"notes":            "checked",
		"is_notes_only":    true,
	}), &map[string]interface{}{})

	var snap analysis.Snapshot
	decodeResult(t, callTool(t, s, "roi_load_analysis", map[string]interface{}{"image_name": "a.tif"}), &snap)
	if len(snap.Rois) != 1 {
		t.Fatalf("expected 1 ROI, got %d", len(snap.Rois))
	}
	roi := snap.Rois[0]
	if roi.Version != 1 || roi.Notes != "checked" || roi.ScaleUm != 50 || len(roi.Points) != 4 {
		t.Errorf("unexpected ROI %+v", roi)
	}
}

func TestHandleToolsCall_SaveInvalidPolygon(t *testing.T) {
	s, _ := newServerWithFolder(t, "a.tif")

	resp := callTool(t, s, "roi_save", map[string]interface{}{
		"image_name":       "a.tif",
		"selection_number": 1,
		"points":           squarePoints[:2],
	})
	if resp.Error == nil {
		t.Fatal("Expected error for a two-point polygon")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}

func TestHandleToolsCall_CalibrationNotesDelete(t *testing.T) {
	s, _ := newServerWithFolder(t, "a.tif")
	bar := map[string]int{"x1": 100, "y1": 260, "x2": 300, "y2": 260}

	for _, call := range []struct {
		name string
		args map[string]interface{}
	}{
		{"roi_save_calibration", map[string]interface{}{"image_name": "a.tif", "scale_bar": bar, "scale_um": 20000}},
		{"roi_save_notes", map[string]interface{}{"image_name": "a.tif", "notes": "keep me"}},
		{"roi_save", map[string]interface{}{"image_name": "a.tif", "selection_number": 2, "points": squarePoints}},
	} {
		if resp := callTool(t, s, call.name, call.args); resp.Error != nil {
			t.Fatalf("%s failed: %+v", call.name, resp.Error)
		}
	}

	var snap analysis.Snapshot
	decodeResult(t, callTool(t, s, "roi_load_analysis", map[string]interface{}{"image_name": "a.tif"}), &snap)
	if snap.ScaleBar == nil || snap.ScaleUm != 100 {
		t.Errorf("calibration: bar=%v um=%v, want clamped to 100", snap.ScaleBar, snap.ScaleUm)
	}

	decodeResult(t, callTool(t, s, "roi_delete_analysis", map[string]interface{}{"image_name": "a.tif"}), &map[string]interface{}{})

	snap = analysis.Snapshot{}
	decodeResult(t, callTool(t, s, "roi_load_analysis", map[string]interface{}{"image_name": "a.tif"}), &snap)
	if len(snap.Rois) != 0 || snap.ScaleBar != nil {
		t.Errorf("analysis not deleted: %+v", snap)
	}
	if snap.Notes != "keep me" {
		t.Errorf("notes = %q, want them kept", snap.Notes)
	}
}

func TestHandleToolsCall_DetectScaleBar(t *testing.T) {
	s, _ := newServerWithFolder(t, "a.tif")

	var result detectResult
	decodeResult(t, callTool(t, s, "roi_detect_scale_bar", map[string]interface{}{"image_name": "a.tif"}), &result)
	if !result.Found || result.ScaleBar == nil {
		t.Fatalf("expected a detection, got %+v", result)
	}
	if result.LengthPx < 150 {
		t.Errorf("detected bar too short: %.1f", result.LengthPx)
	}

	resp := callTool(t, s, "roi_detect_scale_bar", map[string]interface{}{"image_name": "../a.tif"})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("path outside the folder should be invalid params, got %+v", resp.Error)
	}
}

func TestHandleToolsCall_Thumbnail(t *testing.T) {
	s, _ := newServerWithFolder(t, "a.tif")

	var thumb struct {
		Width    int    `json:"width"`
		Height   int    `json:"height"`
		MimeType string `json:"mime_type"`
	}
	decodeResult(t, callTool(t, s, "roi_thumbnail", map[string]interface{}{"image_name": "a.tif"}), &thumb)
	if thumb.Width != 256 || thumb.Height != 192 {
		t.Errorf("thumbnail %dx%d, want 256x192", thumb.Width, thumb.Height)
	}

	resp := callTool(t, s, "roi_thumbnail", map[string]interface{}{"image_name": "a.tif", "size": -5})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("negative size should be invalid params, got %+v", resp.Error)
	}
}

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s := New(nil)
	resp := callTool(t, s, "nonexistent_tool", map[string]interface{}{})

	if resp.Error == nil {
		t.Fatal("Expected error for unknown tool")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New(nil)
	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`not valid json`),
	})

	if resp.Error == nil {
		t.Fatal("Expected error for invalid params")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s, _ := newServerWithFolder(t, "a.tif")

	_, err := s.executeTool("roi_save", json.RawMessage(`{"selection_number": "one"}`))
	if err == nil {
		t.Error("Expected error for mistyped arguments")
	}
}

func TestExecuteTool_StoreBusy(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	s, dir := newServerWithFolder(t, "a.tif")

	if err := os.Chmod(dir, 0555); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(dir, 0755)

	resp := callTool(t, s, "roi_save_notes", map[string]interface{}{"image_name": "a.tif", "notes": "x"})
	if resp.Error == nil {
		t.Fatal("Expected error for a read-only folder")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
	if data, _ := resp.Error.Data.(string); !strings.Contains(data, "close the file") {
		t.Errorf("error should tell the user to close the file: %v", resp.Error.Data)
	}
}
