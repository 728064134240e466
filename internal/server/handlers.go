package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/roi-analyzer-mcp/internal/analysis"
	"github.com/ironsheep/roi-analyzer-mcp/internal/faults"
	"github.com/ironsheep/roi-analyzer-mcp/internal/geom"
)

// defaultThumbnailSize is the preview box used when the client gives none.
const defaultThumbnailSize = 256

// errNoFolder is returned by folder-scoped tools before roi_select_folder.
var errNoFolder = &faults.InputError{Field: "folder", Reason: "no folder selected; call roi_select_folder first"}

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "roi_save").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Input errors return a JSON-RPC error with code -32602, every other
// failure code -32000. The error text is passed through as data.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		if faults.IsInput(err) {
			return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
		}
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Folder
	case "roi_select_folder":
		return s.handleSelectFolder(args)
	case "roi_list_images":
		return s.handleListImages(args)
	case "roi_thumbnail":
		return s.handleThumbnail(args)

	// Calibration
	case "roi_detect_scale_bar":
		return s.handleDetectScaleBar(args)
	case "roi_read_scale_label":
		return s.handleReadScaleLabel(args)
	case "roi_save_calibration":
		return s.handleSaveCalibration(args)

	// ROIs
	case "roi_save":
		return s.handleSave(args)
	case "roi_save_notes":
		return s.handleSaveNotes(args)
	case "roi_load_analysis":
		return s.handleLoadAnalysis(args)
	case "roi_delete_analysis":
		return s.handleDeleteAnalysis(args)

	default:
		return nil, faults.Input("name", "unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments. Missing arguments decode as an
// empty object; malformed ones are an input error.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return faults.Input("arguments", "%v", err)
	}
	return nil
}

// active returns the selected workspace.
func (s *Server) active() (*analysis.Workspace, error) {
	if s.workspace == nil {
		return nil, errNoFolder
	}
	return s.workspace, nil
}

type imageArgs struct {
	ImageName string `json:"image_name"`
}

// === Folder Handlers ===

type selectFolderArgs struct {
	Folder string `json:"folder"`
}

type folderResult struct {
	Folder string                `json:"folder"`
	Images []analysis.ImageEntry `json:"images"`
}

func (s *Server) handleSelectFolder(args json.RawMessage) (interface{}, error) {
	var a selectFolderArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	w, err := s.SelectFolder(a.Folder)
	if err != nil {
		return nil, err
	}
	images, err := w.ListImages()
	if err != nil {
		return nil, err
	}
	return folderResult{Folder: w.Folder(), Images: images}, nil
}

func (s *Server) handleListImages(args json.RawMessage) (interface{}, error) {
	w, err := s.active()
	if err != nil {
		return nil, err
	}
	images, err := w.ListImages()
	if err != nil {
		return nil, err
	}
	return folderResult{Folder: w.Folder(), Images: images}, nil
}

type thumbnailArgs struct {
	ImageName string `json:"image_name"`
	Size      int    `json:"size"`
}

func (s *Server) handleThumbnail(args json.RawMessage) (interface{}, error) {
	var a thumbnailArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Size == 0 {
		a.Size = defaultThumbnailSize
	}
	if a.Size < 0 {
		return nil, faults.Input("size", "must be positive, got %d", a.Size)
	}
	w, err := s.active()
	if err != nil {
		return nil, err
	}
	return w.Thumbnail(a.ImageName, a.Size)
}

// === Calibration Handlers ===

type detectResult struct {
	Found        bool          `json:"found"`
	ScaleBar     *geom.Segment `json:"scale_bar"`
	LengthPx     float64       `json:"length_px,omitempty"`
	DeviationDeg float64       `json:"deviation_deg,omitempty"`
}

func (s *Server) handleDetectScaleBar(args json.RawMessage) (interface{}, error) {
	var a imageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	w, err := s.active()
	if err != nil {
		return nil, err
	}

	seg, ok, err := w.DetectScaleBar(a.ImageName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return detectResult{Found: false}, nil
	}
	return detectResult{
		Found:        true,
		ScaleBar:     &seg,
		LengthPx:     seg.Length(),
		DeviationDeg: seg.HorizontalDeviation(),
	}, nil
}

type readScaleLabelArgs struct {
	ImageName string        `json:"image_name"`
	ScaleBar  *geom.Segment `json:"scale_bar"`
}

func (s *Server) handleReadScaleLabel(args json.RawMessage) (interface{}, error) {
	var a readScaleLabelArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	w, err := s.active()
	if err != nil {
		return nil, err
	}

	bar := a.ScaleBar
	if bar == nil {
		seg, ok, err := w.DetectScaleBar(a.ImageName)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New("label not read: no scale bar found")
		}
		bar = &seg
	}

	label, err := w.ReadScaleLabel(a.ImageName, *bar)
	if err != nil {
		if faults.IsInput(err) {
			return nil, err
		}
		return nil, fmt.Errorf("label not read: %w", err)
	}
	return map[string]interface{}{
		"scale_bar": bar,
		"label":     label,
	}, nil
}

type saveCalibrationArgs struct {
	ImageName string        `json:"image_name"`
	ScaleBar  *geom.Segment `json:"scale_bar"`
	ScaleUm   float64       `json:"scale_um"`
}

func (s *Server) handleSaveCalibration(args json.RawMessage) (interface{}, error) {
	var a saveCalibrationArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	w, err := s.active()
	if err != nil {
		return nil, err
	}
	if err := w.SaveCalibration(a.ImageName, a.ScaleBar, a.ScaleUm); err != nil {
		return nil, err
	}
	return map[string]interface{}{"saved": true}, nil
}

// === ROI Handlers ===

type saveArgs struct {
	ImageName       string        `json:"image_name"`
	SelectionNumber int           `json:"selection_number"`
	Version         int           `json:"version"`
	Points          []geom.Point  `json:"points"`
	ScalePxPerUm    float64       `json:"scale_px_per_um"`
	ScaleUm         float64       `json:"scale_um"`
	ScaleBar        *geom.Segment `json:"scale_bar"`
	AreaUm2         float64       `json:"area_um2"`
	AreaPx2         float64       `json:"area_px2"`
	Notes           string        `json:"notes"`
	IsNotesOnly     bool          `json:"is_notes_only"`
}

func (s *Server) handleSave(args json.RawMessage) (interface{}, error) {
	var a saveArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	w, err := s.active()
	if err != nil {
		return nil, err
	}

	res, err := w.SaveRoi(analysis.RoiRequest{
		ImageName:       a.ImageName,
		SelectionNumber: a.SelectionNumber,
		Version:         a.Version,
		Points:          a.Points,
		ScalePxPerUm:    a.ScalePxPerUm,
		ScaleUm:         a.ScaleUm,
		ScaleBar:        a.ScaleBar,
		AreaUm2:         a.AreaUm2,
		AreaPx2:         a.AreaPx2,
		Notes:           a.Notes,
		IsNotesOnly:     a.IsNotesOnly,
	})
	if err != nil {
		return nil, err
	}
	if a.IsNotesOnly {
		return map[string]interface{}{"saved": true}, nil
	}
	return res, nil
}

type saveNotesArgs struct {
	ImageName string `json:"image_name"`
	Notes     string `json:"notes"`
}

func (s *Server) handleSaveNotes(args json.RawMessage) (interface{}, error) {
	var a saveNotesArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	w, err := s.active()
	if err != nil {
		return nil, err
	}
	if err := w.SaveNotes(a.ImageName, a.Notes); err != nil {
		return nil, err
	}
	return map[string]interface{}{"saved": true}, nil
}

func (s *Server) handleLoadAnalysis(args json.RawMessage) (interface{}, error) {
	var a imageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	w, err := s.active()
	if err != nil {
		return nil, err
	}
	return w.LoadAnalysis(a.ImageName), nil
}

func (s *Server) handleDeleteAnalysis(args json.RawMessage) (interface{}, error) {
	var a imageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	w, err := s.active()
	if err != nil {
		return nil, err
	}
	if err := w.DeleteAnalysis(a.ImageName); err != nil {
		return nil, err
	}
	return map[string]interface{}{"deleted": true}, nil
}
