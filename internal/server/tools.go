package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func imageNameProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "File name of the image inside the selected folder (e.g. \"a.tif\")",
	}
}

func segmentProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": description,
		"properties": map[string]interface{}{
			"x1": map[string]interface{}{"type": "integer"},
			"y1": map[string]interface{}{"type": "integer"},
			"x2": map[string]interface{}{"type": "integer"},
			"y2": map[string]interface{}{"type": "integer"},
		},
		"required": []string{"x1", "y1", "x2", "y2"},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Folder
		{
			Name:        "roi_select_folder",
			Description: "Select the folder of micrographs to work on. All other roi_* tools operate on this folder. Returns the TIFF images it contains.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"folder": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the folder",
					},
				},
				"required": []string{"folder"},
			},
		},
		{
			Name:        "roi_list_images",
			Description: "List the TIFF images in the selected folder, each flagged with whether ROI measurements have been saved for it.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "roi_thumbnail",
			Description: "Return a base64-encoded PNG preview of an image, scaled to fit a square box.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image_name": imageNameProperty(),
					"size": map[string]interface{}{
						"type":        "integer",
						"description": "Side of the bounding box in pixels. Default 256",
						"default":     defaultThumbnailSize,
					},
				},
				"required": []string{"image_name"},
			},
		},

		// Calibration
		{
			Name:        "roi_detect_scale_bar",
			Description: "Locate the calibration scale bar of a micrograph. Prefers long, near-horizontal bars in the bottom third. Reports found=false when nothing qualifies.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image_name": imageNameProperty(),
				},
				"required": []string{"image_name"},
			},
		},
		{
			Name:        "roi_read_scale_label",
			Description: "Read the printed length next to a scale bar (e.g. \"50 µm\") with OCR and return it in micrometres. Detects the bar first when none is given.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image_name": imageNameProperty(),
					"scale_bar":  segmentProperty("Scale bar endpoints in image pixels. Optional"),
				},
				"required": []string{"image_name"},
			},
		},
		{
			Name:        "roi_save_calibration",
			Description: "Save the scale bar and its physical length for an image independently of any ROI. scale_um outside [1, 10000] is replaced by 100.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image_name": imageNameProperty(),
					"scale_bar":  segmentProperty("Scale bar endpoints in image pixels"),
					"scale_um": map[string]interface{}{
						"type":        "number",
						"description": "Physical length of the bar in micrometres",
					},
				},
				"required": []string{"image_name", "scale_um"},
			},
		},

		// ROIs
		{
			Name:        "roi_save",
			Description: "Save one version of an ROI polygon: renders an overlay image and appends a measurement row. Omit version to create the next version. With is_notes_only, only the notes of the latest version are updated.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image_name": imageNameProperty(),
					"selection_number": map[string]interface{}{
						"type":        "integer",
						"description": "ROI number within the image",
					},
					"version": map[string]interface{}{
						"type":        "integer",
						"description": "Version to write. Omit or 0 for the next version",
					},
					"points": map[string]interface{}{
						"type":        "array",
						"description": "Polygon vertices in image pixels, in drawing order (at least 3)",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"x": map[string]interface{}{"type": "number"},
								"y": map[string]interface{}{"type": "number"},
							},
							"required": []string{"x", "y"},
						},
					},
					"scale_px_per_um": map[string]interface{}{"type": "number"},
					"scale_um":        map[string]interface{}{"type": "number"},
					"scale_bar":       segmentProperty("Scale bar used for this measurement. Optional"),
					"area_um2":        map[string]interface{}{"type": "number"},
					"area_px2":        map[string]interface{}{"type": "number"},
					"notes":           map[string]interface{}{"type": "string"},
					"is_notes_only": map[string]interface{}{
						"type":        "boolean",
						"description": "Only update the notes of the latest version",
						"default":     false,
					},
				},
				"required": []string{"image_name", "selection_number"},
			},
		},
		{
			Name:        "roi_save_notes",
			Description: "Save the free-text note of an image. Image notes are kept when the analysis is deleted.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image_name": imageNameProperty(),
					"notes":      map[string]interface{}{"type": "string"},
				},
				"required": []string{"image_name", "notes"},
			},
		},
		{
			Name:        "roi_load_analysis",
			Description: "Return everything saved for an image: the latest version of every ROI, the calibration and the image note.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image_name": imageNameProperty(),
				},
				"required": []string{"image_name"},
			},
		},
		{
			Name:        "roi_delete_analysis",
			Description: "Delete every ROI version of an image, their overlay files and the image calibration. The image note is kept.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image_name": imageNameProperty(),
				},
				"required": []string{"image_name"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
