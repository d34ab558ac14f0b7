package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func intProp(description string, def int) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": description,
		"default":     def,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Mosaic Operations
		{
			Name: "mosaic_generate",
			Description: "Build a photo mosaic: split the reference image into a grid, replace every tile with the " +
				"source image whose average color is closest, and write the result to the output path.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"reference":        stringProp("Absolute path to the reference image"),
					"source_folder":    stringProp("Folder scanned recursively for source images"),
					"output":           stringProp("Absolute path of the mosaic to write (.jpg or .png)"),
					"tiles_horizontal": intProp("Number of tiles across (default 20)", 20),
					"tiles_vertical":   intProp("Number of tiles down (default 20)", 20),
					"quality":          intProp("JPEG quality 0-100 (default 75)", 75),
					"extensions": map[string]interface{}{
						"type":        "string",
						"description": "Comma separated source extensions, case-sensitive (default .jpg)",
						"default":     ".jpg",
					},
					"resampler": map[string]interface{}{
						"type":        "string",
						"description": "Resampling backend",
						"enum":        []string{"imaging", "bild", "nfnt", "xdraw"},
						"default":     "imaging",
					},
					"metric": map[string]interface{}{
						"type":        "string",
						"description": "Color distance used for matching",
						"enum":        []string{"euclidean", "ciede2000"},
						"default":     "euclidean",
					},
					"index_cache": stringProp("Optional file caching source image colors between runs"),
				},
				"required": []string{"reference", "source_folder", "output"},
			},
		},
		{
			Name:        "mosaic_index_corpus",
			Description: "Scan a source folder and return the average CIE-L*a*b* color of every usable image, in matching order.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"source_folder": stringProp("Folder scanned recursively for source images"),
					"extensions": map[string]interface{}{
						"type":        "string",
						"description": "Comma separated source extensions, case-sensitive (default .jpg)",
						"default":     ".jpg",
					},
				},
				"required": []string{"source_folder"},
			},
		},
		{
			Name: "mosaic_partition",
			Description: "Split a reference image into the mosaic tile grid and return each tile's bounds and average " +
				"color. Optionally returns a base64 PNG preview with the tile outlines drawn.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"reference":        stringProp("Absolute path to the reference image"),
					"tiles_horizontal": intProp("Number of tiles across (default 20)", 20),
					"tiles_vertical":   intProp("Number of tiles down (default 20)", 20),
					"max_tile_size":    intProp("Tile edge above which colors are sampled on a downscaled copy (default 100)", 100),
					"preview": map[string]interface{}{
						"type":        "boolean",
						"description": "Whether to return the image with tile outlines",
						"default":     false,
					},
					"grid_color": map[string]interface{}{
						"type":        "string",
						"description": "Outline color as hex (default #FF000080 - semi-transparent red)",
						"default":     "#FF000080",
					},
				},
				"required": []string{"reference"},
			},
		},

		// Color and Image Information
		{
			Name:        "color_to_lab",
			Description: "Convert an 8-bit sRGB color to CIE-L*a*b* (D65, 2° observer) as used for tile matching.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"r": map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 255},
					"g": map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 255},
					"b": map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 255},
				},
				"required": []string{"r", "g", "b"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": stringProp("Absolute path to the image file"),
				},
				"required": []string{"path"},
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
