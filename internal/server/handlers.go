package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ironsheep/mosaicr/internal/imaging"
	"github.com/ironsheep/mosaicr/internal/mosaic"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "mosaic_generate", "color_to_lab").
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
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.WithError(err).WithField("tool", params.Name).Info("tool failed")
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
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Runs the mosaic engine or imaging helper
//  4. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Mosaic Operations
	case "mosaic_generate":
		return s.handleMosaicGenerate(ctx, args)
	case "mosaic_index_corpus":
		return s.handleMosaicIndexCorpus(ctx, args)
	case "mosaic_partition":
		return s.handleMosaicPartition(args)

	// Color and Image Information
	case "color_to_lab":
		return s.handleColorToLab(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
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

// === Mosaic Handlers ===

type mosaicGenerateArgs struct {
	Reference       string `json:"reference"`
	SourceFolder    string `json:"source_folder"`
	Output          string `json:"output"`
	TilesHorizontal int    `json:"tiles_horizontal"`
	TilesVertical   int    `json:"tiles_vertical"`
	Quality         *int   `json:"quality"`
	Extensions      string `json:"extensions"`
	Resampler       string `json:"resampler"`
	Metric          string `json:"metric"`
	IndexCache      string `json:"index_cache"`
}

// MosaicGenerateResult summarizes a finished mosaic.
type MosaicGenerateResult struct {
	Output          string `json:"output"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Tiles           int    `json:"tiles"`
	CorpusSize      int    `json:"corpus_size"`
	DistinctSources int    `json:"distinct_sources"`
}

func (s *Server) handleMosaicGenerate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a mosaicGenerateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Reference == "" || a.SourceFolder == "" || a.Output == "" {
		return nil, fmt.Errorf("reference, source_folder and output are required")
	}
	if err := requireDir(a.SourceFolder); err != nil {
		return nil, err
	}

	cfg := mosaic.DefaultConfig()
	cfg.ReferencePath = a.Reference
	cfg.SourceDir = a.SourceFolder
	cfg.OutputPath = a.Output
	cfg.IndexCachePath = a.IndexCache
	if a.TilesHorizontal != 0 {
		cfg.TilesHorizontal = a.TilesHorizontal
	}
	if a.TilesVertical != 0 {
		cfg.TilesVertical = a.TilesVertical
	}
	if a.Quality != nil {
		cfg.Quality = *a.Quality
	}
	if a.Extensions != "" {
		cfg.Extensions = mosaic.ParseExtensions(a.Extensions)
	}
	if a.Resampler != "" {
		cfg.Resampler = a.Resampler
	}
	if a.Metric != "" {
		cfg.Metric = a.Metric
	}

	engine, err := mosaic.NewEngine(cfg, s.log)
	if err != nil {
		return nil, err
	}
	ref, err := s.cache.Load(a.Reference)
	if err != nil {
		return nil, fmt.Errorf("reference image %q: %w", a.Reference, err)
	}
	result, err := engine.GenerateFromImage(ctx, ref, a.SourceFolder)
	if err != nil {
		return nil, err
	}
	if err := engine.WriteFile(result, a.Output); err != nil {
		return nil, err
	}

	return &MosaicGenerateResult{
		Output:          a.Output,
		Width:           result.Image.Bounds().Dx(),
		Height:          result.Image.Bounds().Dy(),
		Tiles:           len(result.Pairs),
		CorpusSize:      result.Corpus.Len(),
		DistinctSources: result.DistinctSources(),
	}, nil
}

type mosaicIndexCorpusArgs struct {
	SourceFolder string `json:"source_folder"`
	Extensions   string `json:"extensions"`
}

// CorpusResult lists the usable images of a source folder.
type CorpusResult struct {
	Root   string               `json:"root"`
	Count  int                  `json:"count"`
	Images []mosaic.SourceImage `json:"images"`
}

func (s *Server) handleMosaicIndexCorpus(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a mosaicIndexCorpusArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := requireDir(a.SourceFolder); err != nil {
		return nil, err
	}

	cfg := mosaic.DefaultConfig()
	if a.Extensions != "" {
		cfg.Extensions = mosaic.ParseExtensions(a.Extensions)
	}
	engine, err := mosaic.NewEngine(cfg, s.log)
	if err != nil {
		return nil, err
	}
	corpus, err := engine.Index(ctx, a.SourceFolder)
	if err != nil {
		return nil, err
	}
	return &CorpusResult{Root: corpus.Root, Count: corpus.Len(), Images: corpus.Images}, nil
}

type mosaicPartitionArgs struct {
	Reference       string `json:"reference"`
	TilesHorizontal int    `json:"tiles_horizontal"`
	TilesVertical   int    `json:"tiles_vertical"`
	MaxTileSize     int    `json:"max_tile_size"`
	Preview         bool   `json:"preview"`
	GridColor       string `json:"grid_color"`
}

// PartitionResult is the tile grid of a reference image, optionally with a
// preview of the grid drawn over the image.
type PartitionResult struct {
	*mosaic.Partition
	Preview *imaging.GridOverlayResult `json:"preview,omitempty"`
}

func (s *Server) handleMosaicPartition(args json.RawMessage) (interface{}, error) {
	var a mosaicPartitionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	cfg := mosaic.DefaultConfig()
	if a.TilesHorizontal != 0 {
		cfg.TilesHorizontal = a.TilesHorizontal
	}
	if a.TilesVertical != 0 {
		cfg.TilesVertical = a.TilesVertical
	}
	if a.MaxTileSize != 0 {
		cfg.MaxTileSize = a.MaxTileSize
	}
	if a.GridColor == "" {
		a.GridColor = "#FF000080"
	}

	engine, err := mosaic.NewEngine(cfg, s.log)
	if err != nil {
		return nil, err
	}
	ref, err := s.cache.Load(a.Reference)
	if err != nil {
		return nil, err
	}
	part, err := engine.Partition(ref)
	if err != nil {
		return nil, err
	}

	result := &PartitionResult{Partition: part}
	if a.Preview {
		rects := part.Rects()
		for i := range rects {
			rects[i] = rects[i].Add(ref.Bounds().Min)
		}
		result.Preview, err = imaging.TileGridOverlay(ref, rects, a.GridColor)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// === Color and Image Information Handlers ===

type colorToLabArgs struct {
	R *int `json:"r"`
	G *int `json:"g"`
	B *int `json:"b"`
}

func (s *Server) handleColorToLab(args json.RawMessage) (interface{}, error) {
	var a colorToLabArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	channels := []struct {
		name  string
		value *int
	}{{"r", a.R}, {"g", a.G}, {"b", a.B}}
	for _, c := range channels {
		if c.value == nil {
			return nil, fmt.Errorf("%s is required", c.name)
		}
		if *c.value < 0 || *c.value > 255 {
			return nil, fmt.Errorf("%s=%d outside range 0-255", c.name, *c.value)
		}
	}
	lab := imaging.ToLab(uint8(*a.R), uint8(*a.G), uint8(*a.B))
	return &lab, nil
}

type imageDimensionsArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageDimensionsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("source folder %q does not exist", path)
	}
	if !info.IsDir() {
		return fmt.Errorf("source folder %q is not a directory", path)
	}
	return nil
}
