// Package server implements the MCP (Model Context Protocol) server for the
// mosaic engine.
//
// This package provides a JSON-RPC 2.0 server that exposes mosaic generation
// and its intermediate steps through the MCP protocol, so MCP clients can
// build mosaics or inspect how a reference image will be split and matched.
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
// Mosaic Operations:
//   - mosaic_generate: Build a mosaic and write it to disk
//   - mosaic_index_corpus: List the usable source images with their colors
//   - mosaic_partition: Show the tile grid of a reference image
//
// Color and Image Information:
//   - color_to_lab: Convert an sRGB color to CIE-L*a*b*
//   - image_dimensions: Get width and height
//
// # Image Caching
//
// Reference images are cached by path and reused across tool calls, so a
// mosaic_partition followed by mosaic_generate decodes the reference once.
// Source images are not cached here; the engine streams them.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// Logging goes through logrus to stderr; stdout carries only protocol
// messages.
//
// # Usage
//
//	srv := server.New(logger)
//	if err := srv.Run(ctx); err != nil {
//	    logger.Fatal(err)
//	}
package server
