// Package mcp exposes the ergon stores as MCP tools.
//
// The server uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and calls the stores in the services registry directly. It is served over
// stdio by `ergond mcp` or as a streamable HTTP handler mounted at /mcp on
// the daemon.
//
// Every tool returns its result as indented JSON text. Store errors are
// reported as tool results with IsError set, never as protocol errors.
package mcp
