// Package services provides the service registry shared by the HTTP server,
// the MCP server and the CLI.
//
// Build() wires every store over one data directory; NewRegistry() accepts
// pre-built instances, which tests use to inject their own.
package services
