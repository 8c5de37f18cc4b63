package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// runStdio serves MCP on stdin/stdout until the client disconnects or ctx
// is cancelled. Logs go to stderr because stdout carries the protocol.
func runStdio(ctx context.Context, configPath string) error {
	d, err := setup(ctx, configPath, os.Stderr)
	if err != nil {
		return err
	}
	defer d.Close()

	srv, err := d.mcpServer()
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	d.logger.Info(ctx, "starting ergond in MCP stdio mode")
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server error: %w", err)
	}
	return nil
}
