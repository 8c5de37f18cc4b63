package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Buooy/ergon-pm/internal/contextfile"
	"github.com/Buooy/ergon-pm/internal/watch"
)

var (
	// context command flags
	ctxDir       string
	ctxTitle     string
	ctxType      string
	ctxTags      string
	ctxCreatedAt string
	ctxFile      string
	ctxContent   string
)

func init() {
	rootCmd.AddCommand(contextCmd)
	contextCmd.AddCommand(contextListCmd)
	contextCmd.AddCommand(contextGetCmd)
	contextCmd.AddCommand(contextPutCmd)
	contextCmd.AddCommand(contextRmCmd)
	contextCmd.AddCommand(contextWatchCmd)

	contextListCmd.Flags().StringVar(&ctxDir, "dir", "", "Only list files below this subdirectory")

	contextPutCmd.Flags().StringVar(&ctxTitle, "title", "", "Title (defaults to the file name)")
	contextPutCmd.Flags().StringVar(&ctxType, "type", "", "Context type (defaults to general)")
	contextPutCmd.Flags().StringVar(&ctxTags, "tags", "", "Comma-separated tags")
	contextPutCmd.Flags().StringVar(&ctxCreatedAt, "created-at", "", "Creation time, RFC 3339 (defaults to the existing value or now)")
	contextPutCmd.Flags().StringVar(&ctxFile, "file", "", "Read the body from a file, or - for stdin")
	contextPutCmd.Flags().StringVar(&ctxContent, "content", "", "Body text")
}

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Manage a project's markdown context files",
	Long: `Manage the markdown context tree of a project.

Paths are relative to the project's context directory and must end in .md.

Examples:
  # Add a file from disk
  ergon context put payments-api research/competitors.md --file notes.md --tags market,research

  # List everything under research/
  ergon context list payments-api --dir research

  # Print a file's body
  ergon context get payments-api research/competitors.md

  # Follow changes while editing
  ergon context watch payments-api`,
}

var contextListCmd = &cobra.Command{
	Use:   "list <slug>",
	Short: "List context files",
	Args:  cobra.ExactArgs(1),
	RunE:  runContextList,
}

var contextGetCmd = &cobra.Command{
	Use:   "get <slug> <path>",
	Short: "Show a context file",
	Args:  cobra.ExactArgs(2),
	RunE:  runContextGet,
}

var contextPutCmd = &cobra.Command{
	Use:   "put <slug> <path>",
	Short: "Create or replace a context file",
	Args:  cobra.ExactArgs(2),
	RunE:  runContextPut,
}

var contextRmCmd = &cobra.Command{
	Use:   "rm <slug> <path>",
	Short: "Delete a context file",
	Args:  cobra.ExactArgs(2),
	RunE:  runContextRm,
}

var contextWatchCmd = &cobra.Command{
	Use:   "watch <slug>",
	Short: "Print changes to a project's context files until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE:  runContextWatch,
}

func runContextList(cmd *cobra.Command, args []string) error {
	_, reg, err := initServices(cmd)
	if err != nil {
		return err
	}

	files, err := reg.ContextFiles().List(cmd.Context(), args[0], ctxDir)
	if err != nil {
		return fmt.Errorf("failed to list context files: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputJSONFlag {
		return outputJSON(out, files)
	}
	if len(files) == 0 {
		fmt.Fprintln(out, "No context files found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tTITLE\tTYPE\tUPDATED")
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			f.Path,
			truncate(f.Title, 30),
			f.Type,
			f.UpdatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}

func runContextGet(cmd *cobra.Command, args []string) error {
	_, reg, err := initServices(cmd)
	if err != nil {
		return err
	}

	f, err := reg.ContextFiles().Get(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to get context file: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputJSONFlag {
		return outputJSON(out, f)
	}
	fmt.Fprint(out, f.Content)
	return nil
}

func runContextPut(cmd *cobra.Command, args []string) error {
	body, err := readBody(cmd, ctxFile, ctxContent)
	if err != nil {
		return err
	}

	fields := contextfile.Fields{
		Title:   ctxTitle,
		Type:    ctxType,
		Tags:    splitList(ctxTags),
		Content: body,
	}
	if ctxCreatedAt != "" {
		t, err := time.Parse(time.RFC3339, ctxCreatedAt)
		if err != nil {
			return fmt.Errorf("invalid --created-at %q: must be RFC 3339", ctxCreatedAt)
		}
		fields.CreatedAt = &t
	}

	_, reg, err := initServices(cmd)
	if err != nil {
		return err
	}

	f, err := reg.ContextFiles().Upsert(cmd.Context(), args[0], args[1], fields)
	if err != nil {
		return fmt.Errorf("failed to write context file: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputJSONFlag {
		return outputJSON(out, f)
	}
	fmt.Fprintf(out, "Wrote %s\n", f.Path)
	return nil
}

func runContextRm(cmd *cobra.Command, args []string) error {
	_, reg, err := initServices(cmd)
	if err != nil {
		return err
	}

	if err := reg.ContextFiles().Delete(cmd.Context(), args[0], args[1]); err != nil {
		return fmt.Errorf("failed to delete context file: %w", err)
	}

	if outputJSONFlag {
		return outputJSON(cmd.OutOrStdout(), map[string]bool{"success": true})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[1])
	return nil
}

func runContextWatch(cmd *cobra.Command, args []string) error {
	cfg, reg, err := initServices(cmd)
	if err != nil {
		return err
	}

	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	ctx, stop := signal.NotifyContext(base, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := cliLogger(cmd)
	w, err := watch.New(reg.Layout(), args[0], cfg.Watch.Debounce, logger)
	if err != nil {
		return fmt.Errorf("failed to watch project: %w", err)
	}
	defer w.Stop()

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to watch project: %w", err)
	}
	logger.Info("watching context files", zap.String("project", args[0]))

	out := cmd.OutOrStdout()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			if outputJSONFlag {
				if err := outputJSON(out, ev); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", ev.Time.Local().Format("15:04:05"), ev.Op, ev.Path)
		}
	}
}
