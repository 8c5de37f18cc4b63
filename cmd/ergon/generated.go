package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	// generated command flags
	genFile        string
	genContent     string
	genContextUsed string
)

func init() {
	rootCmd.AddCommand(generatedCmd)
	generatedCmd.AddCommand(generatedListCmd)
	generatedCmd.AddCommand(generatedShowCmd)
	generatedCmd.AddCommand(generatedAppendCmd)

	generatedAppendCmd.Flags().StringVar(&genFile, "file", "", "Read the document from a file, or - for stdin")
	generatedAppendCmd.Flags().StringVar(&genContent, "content", "", "Document text")
	generatedAppendCmd.Flags().StringVar(&genContextUsed, "context-used", "", "Comma-separated context file paths the document drew on")
}

var generatedCmd = &cobra.Command{
	Use:   "generated",
	Short: "Manage generated documents",
	Long: `Manage documents generated from templates, such as PRDs.

Generated documents are append-only: every append writes a new file.

Examples:
  # Store a PRD produced elsewhere
  ergon generated append payments-api prd --file prd.md --context-used research/competitors.md

  # List documents, newest first
  ergon generated list payments-api`,
}

var generatedListCmd = &cobra.Command{
	Use:   "list <slug>",
	Short: "List generated documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runGeneratedList,
}

var generatedShowCmd = &cobra.Command{
	Use:   "show <slug> <filename>",
	Short: "Print a generated document",
	Args:  cobra.ExactArgs(2),
	RunE:  runGeneratedShow,
}

var generatedAppendCmd = &cobra.Command{
	Use:   "append <slug> <template-id>",
	Short: "Store a new generated document",
	Args:  cobra.ExactArgs(2),
	RunE:  runGeneratedAppend,
}

func runGeneratedList(cmd *cobra.Command, args []string) error {
	_, reg, err := initServices(cmd)
	if err != nil {
		return err
	}

	docs, err := reg.Generated().List(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list generated documents: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputJSONFlag {
		return outputJSON(out, docs)
	}
	if len(docs) == 0 {
		fmt.Fprintln(out, "No generated documents found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILENAME\tTEMPLATE\tGENERATED\tCONTEXT")
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
			d.Filename,
			truncate(d.TemplateID, 20),
			d.GeneratedAt.Local().Format("2006-01-02 15:04"),
			len(d.ContextUsed),
		)
	}
	return w.Flush()
}

func runGeneratedShow(cmd *cobra.Command, args []string) error {
	_, reg, err := initServices(cmd)
	if err != nil {
		return err
	}

	doc, err := reg.Generated().Get(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to get generated document: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputJSONFlag {
		return outputJSON(out, doc)
	}
	fmt.Fprint(out, doc.Content)
	return nil
}

func runGeneratedAppend(cmd *cobra.Command, args []string) error {
	body, err := readBody(cmd, genFile, genContent)
	if err != nil {
		return err
	}

	_, reg, err := initServices(cmd)
	if err != nil {
		return err
	}

	doc, err := reg.Generated().Append(cmd.Context(), args[0], args[1], body, splitList(genContextUsed))
	if err != nil {
		return fmt.Errorf("failed to store generated document: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputJSONFlag {
		return outputJSON(out, doc)
	}
	fmt.Fprintf(out, "Stored %s\n", doc.Filename)
	return nil
}
