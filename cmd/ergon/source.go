package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sourceCmd)
	sourceCmd.AddCommand(sourceSyncCmd)
}

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Work with a project's context sources",
	Long: `Work with the context sources declared on a project.

Source ids are shown by "ergon project get <slug>".

Examples:
  # Import a github source into context/github/<repo>/
  ergon source sync payments-api 0b5c7e4e-2f0e-4a53-9a51-7d8f0f0d7d3a`,
}

var sourceSyncCmd = &cobra.Command{
	Use:   "sync <slug> <source-id>",
	Short: "Import a context source into the project's context tree",
	Args:  cobra.ExactArgs(2),
	RunE:  runSourceSync,
}

func runSourceSync(cmd *cobra.Command, args []string) error {
	_, reg, err := initServices(cmd)
	if err != nil {
		return err
	}

	res, err := reg.Sources().Sync(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to sync source: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputJSONFlag {
		return outputJSON(out, res)
	}
	fmt.Fprintf(out, "Synced %s source %s: %d file(s) written\n", res.Type, res.SourceID, len(res.Written))
	if res.Revision != nil {
		fmt.Fprintf(out, "Revision: %s (%s)\n", res.Revision.Commit, res.Revision.Branch)
	}
	for _, p := range res.Written {
		fmt.Fprintf(out, "  %s\n", p)
	}
	return nil
}
