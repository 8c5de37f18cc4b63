package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Buooy/ergon-pm/internal/project"
)

var (
	// project command flags
	projDescription string
	projName        string
)

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectGetCmd)
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectUpdateCmd)
	projectCmd.AddCommand(projectDeleteCmd)

	projectCreateCmd.Flags().StringVar(&projDescription, "description", "", "Project description")

	projectUpdateCmd.Flags().StringVar(&projName, "name", "", "New display name (the slug does not change)")
	projectUpdateCmd.Flags().StringVar(&projDescription, "description", "", "New description")
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	Long: `Manage projects in the data directory.

Examples:
  # Create a project
  ergon project create "Payments API" --description "Billing rewrite"

  # List projects
  ergon project list

  # Rename a project (its slug stays payments-api)
  ergon project update payments-api --name "Payments"`,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE:  runProjectList,
}

var projectGetCmd = &cobra.Command{
	Use:   "get <slug>",
	Short: "Show a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectGet,
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectCreate,
}

var projectUpdateCmd = &cobra.Command{
	Use:   "update <slug>",
	Short: "Update a project's name or description",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectUpdate,
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <slug>",
	Short: "Delete a project with all its files",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectDelete,
}

func runProjectList(cmd *cobra.Command, args []string) error {
	_, reg, err := initServices(cmd)
	if err != nil {
		return err
	}

	projects, err := reg.Projects().List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputJSONFlag {
		return outputJSON(out, projects)
	}
	if len(projects) == 0 {
		fmt.Fprintln(out, "No projects found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SLUG\tNAME\tSOURCES\tUPDATED")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			p.Slug,
			truncate(p.Name, 40),
			len(p.ContextSources),
			p.UpdatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}

func runProjectGet(cmd *cobra.Command, args []string) error {
	_, reg, err := initServices(cmd)
	if err != nil {
		return err
	}

	p, err := reg.Projects().Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}
	return printProject(cmd, p)
}

func runProjectCreate(cmd *cobra.Command, args []string) error {
	_, reg, err := initServices(cmd)
	if err != nil {
		return err
	}

	p, err := reg.Projects().Create(cmd.Context(), args[0], projDescription)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return printProject(cmd, p)
}

func runProjectUpdate(cmd *cobra.Command, args []string) error {
	var patch project.Patch
	if cmd.Flags().Changed("name") {
		patch.Name = &projName
	}
	if cmd.Flags().Changed("description") {
		patch.Description = &projDescription
	}
	if patch.Name == nil && patch.Description == nil {
		return fmt.Errorf("nothing to update: pass --name or --description")
	}

	_, reg, err := initServices(cmd)
	if err != nil {
		return err
	}

	p, err := reg.Projects().Update(cmd.Context(), args[0], patch)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return printProject(cmd, p)
}

func runProjectDelete(cmd *cobra.Command, args []string) error {
	_, reg, err := initServices(cmd)
	if err != nil {
		return err
	}

	if err := reg.Projects().Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	if outputJSONFlag {
		return outputJSON(cmd.OutOrStdout(), map[string]bool{"success": true})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Project %s deleted\n", args[0])
	return nil
}

func printProject(cmd *cobra.Command, p *project.Project) error {
	out := cmd.OutOrStdout()
	if outputJSONFlag {
		return outputJSON(out, p)
	}

	fmt.Fprintf(out, "Slug: %s\n", p.Slug)
	fmt.Fprintf(out, "Name: %s\n", p.Name)
	fmt.Fprintf(out, "ID: %s\n", p.ID)
	if p.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", p.Description)
	}
	fmt.Fprintf(out, "Created: %s\n", p.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Updated: %s\n", p.UpdatedAt.Local().Format("2006-01-02 15:04:05"))

	if len(p.ContextSources) > 0 {
		fmt.Fprintln(out, "Sources:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, src := range p.ContextSources {
			state := "enabled"
			if !src.Enabled {
				state = "disabled"
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\n", src.ID, src.Type, state)
		}
		return w.Flush()
	}
	return nil
}
