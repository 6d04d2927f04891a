package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"redirect-agent-backend/internal/catalog"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the service catalog",
	}
	cmd.AddCommand(newCatalogBuildCmd())
	return cmd
}

func newCatalogBuildCmd() *cobra.Command {
	var (
		path      string
		name      string
		headerRow int
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Append the services spreadsheet to a markdown catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := catalog.AppendMarkdown(path, name, headerRow)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d services to %s\n", n, name)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "services spreadsheet (.xlsx)")
	cmd.Flags().StringVar(&name, "name", "output.md", "markdown file to append to")
	cmd.Flags().IntVar(&headerRow, "header", 1, "0-based index of the header row; data starts on the next row")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}
