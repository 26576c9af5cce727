package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vbonduro/sitecheck/internal/checklist"
)

func checklistCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "checklist [file]",
		Short: "Validate a checklist catalog and summarise it",
		Long: `Validates a checklist YAML file against the built-in rule lists and
prints the number of items per category. Without a file the embedded catalog
is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			c, err := loadCatalog(path)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Categories []checklist.Category `json:"categories"`
					Groups     []checklist.Group    `json:"groups"`
					Rules      checklist.Rules      `json:"rules"`
				}{c.Categories(), c.Groups(), c.Rules()})
			}
			return printSummary(cmd.OutOrStdout(), c)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full catalog as JSON")
	return cmd
}

// loadCatalog reads path, or returns the embedded catalog when path is empty.
func loadCatalog(path string) (*checklist.Catalog, error) {
	if path == "" {
		return checklist.Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checklist: %w", err)
	}
	defer f.Close()

	c, err := checklist.Load(f, checklist.DefaultRules())
	if err != nil {
		return nil, fmt.Errorf("checklist %s: %w", path, err)
	}
	return c, nil
}

func printSummary(w io.Writer, c *checklist.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tNAME\tITEMS")
	for _, cat := range c.Categories() {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", cat.ID, cat.Name, len(cat.Items))
	}
	fmt.Fprintf(tw, "\t%d groups\t%d\n", len(c.Groups()), c.ItemCount())
	return tw.Flush()
}
