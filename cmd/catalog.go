package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lureiq/internal/scorer"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and validate lure catalogs",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the active lure catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := loadCatalog()
		if err != nil {
			return err
		}
		asYAML, _ := cmd.Flags().GetBool("yaml")
		if asYAML {
			data, err := scorer.MarshalCatalog(c)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		}
		formatCatalog(os.Stdout, c)
		return nil
	},
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a YAML lure catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		c, err := scorer.LoadCatalogFile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s: %d lures OK\n", args[0], len(c))
		return nil
	},
}

// loadCatalog returns the configured catalog file, or the built-in one.
func loadCatalog() (scorer.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return scorer.DefaultCatalog(), nil
	}
	c, err := scorer.LoadCatalogFile(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	zap.L().Info("catalog loaded", zap.String("path", cfg.Catalog.Path), zap.Int("lures", len(c)))
	return c, nil
}

func formatCatalog(w io.Writer, c scorer.Catalog) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LURE\tBASE\tRETRIEVE\tDEPTH")
	for _, l := range c {
		fmt.Fprintf(tw, "%s\t%.1f\t%s\t%s\n", l.Name, l.BaseWeight, l.Retrieve, l.Depth)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	catalogListCmd.Flags().Bool("yaml", false, "print the catalog as a loadable YAML file")
	catalogCmd.AddCommand(catalogListCmd, catalogValidateCmd)
	rootCmd.AddCommand(catalogCmd)
}
