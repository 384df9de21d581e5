package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/dsisson/welkin/internal/routing"
	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes <app>",
	Short: "Print an application's routing table as YAML",
	Long: `Print the routing table of an application in the routes.yaml format:
the start page and both partitions of page descriptors. An unimplemented
authenticated partition prints as null.`,
	Args: cobra.ExactArgs(1),
	RunE: runRoutes,
}

var routesValidate bool

func init() {
	rootCmd.AddCommand(routesCmd)
	routesCmd.Flags().BoolVar(&routesValidate, "validate", false, "only validate the table")
}

func runRoutes(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	t, err := reg.Table(args[0])
	if err != nil {
		return err
	}

	return writeRoutes(os.Stdout, t, routesValidate)
}

// writeRoutes prints t as routes.yaml, or only its status when validateOnly
// is set. Tables are validated when the registry loads.
func writeRoutes(w io.Writer, t *routing.Table, validateOnly bool) error {
	if validateOnly {
		_, err := fmt.Fprintf(w, "%s: ok\n", t.App)
		return err
	}
	out, err := routing.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal routes: %w", err)
	}
	_, err = w.Write(out)
	return err
}
