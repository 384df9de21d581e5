package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dsisson/welkin/internal/page"
	"github.com/dsisson/welkin/internal/routing"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <app> <identifier>",
	Short: "Resolve a page identifier and describe its page object",
	Long: `Look up an identifier in an application's routing table and print the
page object it constructs: URL, identity checks, load and unload checks,
and declared links.

Examples:
  welkin resolve pythonorg "python about"
  welkin resolve herokuapp "heroku secure area" --mode auth`,
	Args: cobra.ExactArgs(2),
	RunE: runResolve,
}

var resolveMode string

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringVar(&resolveMode, "mode", string(page.NoAuth), "authentication mode (noauth, auth)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	mode, err := page.ParseMode(resolveMode)
	if err != nil {
		return err
	}
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	t, err := reg.Table(args[0])
	if err != nil {
		return err
	}

	e, err := resolveEntry(t, args[1], mode)
	if err != nil {
		return err
	}
	describePage(os.Stdout, e, mode, e.Factory()(page.Options{Domain: t.Domain}))
	return nil
}

// resolveEntry resolves id and adds a hint to the two routing failures.
func resolveEntry(t *routing.Table, id string, mode page.Mode) (routing.Entry, error) {
	e, err := routing.Resolve(t, id, mode)
	switch {
	case err == nil:
		return e, nil
	case errors.Is(err, routing.ErrModeUnimplemented):
		return e, fmt.Errorf("%w; %s has no %s partition", err, t.App, mode)
	case errors.Is(err, routing.ErrUnresolvedDestination):
		return e, fmt.Errorf("%w; known %s identifiers: %q", err, mode, t.IDs(mode))
	}
	return e, err
}

func describePage(w io.Writer, e routing.Entry, mode page.Mode, p *page.Page) {
	fmt.Fprintf(w, "identifier: %s\n", e.ID)
	fmt.Fprintf(w, "mode:       %s\n", mode)
	fmt.Fprintf(w, "object:     %s\n", e.Kind())
	fmt.Fprintf(w, "url:        %s\n", p.URL)
	if p.Title != "" {
		fmt.Fprintf(w, "title:      %s\n", p.Title)
	}

	fmt.Fprintln(w, "identity checks:")
	for _, c := range p.IdentityChecks {
		fmt.Fprintf(w, "  - %s\n", c.Name)
	}
	printChecks(w, "load checks:", p.LoadChecks)
	printChecks(w, "unload checks:", p.UnloadChecks)

	if len(p.Links) == 0 {
		return
	}
	fmt.Fprintln(w, "links:")
	names := make([]string, 0, len(p.Links))
	for name := range p.Links {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		l := p.Links[name]
		via := l.Primary.String()
		if l.TwoStage() {
			via += " then " + l.Secondary.String()
		}
		if l.Viewport != nil {
			via += " at " + l.Viewport.String()
		}
		fmt.Fprintf(w, "  - %s -> %s (%s) via %s\n", name, l.Destination, l.Mode, via)
	}
}

func printChecks(w io.Writer, header string, checks []page.Check) {
	if len(checks) == 0 {
		return
	}
	fmt.Fprintln(w, header)
	for _, c := range checks {
		fmt.Fprintf(w, "  - %s\n", c)
	}
}
