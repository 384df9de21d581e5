package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dsisson/welkin/internal/apps"
	"github.com/dsisson/welkin/internal/page"
	"github.com/dsisson/welkin/internal/routing"
	"github.com/spf13/cobra"
)

// AppInfo summarizes one registered application.
type AppInfo struct {
	App    string `json:"app"`
	Domain string `json:"domain"`
	Start  string `json:"start"`
	// NoAuth and Auth count the pages per partition; Auth is -1 when the
	// application has no authenticated partition.
	NoAuth int `json:"noauth_pages"`
	Auth   int `json:"auth_pages"`
}

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List the applications under test",
	Long: `List every application with a routing table, its domain (after config
overrides), its start page and how many page objects each partition holds.`,
	RunE: runApps,
}

var appsJSON bool

func init() {
	rootCmd.AddCommand(appsCmd)
	appsCmd.Flags().BoolVar(&appsJSON, "json", false, "print JSON")
}

// loadRegistry builds the routing registry with config overrides applied.
func loadRegistry() (*routing.Registry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return apps.Load(cfg)
}

func runApps(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	infos, err := appInfos(reg)
	if err != nil {
		return err
	}
	return writeApps(os.Stdout, infos, appsJSON)
}

func appInfos(reg *routing.Registry) ([]AppInfo, error) {
	var infos []AppInfo
	for _, name := range reg.Apps() {
		t, err := reg.Table(name)
		if err != nil {
			return nil, err
		}
		info := AppInfo{
			App:    t.App,
			Domain: t.Domain,
			Start:  t.Start,
			NoAuth: len(t.IDs(page.NoAuth)),
			Auth:   -1,
		}
		if t.Implements(page.Auth) {
			info.Auth = len(t.IDs(page.Auth))
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func writeApps(w io.Writer, infos []AppInfo, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	for _, info := range infos {
		auth := "unimplemented"
		if info.Auth >= 0 {
			auth = fmt.Sprintf("%d", info.Auth)
		}
		if _, err := fmt.Fprintf(w, "%-12s %-40s start=%q noauth=%d auth=%s\n", info.App, info.Domain, info.Start, info.NoAuth, auth); err != nil {
			return err
		}
	}
	return nil
}
