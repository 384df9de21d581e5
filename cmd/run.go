package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dsisson/welkin/internal/apps"
	"github.com/dsisson/welkin/internal/browser"
	"github.com/dsisson/welkin/internal/config"
	"github.com/dsisson/welkin/internal/logger"
	"github.com/dsisson/welkin/internal/metrics"
	"github.com/dsisson/welkin/internal/page"
	"github.com/dsisson/welkin/internal/runner"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var runCmd = &cobra.Command{
	Use:   "run [app...]",
	Short: "Run navigation scenarios in a browser",
	Long: `Boot each application's start page in a fresh browser session, walk every
top-level link and back, then run the application's extra scenarios (the
herokuapp login, for one). Applications run in parallel up to run.parallel.

With no arguments every application is run.

Examples:
  welkin run
  welkin run pythonorg --driver playwright
  welkin run herokuapp --screenshots ./shots --output json`,
	RunE: runRun,
}

// runFlags are the command-line overrides of the run command.
type runFlags struct {
	parallel    int
	driver      string
	headful     bool
	screenshots string
	output      string
	metrics     bool
	roundTrip   bool
}

var runOpts runFlags

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVarP(&runOpts.parallel, "parallel", "p", 0, "applications to run at once (overrides run.parallel)")
	runCmd.Flags().StringVar(&runOpts.driver, "driver", "", "browser backend: chromedp, playwright (overrides browser.driver)")
	runCmd.Flags().BoolVar(&runOpts.headful, "headful", false, "show the browser window")
	runCmd.Flags().StringVar(&runOpts.screenshots, "screenshots", "", "diagnostic screenshot directory (overrides run.screenshot_dir)")
	runCmd.Flags().StringVarP(&runOpts.output, "output", "o", "text", "report format: text, json, yaml")
	runCmd.Flags().BoolVar(&runOpts.metrics, "metrics", false, "print navigation metrics as JSON after the run")
	runCmd.Flags().BoolVar(&runOpts.roundTrip, "round-trip-only", false, "skip the extra scenarios")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cfg, runOpts)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	reg, err := apps.Load(cfg)
	if err != nil {
		return err
	}
	targets := args
	if len(targets) == 0 {
		targets = reg.Apps()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Logger()
	launch := func(ctx context.Context) (browser.Driver, error) {
		return browser.Launch(ctx, browser.LaunchOptions{
			Backend:       cfg.Browser.GetDriver(),
			Headless:      cfg.Browser.Headless,
			ViewportW:     cfg.Browser.ViewportWidth,
			ViewportH:     cfg.Browser.ViewportHeight,
			RemoteURL:     cfg.Browser.RemoteURL,
			ActionTimeout: cfg.Browser.ActionTimeout(),
		}, log)
	}

	sessions := browser.NewSessionManager(launch, max(cfg.Run.GetParallel(), cfg.Browser.MaxSessions), cfg.Browser.IdleTimeout(), log)
	defer sessions.CloseAll()
	go sessions.StartCleanupLoop(ctx, time.Minute)

	m := metrics.NewMetrics()
	navOpts := page.NavigatorOptions{
		Timeout:             cfg.Run.LoadTimeout(),
		Poll:                cfg.Run.PollInterval(),
		ScreenshotOnArrival: cfg.Run.ScreenshotOnArrival,
		Viewport:            browser.Viewport{Width: cfg.Browser.ViewportWidth, Height: cfg.Browser.ViewportHeight},
		Metrics:             m,
	}
	if cfg.Run.ScreenshotDir != "" {
		navOpts.Recorder = browser.NewRecorder(cfg.Run.ScreenshotDir, log)
	}

	opts := runner.Options{
		Sessions:  sessions,
		Parallel:  cfg.Run.GetParallel(),
		Navigator: navOpts,
		Logger:    log,
	}
	if !runOpts.roundTrip {
		opts.Extra = func(app string) []runner.Scenario { return runner.Scenarios(app, cfg) }
	}

	log.Info().Strs("apps", targets).Str("driver", cfg.Browser.GetDriver()).Int("parallel", opts.Parallel).Msg("starting run")
	reports, runErr := runner.RunAll(ctx, reg, targets, opts)

	if err := printReports(os.Stdout, runOpts.output, reports); err != nil {
		return err
	}
	if runOpts.metrics {
		data, err := m.ToJSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, string(data))
	}

	if runErr != nil {
		return runErr
	}
	return firstFailure(reports)
}

// applyRunFlags overlays command-line flags on the loaded config.
func applyRunFlags(cfg *config.Config, f runFlags) {
	if f.parallel > 0 {
		cfg.Run.Parallel = f.parallel
	}
	if f.driver != "" {
		cfg.Browser.Driver = f.driver
	}
	if f.headful {
		cfg.Browser.Headless = false
	}
	if f.screenshots != "" {
		cfg.Run.ScreenshotDir = f.screenshots
	}
}

func printReports(w io.Writer, format string, reports []*runner.Report) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case "yaml":
		data, err := yaml.Marshal(reports)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "text", "":
		_, err := fmt.Fprintln(w, runner.RenderSummary(reports))
		return err
	default:
		return fmt.Errorf("unknown output format %q (text, json, yaml)", format)
	}
}

// firstFailure turns the first failed report into the command's error.
func firstFailure(reports []*runner.Report) error {
	for _, r := range reports {
		if !r.Passed {
			return fmt.Errorf("%s: scenario %q failed", r.App, r.Scenario)
		}
	}
	return nil
}
