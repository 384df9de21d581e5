package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/dsisson/welkin/internal/apps"
	"github.com/dsisson/welkin/internal/config"
	"github.com/dsisson/welkin/internal/genderize"
	"github.com/dsisson/welkin/internal/page"
	"github.com/dsisson/welkin/internal/routing"
	"github.com/dsisson/welkin/internal/runner"
)

func testRegistry(t *testing.T) *routing.Registry {
	t.Helper()
	reg, err := apps.Load(nil)
	if err != nil {
		t.Fatalf("apps.Load() error: %v", err)
	}
	return reg
}

func testTable(t *testing.T, app string) *routing.Table {
	t.Helper()
	tbl, err := testRegistry(t).Table(app)
	if err != nil {
		t.Fatalf("Table(%q) error: %v", app, err)
	}
	return tbl
}

func TestResolveEntry(t *testing.T) {
	tbl := testTable(t, "example")

	tests := []struct {
		name     string
		id       string
		mode     page.Mode
		wantErr  error
		wantHint string
	}{
		{"found", "example home", page.NoAuth, nil, ""},
		{"mode unimplemented", "example home", page.Auth, routing.ErrModeUnimplemented, "example has no auth partition"},
		{"unresolved", "example about", page.NoAuth, routing.ErrUnresolvedDestination, `known noauth identifiers: ["example home" "iana example domains"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := resolveEntry(tbl, tt.id, tt.mode)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("resolveEntry() error: %v", err)
				}
				if e.ID != tt.id {
					t.Errorf("entry ID = %q; want %q", e.ID, tt.id)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("resolveEntry() error = %v; want %v", err, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantHint) {
				t.Errorf("error %q missing hint %q", err, tt.wantHint)
			}
		})
	}
}

func TestDescribePage(t *testing.T) {
	tbl := testTable(t, "pythonorg")
	e, err := resolveEntry(tbl, "python home", page.NoAuth)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	describePage(&buf, e, page.NoAuth, e.Factory()(page.Options{Domain: tbl.Domain}))
	out := buf.String()

	for _, want := range []string{
		"identifier: python home\n",
		"url:        https://www.python.org/\n",
		"identity checks:\n",
		"unload checks:\n",
		"  - about -> python about (noauth) via ",
		"  - applications -> python applications (noauth) via ",
		" at 400x800\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestApplyRunFlags(t *testing.T) {
	tests := []struct {
		name  string
		flags runFlags
		check func(*config.Config) bool
	}{
		{"no flags keep config", runFlags{}, func(c *config.Config) bool {
			return c.Run.Parallel == 1 && c.Browser.Driver == "chromedp" && c.Browser.Headless && c.Run.ScreenshotDir == "/tmp/shots"
		}},
		{"parallel", runFlags{parallel: 3}, func(c *config.Config) bool { return c.Run.Parallel == 3 }},
		{"driver", runFlags{driver: "playwright"}, func(c *config.Config) bool { return c.Browser.Driver == "playwright" }},
		{"headful", runFlags{headful: true}, func(c *config.Config) bool { return !c.Browser.Headless }},
		{"screenshots", runFlags{screenshots: "./out"}, func(c *config.Config) bool { return c.Run.ScreenshotDir == "./out" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Run.Parallel = 1
			cfg.Browser.Driver = "chromedp"
			cfg.Browser.Headless = true
			cfg.Run.ScreenshotDir = "/tmp/shots"

			applyRunFlags(cfg, tt.flags)
			if !tt.check(cfg) {
				t.Errorf("applyRunFlags(%+v) gave run=%+v browser=%+v", tt.flags, cfg.Run, cfg.Browser)
			}
		})
	}
}

func testReports() []*runner.Report {
	return []*runner.Report{
		{App: "example", Scenario: "round trip", Passed: true},
		{App: "herokuapp", Scenario: "sign in", Error: "boom"},
	}
}

func TestPrintReports(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"json", `"scenario": "sign in"`},
		{"yaml", "app: herokuapp"},
		{"text", "1/2 scenarios passed"},
		{"", "1/2 scenarios passed"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		if err := printReports(&buf, tt.format, testReports()); err != nil {
			t.Fatalf("printReports(%q) error: %v", tt.format, err)
		}
		if !strings.Contains(buf.String(), tt.want) {
			t.Errorf("printReports(%q) missing %q:\n%s", tt.format, tt.want, buf.String())
		}
	}

	var buf bytes.Buffer
	if err := printReports(&buf, "xml", testReports()); err == nil {
		t.Error("printReports(xml) error = nil; want unknown format")
	}
}

func TestFirstFailure(t *testing.T) {
	err := firstFailure(testReports())
	if err == nil || !strings.Contains(err.Error(), `herokuapp: scenario "sign in" failed`) {
		t.Errorf("firstFailure() = %v", err)
	}
	if err := firstFailure(testReports()[:1]); err != nil {
		t.Errorf("firstFailure(passing) = %v; want nil", err)
	}
}

func TestAppInfos(t *testing.T) {
	infos, err := appInfos(testRegistry(t))
	if err != nil {
		t.Fatalf("appInfos() error: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("len(infos) = %d; want 3", len(infos))
	}
	byApp := make(map[string]AppInfo)
	for _, info := range infos {
		byApp[info.App] = info
	}
	if got := byApp["example"]; got.Auth != -1 || got.NoAuth != 2 || got.Start != "example home" {
		t.Errorf("example = %+v", got)
	}
	if got := byApp["herokuapp"]; got.Auth < 1 {
		t.Errorf("herokuapp.Auth = %d; want an implemented partition", got.Auth)
	}

	var text bytes.Buffer
	if err := writeApps(&text, infos, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text.String(), "auth=unimplemented") {
		t.Errorf("text output missing unimplemented auth:\n%s", text.String())
	}

	var js bytes.Buffer
	if err := writeApps(&js, infos, true); err != nil {
		t.Fatal(err)
	}
	var decoded []AppInfo
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatalf("json output does not decode: %v", err)
	}
	if len(decoded) != len(infos) {
		t.Errorf("decoded %d apps; want %d", len(decoded), len(infos))
	}
}

func TestWriteRoutes(t *testing.T) {
	tbl := testTable(t, "example")

	var buf bytes.Buffer
	if err := writeRoutes(&buf, tbl, true); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "example: ok\n" {
		t.Errorf("validate output = %q", buf.String())
	}

	buf.Reset()
	if err := writeRoutes(&buf, tbl, false); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"start: example home", "auth_pageobjects: null"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("routes output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestPredictError(t *testing.T) {
	limited := &genderize.APIError{Status: 429, Message: "Request limit reached"}
	err := predictError(limited, "GENDERIZE_API_KEY")
	if !errors.Is(err, limited) || !strings.Contains(err.Error(), "set GENDERIZE_API_KEY") {
		t.Errorf("predictError(429) = %v", err)
	}

	missing := &genderize.APIError{Status: 422, Message: "Missing 'name' parameter"}
	if err := predictError(missing, "GENDERIZE_API_KEY"); err != missing {
		t.Errorf("predictError(422) = %v; want the error unchanged", err)
	}
}

func TestWritePredictions(t *testing.T) {
	preds := []genderize.Prediction{
		{Name: "peter", Gender: "male", Probability: 0.99, Count: 165452},
		{Name: "xqz", Count: 0},
	}

	var buf bytes.Buffer
	if err := writePredictions(&buf, preds, false); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "peter") || !strings.Contains(out, "0.99 (165452 samples)") {
		t.Errorf("output missing peter:\n%s", out)
	}
	if !strings.Contains(out, "unknown") {
		t.Errorf("empty gender not shown as unknown:\n%s", out)
	}
}
