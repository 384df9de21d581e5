package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dsisson/welkin/internal/apps"
	"github.com/dsisson/welkin/internal/apps/appstest"
	"github.com/dsisson/welkin/internal/apps/herokuapp"
	"github.com/dsisson/welkin/internal/apps/pythonorg"
	"github.com/dsisson/welkin/internal/browser"
	"github.com/dsisson/welkin/internal/browser/browsertest"
	"github.com/dsisson/welkin/internal/metrics"
	"github.com/dsisson/welkin/internal/page"
	"github.com/dsisson/welkin/internal/routing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNavOptions() page.NavigatorOptions {
	return page.NavigatorOptions{
		Timeout: 100 * time.Millisecond,
		Poll:    2 * time.Millisecond,
		Logger:  zerolog.Nop(),
	}
}

func table(t *testing.T, app string) *routing.Table {
	t.Helper()
	reg, err := apps.Load(nil)
	require.NoError(t, err)
	tbl, err := reg.Table(app)
	require.NoError(t, err)
	return tbl
}

func mirror(t *testing.T, tbl *routing.Table) browsertest.Site {
	t.Helper()
	site, err := appstest.Mirror(tbl)
	require.NoError(t, err)
	return site
}

// withLoginForm scripts the herokuapp login form on a mirrored site.
func withLoginForm(t *testing.T, tbl *routing.Table, site browsertest.Site) {
	t.Helper()
	loginURL, err := appstest.URL(tbl, herokuapp.Login, page.NoAuth)
	require.NoError(t, err)
	secureURL, err := appstest.URL(tbl, herokuapp.SecureArea, page.Auth)
	require.NoError(t, err)

	site[loginURL].Forms = map[browser.Locator]func(map[browser.Locator]string) string{
		herokuapp.SubmitButton: func(v map[browser.Locator]string) string {
			if v[herokuapp.UsernameField] == herokuapp.DemoUsername && v[herokuapp.PasswordField] == herokuapp.DemoPassword {
				return secureURL
			}
			return loginURL
		},
	}
}

func newNav(tbl *routing.Table, d browser.Driver, opts page.NavigatorOptions) *page.Navigator {
	opts.Domain = tbl.Domain
	return page.NewNavigator(d, tbl, opts)
}

func TestRoundTrip_AllCatalogs(t *testing.T) {
	tests := []struct {
		app       string
		wantSteps int
		wantGotos int
	}{
		{app: "example", wantSteps: 3, wantGotos: 1},
		{app: "herokuapp", wantSteps: 7, wantGotos: 3},
		{app: "pythonorg", wantSteps: 15, wantGotos: 0},
	}

	for _, tt := range tests {
		t.Run(tt.app, func(t *testing.T) {
			tbl := table(t, tt.app)
			d := browsertest.New(mirror(t, tbl))
			m := metrics.NewMetrics()
			opts := testNavOptions()
			opts.Metrics = m

			rep := RoundTrip(context.Background(), newNav(tbl, d, opts), tbl)

			require.True(t, rep.Passed, "report: %+v", rep.Failures())
			assert.Equal(t, tt.app, rep.App)
			assert.Equal(t, "round trip", rep.Scenario)
			assert.NotEmpty(t, rep.ID)
			require.Len(t, rep.Steps, tt.wantSteps)

			first, last := rep.Steps[0], rep.Steps[len(rep.Steps)-1]
			assert.Equal(t, ViaStart, first.Via)
			assert.Equal(t, tbl.Start, first.To)
			assert.Equal(t, tbl.Start, last.To)

			gotos := 0
			for _, s := range rep.Steps {
				if s.Via == ViaGoto {
					gotos++
				}
			}
			assert.Equal(t, tt.wantGotos, gotos)
			assert.Equal(t, int64(tt.wantSteps), m.NavigationsCompleted.Load())
			assert.Zero(t, m.Failures())
		})
	}
}

func TestRoundTrip_TwoStageLinksOpenTheMenu(t *testing.T) {
	tbl := table(t, "pythonorg")
	d := browsertest.New(mirror(t, tbl))
	opts := testNavOptions()
	desktop := browser.Viewport{Width: 1280, Height: 720}
	opts.Viewport = desktop

	rep := RoundTrip(context.Background(), newNav(tbl, d, opts), tbl)
	require.True(t, rep.Passed, "report: %+v", rep.Failures())

	menuClicks := 0
	for _, c := range d.Clicks() {
		if c == pythonorg.MenuLink {
			menuClicks++
		}
	}
	assert.Equal(t, 2, menuClicks)
	assert.Equal(t, []browser.Viewport{pythonorg.MenuViewport, desktop, pythonorg.MenuViewport, desktop}, d.Resizes())
	assert.Equal(t, desktop, d.Viewport())
}

func TestRoundTrip_FailedLinkRebootsAndContinues(t *testing.T) {
	tbl := table(t, "herokuapp")
	site := mirror(t, tbl)
	homeURL, err := appstest.URL(tbl, herokuapp.Home, page.NoAuth)
	require.NoError(t, err)
	site[homeURL].Blocked = []browser.Locator{browser.LinkText("Checkboxes")}

	d := browsertest.New(site)
	rep := RoundTrip(context.Background(), newNav(tbl, d, testNavOptions()), tbl)

	assert.False(t, rep.Passed)
	failures := rep.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "checkboxes", failures[0].Via)

	var navErr *page.NavigationError
	require.True(t, errors.As(failures[0].Err, &navErr))
	assert.ErrorIs(t, failures[0].Err, browser.ErrNotInteractable)

	// start, form authentication, goto, checkboxes (failed), start, dropdown, goto
	require.Len(t, rep.Steps, 7)
	assert.Equal(t, ViaStart, rep.Steps[4].Via)
	assert.Equal(t, "dropdown", rep.Steps[5].Via)
	assert.False(t, rep.Steps[6].Failed())
}

func TestRoundTrip_BootFailure(t *testing.T) {
	tbl := table(t, "example")
	d := browsertest.New(browsertest.Site{})

	rep := RoundTrip(context.Background(), newNav(tbl, d, testNavOptions()), tbl)

	assert.False(t, rep.Passed)
	require.Len(t, rep.Steps, 1)
	assert.NotEmpty(t, rep.Error)
}

func TestSignInScenario(t *testing.T) {
	tbl := table(t, "herokuapp")
	site := mirror(t, tbl)
	withLoginForm(t, tbl, site)

	t.Run("demo credentials", func(t *testing.T) {
		d := browsertest.New(site)
		rep := Execute(context.Background(), newNav(tbl, d, testNavOptions()), tbl,
			SignInScenario(herokuapp.DemoUsername, herokuapp.DemoPassword))

		require.True(t, rep.Passed, "failures: %+v", rep.Failures())
		var vias []string
		for _, s := range rep.Steps {
			vias = append(vias, s.Via)
		}
		assert.Equal(t, []string{ViaStart, "form authentication", "sign in", "logout"}, vias)
		assert.Equal(t, herokuapp.SecureArea, rep.Steps[2].To)
		assert.Equal(t, herokuapp.Login, rep.Steps[3].To)
	})

	t.Run("wrong password", func(t *testing.T) {
		d := browsertest.New(site)
		rep := Execute(context.Background(), newNav(tbl, d, testNavOptions()), tbl,
			SignInScenario(herokuapp.DemoUsername, "nope"))

		assert.False(t, rep.Passed)
		failures := rep.Failures()
		require.Len(t, failures, 1)
		assert.Equal(t, "sign in", failures[0].Via)

		var te *page.TimeoutError
		require.True(t, errors.As(failures[0].Err, &te))
		assert.Equal(t, page.PhaseUnload, te.Phase)
		assert.Equal(t, herokuapp.Login, te.Page)
	})
}

func TestScenarios(t *testing.T) {
	assert.Empty(t, Scenarios("pythonorg", nil))
	sc := Scenarios("herokuapp", nil)
	require.Len(t, sc, 1)
	assert.Equal(t, "sign in", sc[0].Name)
}

// fakeLauncher hands out scripted drivers over one shared site.
type fakeLauncher struct {
	site browsertest.Site

	mu      sync.Mutex
	drivers []*browsertest.Driver
}

func (f *fakeLauncher) launch(ctx context.Context) (browser.Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := browsertest.New(f.site)
	f.drivers = append(f.drivers, d)
	return d, nil
}

func TestRunAll(t *testing.T) {
	reg, err := apps.Load(nil)
	require.NoError(t, err)

	site := browsertest.Site{}
	for _, app := range reg.Apps() {
		tbl, err := reg.Table(app)
		require.NoError(t, err)
		for url, p := range mirror(t, tbl) {
			site[url] = p
		}
		if app == "herokuapp" {
			withLoginForm(t, tbl, site)
		}
	}

	fl := &fakeLauncher{site: site}
	sm := browser.NewSessionManager(fl.launch, 2, 0, zerolog.Nop())
	defer sm.CloseAll()

	reports, err := RunAll(context.Background(), reg, reg.Apps(), Options{
		Sessions:  sm,
		Parallel:  2,
		Navigator: testNavOptions(),
		Extra:     func(app string) []Scenario { return Scenarios(app, nil) },
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	require.Len(t, reports, 4)
	var got []string
	for _, r := range reports {
		assert.True(t, r.Passed, "%s/%s: %+v", r.App, r.Scenario, r.Failures())
		assert.NotEmpty(t, r.SessionID)
		got = append(got, r.App+"/"+r.Scenario)
	}
	assert.Equal(t, []string{"example/round trip", "herokuapp/round trip", "herokuapp/sign in", "pythonorg/round trip"}, got)

	assert.Equal(t, 0, sm.ActiveCount())
	require.Len(t, fl.drivers, 3)
	for _, d := range fl.drivers {
		assert.True(t, d.Closed())
	}
	assert.Equal(t, reports[1].SessionID, reports[2].SessionID)
}

func TestRunAll_UnknownApp(t *testing.T) {
	reg, err := apps.Load(nil)
	require.NoError(t, err)
	sm := browser.NewSessionManager((&fakeLauncher{}).launch, 1, 0, zerolog.Nop())

	_, err = RunAll(context.Background(), reg, []string{"nosuchapp"}, Options{Sessions: sm})
	assert.ErrorIs(t, err, routing.ErrUnknownApp)
}

func TestRunAll_ClosedManager(t *testing.T) {
	reg, err := apps.Load(nil)
	require.NoError(t, err)
	sm := browser.NewSessionManager((&fakeLauncher{}).launch, 1, 0, zerolog.Nop())
	sm.CloseAll()

	reports, err := RunAll(context.Background(), reg, []string{"example"}, Options{Sessions: sm, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, SessionScenario, reports[0].Scenario)
	assert.False(t, reports[0].Passed)
	failures := reports[0].Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "example home", failures[0].To)
	assert.ErrorIs(t, failures[0].Err, browser.ErrManagerClosed)
}

var errLaunch = errors.New("chrome crashed")

// failOnceLauncher fails the first launch and scripts every later one.
type failOnceLauncher struct {
	fakeLauncher
	failed bool
}

func (f *failOnceLauncher) launch(ctx context.Context) (browser.Driver, error) {
	f.mu.Lock()
	if !f.failed {
		f.failed = true
		f.mu.Unlock()
		return nil, errLaunch
	}
	f.mu.Unlock()
	return f.fakeLauncher.launch(ctx)
}

func TestRunAll_LaunchFailureLeavesOtherAppsRunning(t *testing.T) {
	reg, err := apps.Load(nil)
	require.NoError(t, err)

	site := browsertest.Site{}
	for _, app := range []string{"example", "pythonorg"} {
		tbl, err := reg.Table(app)
		require.NoError(t, err)
		for url, p := range mirror(t, tbl) {
			site[url] = p
		}
	}
	fl := &failOnceLauncher{fakeLauncher: fakeLauncher{site: site}}
	sm := browser.NewSessionManager(fl.launch, 2, 0, zerolog.Nop())
	defer sm.CloseAll()

	reports, err := RunAll(context.Background(), reg, []string{"example", "pythonorg"}, Options{
		Sessions:  sm,
		Parallel:  2,
		Navigator: testNavOptions(),
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	require.Len(t, reports, 2)

	var failed, passed *Report
	for _, r := range reports {
		if r.Passed {
			passed = r
		} else {
			failed = r
		}
	}
	require.NotNil(t, failed, "one application should fail to launch")
	require.NotNil(t, passed, "the other application should still run")
	assert.Equal(t, SessionScenario, failed.Scenario)
	assert.ErrorIs(t, failed.Failures()[0].Err, errLaunch)
	assert.Equal(t, "round trip", passed.Scenario)
	assert.NotEqual(t, failed.App, passed.App)
	assert.Equal(t, 0, sm.ActiveCount())
}

func TestRenderSummary(t *testing.T) {
	reports := []*Report{
		{
			App:      "example",
			Scenario: "round trip",
			Passed:   true,
			Steps: []Step{
				{Via: ViaStart, To: "example home", Duration: 12 * time.Millisecond},
			},
		},
		{
			App:      "herokuapp",
			Scenario: "sign in",
			Steps: []Step{
				{From: "heroku login", Via: "sign in", To: "heroku secure area", Err: errors.New("boom"), Error: "boom"},
			},
		},
	}

	out := RenderSummary(reports)
	for _, want := range []string{"example", "herokuapp", "PASS", "FAIL", "boom", "heroku secure area", "1/2 scenarios passed"} {
		assert.True(t, strings.Contains(out, want), "summary missing %q:\n%s", want, out)
	}
}
