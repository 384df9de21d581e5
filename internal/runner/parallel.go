package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/dsisson/welkin/internal/browser"
	"github.com/dsisson/welkin/internal/page"
	"github.com/dsisson/welkin/internal/routing"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Options configures RunAll.
type Options struct {
	// Sessions hands out one browser session per application.
	Sessions *browser.SessionManager
	// Parallel bounds how many applications run at once.
	Parallel int
	// Navigator is the template for every navigator; Domain is taken from
	// each application's table.
	Navigator page.NavigatorOptions
	// Extra returns the scenarios to run after the round trip.
	Extra  func(app string) []Scenario
	Logger zerolog.Logger
}

// SessionScenario names the report of an application whose browser session
// could not be acquired.
const SessionScenario = "session"

// RunAll runs the round trip, plus any extra scenarios, for every named
// application. Each application gets its own browser session; a session is
// never shared between goroutines, and one application's failure, including
// a failed browser launch, never stops the others. Such failures are
// recorded in the reports; the returned error is reserved for unknown
// applications and cancellation of ctx.
func RunAll(ctx context.Context, reg *routing.Registry, apps []string, opts Options) ([]*Report, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("runner: no session manager")
	}
	tables := make([]*routing.Table, len(apps))
	for i, app := range apps {
		t, err := reg.Table(app)
		if err != nil {
			return nil, err
		}
		tables[i] = t
	}

	results := make([][]*Report, len(apps))

	var g errgroup.Group
	if opts.Parallel > 0 {
		g.SetLimit(opts.Parallel)
	}
	for i, t := range tables {
		i, t := i, t
		g.Go(func() error {
			reports, err := runApp(ctx, t, opts)
			results[i] = reports
			return err
		})
	}
	err := g.Wait()

	var all []*Report
	for _, rs := range results {
		all = append(all, rs...)
	}
	return all, err
}

func runApp(ctx context.Context, t *routing.Table, opts Options) ([]*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess, err := opts.Sessions.Acquire(ctx, t.App)
	if err != nil {
		opts.Logger.Error().Err(err).Str("app", t.App).Msg("failed to acquire browser session")
		return []*Report{sessionFailure(t, err)}, nil
	}
	defer func() {
		if err := opts.Sessions.Release(sess.ID); err != nil {
			opts.Logger.Warn().Err(err).Str("app", t.App).Msg("failed to release session")
		}
	}()

	logger := opts.Logger.With().Str("app", t.App).Str("session_id", sess.ID).Logger()
	navOpts := opts.Navigator
	navOpts.Domain = t.Domain
	navOpts.Logger = logger
	nav := page.NewNavigator(sess.Driver, t, navOpts)

	scenarios := []Scenario{RoundTripScenario}
	if opts.Extra != nil {
		scenarios = append(scenarios, opts.Extra(t.App)...)
	}

	var reports []*Report
	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep := Execute(ctx, nav, t, sc)
		rep.SessionID = sess.ID
		opts.Sessions.Touch(sess.ID)

		logger.Info().
			Str("scenario", sc.Name).
			Bool("passed", rep.Passed).
			Int("steps", len(rep.Steps)).
			Dur("duration", rep.Duration).
			Msg("scenario finished")
		reports = append(reports, rep)
	}
	return reports, nil
}

// sessionFailure reports an application that never got a browser: a failed
// boot step carrying the acquire error.
func sessionFailure(t *routing.Table, err error) *Report {
	return &Report{
		ID:        uuid.NewString(),
		App:       t.App,
		Scenario:  SessionScenario,
		Steps:     []Step{{Via: ViaStart, To: t.Start, Err: err, Error: err.Error()}},
		Error:     err.Error(),
		StartedAt: time.Now(),
	}
}
