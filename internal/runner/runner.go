// Package runner executes navigation scenarios against an application's
// routing table and records every transition in a Report.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dsisson/welkin/internal/page"
	"github.com/dsisson/welkin/internal/routing"
	"github.com/google/uuid"
)

// ErrRoundTrip is returned when a walk ends somewhere other than where it began.
var ErrRoundTrip = errors.New("round trip did not return to the start page")

// Via values for steps that are not link clicks.
const (
	ViaStart = "start"
	ViaGoto  = "goto"
)

// Step is one page transition.
type Step struct {
	From     string        `json:"from" yaml:"from"`
	Via      string        `json:"via" yaml:"via"`
	To       string        `json:"to" yaml:"to"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`

	Err error `json:"-" yaml:"-"`
}

// Failed reports whether the step errored.
func (s Step) Failed() bool { return s.Err != nil }

// Report is the outcome of one scenario on one application.
type Report struct {
	ID        string        `json:"id" yaml:"id"`
	App       string        `json:"app" yaml:"app"`
	Scenario  string        `json:"scenario" yaml:"scenario"`
	SessionID string        `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Steps     []Step        `json:"steps" yaml:"steps"`
	Passed    bool          `json:"passed" yaml:"passed"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// Failures returns the failed steps.
func (r *Report) Failures() []Step {
	var out []Step
	for _, s := range r.Steps {
		if s.Failed() {
			out = append(out, s)
		}
	}
	return out
}

// Run is the state a scenario works with: one navigator over one session.
type Run struct {
	Nav    *page.Navigator
	Table  *routing.Table
	Report *Report
}

// Step performs do and records it as a transition from from via via to to.
func (r *Run) Step(from *page.Page, via, to string, do func() (*page.Page, error)) (*page.Page, error) {
	start := time.Now()
	p, err := do()
	st := Step{Via: via, To: to, Duration: time.Since(start)}
	if from != nil {
		st.From = from.Name
	}
	if err != nil {
		st.Err = err
		st.Error = err.Error()
	}
	r.Report.Steps = append(r.Report.Steps, st)
	return p, err
}

// Boot loads the table's start page.
func (r *Run) Boot(ctx context.Context) (*page.Page, error) {
	return r.Step(nil, ViaStart, r.Table.Start, func() (*page.Page, error) {
		return r.Nav.Start(ctx, r.Table.Start, page.NoAuth)
	})
}

// Follow clicks the named link of from.
func (r *Run) Follow(ctx context.Context, from *page.Page, link string) (*page.Page, error) {
	to := ""
	if l, ok := from.Link(link); ok {
		to = l.Destination
	}
	return r.Step(from, link, to, func() (*page.Page, error) {
		return r.Nav.Follow(ctx, from, link)
	})
}

// Goto loads the page named id directly.
func (r *Run) Goto(ctx context.Context, from *page.Page, id string, mode page.Mode) (*page.Page, error) {
	return r.Step(from, ViaGoto, id, func() (*page.Page, error) {
		return r.Nav.Goto(ctx, from, id, mode)
	})
}

// Scenario is a named sequence of transitions.
type Scenario struct {
	Name string
	Run  func(ctx context.Context, r *Run) error
}

// Execute runs sc and returns its report. A scenario passes when it
// returns nil and none of its steps failed.
func Execute(ctx context.Context, nav *page.Navigator, t *routing.Table, sc Scenario) *Report {
	rep := &Report{
		ID:        uuid.NewString(),
		App:       t.App,
		Scenario:  sc.Name,
		StartedAt: time.Now(),
	}
	err := sc.Run(ctx, &Run{Nav: nav, Table: t, Report: rep})
	rep.Duration = time.Since(rep.StartedAt)
	if err != nil {
		rep.Error = err.Error()
	}
	rep.Passed = err == nil && len(rep.Failures()) == 0
	return rep
}

// RoundTrip walks every top-level link of the start page and back.
func RoundTrip(ctx context.Context, nav *page.Navigator, t *routing.Table) *Report {
	return Execute(ctx, nav, t, RoundTripScenario)
}

// RoundTripScenario boots the start page, then for each top-level link
// follows it and returns to the start page, through a declared link back
// when the destination has one and an explicit load otherwise. Every return
// must verify as the start page. A failed link reboots the start page and
// the walk continues with the next link.
var RoundTripScenario = Scenario{
	Name: "round trip",
	Run: func(ctx context.Context, r *Run) error {
		start, err := r.Boot(ctx)
		if err != nil {
			return err
		}
		links := append([]string(nil), start.TopLevel...)

		current := start
		for _, name := range links {
			if err := ctx.Err(); err != nil {
				return err
			}
			link, _ := current.Link(name)
			if link.Mode == page.Auth {
				continue
			}

			dest, err := r.Follow(ctx, current, name)
			if err != nil {
				if current, err = r.Boot(ctx); err != nil {
					return err
				}
				continue
			}

			back, err := r.returnTo(ctx, dest, r.Table.Start)
			if err != nil {
				if current, err = r.Boot(ctx); err != nil {
					return err
				}
				continue
			}
			if back.Name != r.Table.Start {
				return fmt.Errorf("%w: ended on %q", ErrRoundTrip, back.Name)
			}
			current = back
		}
		return nil
	},
}

// returnTo navigates from p to id, preferring a declared noauth link.
func (r *Run) returnTo(ctx context.Context, p *page.Page, id string) (*page.Page, error) {
	for _, name := range linkNames(p) {
		if l := p.Links[name]; l.Destination == id && l.Mode == page.NoAuth {
			return r.Follow(ctx, p, name)
		}
	}
	return r.Goto(ctx, p, id, page.NoAuth)
}

// linkNames lists top-level links first, then the rest in sorted order.
func linkNames(p *page.Page) []string {
	seen := make(map[string]bool, len(p.Links))
	names := make([]string, 0, len(p.Links))
	for _, n := range p.TopLevel {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	rest := make([]string, 0, len(p.Links))
	for n := range p.Links {
		if !seen[n] {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}
