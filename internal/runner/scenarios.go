package runner

import (
	"context"

	"github.com/dsisson/welkin/internal/apps/herokuapp"
	"github.com/dsisson/welkin/internal/config"
	"github.com/dsisson/welkin/internal/page"
)

// SignInScenario logs into the-internet.herokuapp.com through the form,
// lands in the authenticated partition and logs out again.
func SignInScenario(username, password string) Scenario {
	return Scenario{
		Name: "sign in",
		Run: func(ctx context.Context, r *Run) error {
			home, err := r.Boot(ctx)
			if err != nil {
				return err
			}
			login, err := r.Follow(ctx, home, "form authentication")
			if err != nil {
				return err
			}
			secure, err := r.Step(login, "sign in", herokuapp.SecureArea, func() (*page.Page, error) {
				return herokuapp.SignIn(ctx, r.Nav, login, username, password)
			})
			if err != nil {
				return err
			}
			_, err = r.Follow(ctx, secure, "logout")
			return err
		},
	}
}

// Scenarios returns the scenarios run for app in addition to the round trip.
func Scenarios(app string, cfg *config.Config) []Scenario {
	switch app {
	case "herokuapp":
		username, password := herokuapp.DemoUsername, herokuapp.DemoPassword
		if cfg != nil {
			if o := cfg.AppOverride(app); o.Username != "" {
				username, password = o.Username, o.GetPassword()
			}
		}
		return []Scenario{SignInScenario(username, password)}
	default:
		return nil
	}
}
